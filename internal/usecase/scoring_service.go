package usecase

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	// Matches a 6+ digit SKU run immediately followed by a single-letter variant
	// suffix, e.g. "06987325409-p" or "06987325409-e1"
	skuVariantRegex = regexp.MustCompile(`(?i)(\d{6,})-([a-z])\d*(?:[._/-]|$)`)

	// Matches the packshot flavor of the variant suffix specifically ("-p")
	packshotSuffixRegex = regexp.MustCompile(`(?i)(\d{6,})-p(?:[._/-]|$)`)

	// Matches a run of 6+ consecutive digits
	digitRunRegex = regexp.MustCompile(`\d{6,}`)

	// Matches a width request in the query string, e.g. "w=1600" or "width=800"
	widthParamRegex = regexp.MustCompile(`(?i)(?:^|[?&])(?:w|width|imwidth)=(\d{2,5})(?:&|$)`)
)

// Token weight categories for scoring. Weights are additive and unnormalized;
// only relative ordering within one page matters.
const (
	weightPathPositive  = 2.5  // packshot/studio/catalog path tokens
	weightPathNegative  = -3.0 // editorial/campaign/runway path tokens
	weightVideoToken    = -20.0 // video content, effectively disqualifying
	weightSKUSuffix     = 3.0  // trailing "-p" SKU+variant packshot marker
	weightAltPositive   = 2.0  // garment detail view words in alt text
	weightAltNegative   = -2.0 // on-model/lifestyle words in alt text
	weightClassPositive = 1.5  // gallery/product-ish class names
	weightClassNegative = -2.0 // editorial/campaign-ish class names
)

// Origin trust adjustments
const (
	originNativeBonus       = 1.0  // img/source elements
	originBackgroundPenalty = -1.5 // background-image styles
	originAnchorPenalty     = -1.0 // plain anchor links
)

// Resolution bonus parameters
const (
	resolutionBonusCap  = 6.0    // cap on the area contribution
	fallbackCatalogPath = 1.5    // coarse bonus when area is unknown but path looks catalog-like
	fallbackWideParam   = 1.0    // coarse bonus for a large parsed width query param
	fallbackWidthFloor  = 800    // minimum parsed width to count as "large"
)

// positivePathTokens suggest packshot/studio/catalog context
var positivePathTokens = map[string]bool{
	"packshot": true, "packshots": true, "studio": true, "product": true,
	"products": true, "catalog": true, "catalogue": true, "goods": true,
	"item": true, "items": true, "sku": true, "zoom": true, "still": true,
	"flat": true, "xxl": true, "large": true,
}

// negativePathTokens suggest editorial/campaign/lifestyle content
var negativePathTokens = map[string]bool{
	"editorial": true, "campaign": true, "lookbook": true, "runway": true,
	"model": true, "models": true, "banner": true, "banners": true,
	"logo": true, "logos": true, "sprite": true, "icon": true, "icons": true,
	"story": true, "stories": true, "blog": true,
}

// videoPathTokens strongly penalize video-adjacent assets
var videoPathTokens = map[string]bool{
	"video": true, "videos": true, "mp4": true, "webm": true, "trailer": true,
}

// positiveAltWords indicate isolated garment detail views
var positiveAltWords = map[string]bool{
	"front": true, "back": true, "side": true, "detail": true, "details": true,
	"flat": true, "lay": true, "close": true, "closeup": true, "zoom": true,
	"fabric": true, "texture": true,
}

// negativeAltWords indicate on-model/lifestyle shots
var negativeAltWords = map[string]bool{
	"model": true, "worn": true, "wearing": true, "look": true, "looks": true,
	"outfit": true, "styled": true, "lifestyle": true,
}

// positiveClassTokens are gallery/product/detail-ish class names
var positiveClassTokens = map[string]bool{
	"gallery": true, "product": true, "detail": true, "pdp": true,
	"media": true, "zoom": true, "main": true, "primary": true,
}

// negativeClassTokens are editorial/campaign/model-ish class names
var negativeClassTokens = map[string]bool{
	"editorial": true, "campaign": true, "model": true, "lookbook": true,
	"banner": true, "promo": true, "thumbnail": true, "thumb": true,
}

// ScoringConfig holds configuration for the scoring service
type ScoringConfig struct {
	EnableDebugLogging bool
	Logger             *logrus.Logger
}

// ScoringService assigns a product-likeness score to image candidates.
// Scoring is a pure function of the candidate: no I/O, deterministic.
type ScoringService struct {
	enableDebugLogging bool
	log                *logrus.Logger
}

// NewScoringService creates a new scoring service with the given configuration
func NewScoringService(config ScoringConfig) *ScoringService {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ScoringService{
		enableDebugLogging: config.EnableDebugLogging,
		log:                log,
	}
}

// ScoreCandidate computes the signed product-likeness score for one candidate.
// Higher means more likely an isolated product shot. Identical input always
// yields an identical score.
func (s *ScoringService) ScoreCandidate(c domain.ImageCandidate) float64 {
	score := 0.0

	path := lowerPath(c.URL)
	score += scorePathTokens(path)

	if packshotSuffixRegex.MatchString(path) {
		score += weightSKUSuffix
	}

	score += scoreWordSet(c.Alt, positiveAltWords, weightAltPositive, negativeAltWords, weightAltNegative)
	score += scoreWordSet(c.ClassTokens, positiveClassTokens, weightClassPositive, negativeClassTokens, weightClassNegative)
	score += originAdjustment(c.Origin)
	score += s.resolutionBonus(c, path)

	if s.enableDebugLogging {
		s.log.Debugf("[SCORE] %s | origin=%s area=%d -> %.2f", c.URL, c.Origin, c.PixelArea, score)
	}

	return score
}

// ScoreAll maps a candidate list to scored candidates, preserving order.
func (s *ScoringService) ScoreAll(candidates []domain.ImageCandidate) []domain.ScoredCandidate {
	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, domain.ScoredCandidate{
			ImageCandidate: c,
			Score:          s.ScoreCandidate(c),
			ProductKey:     ExtractProductKey(c.URL),
		})
	}
	return scored
}

// IsPackshotURL reports whether the URL matches the SKU+variant packshot
// suffix convention.
func IsPackshotURL(rawURL string) bool {
	return packshotSuffixRegex.MatchString(lowerPath(rawURL))
}

// IsEditorialURL reports whether the URL path carries editorial/campaign
// markers, including the "-e" SKU variant suffix.
func IsEditorialURL(rawURL string) bool {
	path := lowerPath(rawURL)
	for _, tok := range splitPathTokens(path) {
		if negativePathTokens[tok] || videoPathTokens[tok] {
			return true
		}
	}
	if m := skuVariantRegex.FindStringSubmatch(path); m != nil && strings.EqualFold(m[2], "e") {
		return true
	}
	return false
}

// lowerPath returns the lowercased path portion of the URL, falling back to
// the whole string when parsing fails.
func lowerPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return strings.ToLower(u.Path)
	}
	return strings.ToLower(rawURL)
}

// splitPathTokens splits a URL path on separator characters
func splitPathTokens(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '.' || r == '_' || r == '-'
	})
}

// scorePathTokens applies the path-token rules to a lowercased URL path
func scorePathTokens(path string) float64 {
	score := 0.0
	for _, tok := range splitPathTokens(path) {
		switch {
		case videoPathTokens[tok]:
			score += weightVideoToken
		case positivePathTokens[tok]:
			score += weightPathPositive
		case negativePathTokens[tok]:
			score += weightPathNegative
		}
	}
	return score
}

// scoreWordSet applies positive/negative word weights to free text
func scoreWordSet(text string, positive map[string]bool, posWeight float64, negative map[string]bool, negWeight float64) float64 {
	if text == "" {
		return 0
	}
	score := 0.0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:()[]\"'")
		if positive[word] {
			score += posWeight
		}
		if negative[word] {
			score += negWeight
		}
	}
	return score
}

// originAdjustment reflects provenance trust: native image elements are the
// most reliable, background styles and bare anchors the least.
func originAdjustment(origin domain.Origin) float64 {
	switch origin {
	case domain.OriginImgElement, domain.OriginSourceElement:
		return originNativeBonus
	case domain.OriginBackgroundStyle:
		return originBackgroundPenalty
	case domain.OriginAnchorLink:
		return originAnchorPenalty
	default:
		return 0
	}
}

// resolutionBonus rewards larger source images with diminishing returns.
// When the area is unmeasurable it falls back to coarse URL evidence.
func (s *ScoringService) resolutionBonus(c domain.ImageCandidate, path string) float64 {
	if c.PixelArea > 0 {
		bonus := math.Log10(float64(c.PixelArea))
		if bonus > resolutionBonusCap {
			bonus = resolutionBonusCap
		}
		return bonus
	}

	// Unknown dimensions: catalog-like path segments or an explicit width
	// query parameter are weak stand-ins.
	bonus := 0.0
	if strings.Contains(path, "/products/") || strings.Contains(path, "/product/") || strings.Contains(path, "/catalog/") {
		bonus += fallbackCatalogPath
	}
	if m := widthParamRegex.FindStringSubmatch(c.URL); m != nil {
		if w, err := strconv.Atoi(m[1]); err == nil && w >= fallbackWidthFloor {
			bonus += fallbackWideParam
		}
	}
	return bonus
}
