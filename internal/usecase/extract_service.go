package usecase

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/internal/domain"
)

// Package-level compiled regex patterns for extraction
var (
	// Matches url(...) references inside inline background styles
	backgroundURLRegex = regexp.MustCompile(`(?i)background(?:-image)?\s*:[^;]*url\(\s*['"]?([^'")]+)['"]?\s*\)`)

	// Matches inline base64 raster data URIs
	rasterDataURIRegex = regexp.MustCompile(`(?i)^data:image/(?:png|jpe?g|webp|bmp|tiff?);base64,`)

	// Matches one srcset entry: URL plus optional width/density descriptor
	srcsetEntryRegex = regexp.MustCompile(`^(\S+)(?:\s+(\d+(?:\.\d+)?)(w|x))?$`)
)

// rasterExtensions are the accepted still-raster file extensions
var rasterExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".avif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// rejectedExtensions indicate vector/icon/animated/video formats
var rejectedExtensions = map[string]bool{
	".svg": true, ".gif": true, ".ico": true, ".cur": true,
	".mp4": true, ".webm": true, ".mov": true, ".avi": true,
	".pdf": true, ".css": true, ".js": true,
}

// lazySrcAttributes are the data-* attribute names lazy loaders stash the real
// source in, in probe order.
var lazySrcAttributes = []string{"data-src", "data-original", "data-lazy-src", "data-image"}

// structuredProduct is the typed intermediate for tolerant JSON-LD parsing.
// Only the handful of fields the pipeline uses are extracted; everything
// unrecognized is discarded.
type structuredProduct struct {
	Type  jsonStrings `json:"@type"`
	Name  string      `json:"name"`
	Image jsonStrings `json:"image"`
	Brand json.RawMessage `json:"brand"`
	Offers json.RawMessage `json:"offers"`
}

// jsonStrings tolerates the string / array / object shapes that structured
// product data uses for image and type fields.
type jsonStrings []string

func (js *jsonStrings) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*js = jsonStrings{s}
		return nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		var out jsonStrings
		for _, raw := range arr {
			var item jsonStrings
			if err := json.Unmarshal(raw, &item); err == nil {
				out = append(out, item...)
			}
		}
		*js = out
		return nil
	}

	var obj struct {
		URL        string `json:"url"`
		ContentURL string `json:"contentUrl"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.URL != "" {
			*js = jsonStrings{obj.URL}
		} else if obj.ContentURL != "" {
			*js = jsonStrings{obj.ContentURL}
		}
		return nil
	}

	// Unrecognized shape: drop rather than propagate loosely-typed data.
	*js = nil
	return nil
}

// ExtractConfig holds configuration for the extract service
type ExtractConfig struct {
	EnableDebugLogging bool
	Logger             *logrus.Logger
}

// ExtractService collects raw image candidates from page markup. Extraction is
// a pure function of the supplied document: element-level failures are
// swallowed and the pass never aborts because of one bad element.
type ExtractService struct {
	enableDebugLogging bool
	log                *logrus.Logger
}

// NewExtractService creates a new extract service with the given configuration
func NewExtractService(config ExtractConfig) *ExtractService {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExtractService{
		enableDebugLogging: config.EnableDebugLogging,
		log:                log,
	}
}

// ExtractFromHTML parses the page and returns every image candidate found in
// structured data, meta tags, img/source elements, inline background styles,
// preload links, and anchors. The returned list may be empty but extraction
// itself only fails when there is no document to work with.
func (s *ExtractService) ExtractFromHTML(html, baseURL string) ([]domain.ImageCandidate, error) {
	if html == "" || baseURL == "" {
		return nil, fmt.Errorf("%w: html and baseUrl are required", domain.ErrInvalidRequest)
	}

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: baseUrl must be an absolute URL", domain.ErrInvalidRequest)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable document", domain.ErrInvalidRequest)
	}

	var candidates []domain.ImageCandidate
	add := func(c *domain.ImageCandidate) {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}

	for _, img := range s.extractStructuredData(doc, base) {
		add(&img)
	}
	for _, img := range s.extractMetaTags(doc, base) {
		add(&img)
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, c := range s.extractImgElement(sel, base) {
			add(&c)
		}
	})

	doc.Find("picture source, source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		add(s.extractSourceElement(sel, base))
	})

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		add(s.extractBackgroundStyle(sel, base))
	})

	doc.Find(`link[rel="preload"][as="image"]`).Each(func(_ int, sel *goquery.Selection) {
		add(s.extractPreloadLink(sel, base))
	})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		add(s.extractAnchorLink(sel, base))
	})

	if s.enableDebugLogging {
		s.log.Debugf("[EXTRACT] %d candidates from %s", len(candidates), baseURL)
	}

	return candidates, nil
}

// extractStructuredData pulls product images out of JSON-LD blocks. Arrays,
// @graph wrappers, and non-product entries are tolerated; anything
// unparseable is skipped per-block.
func (s *ExtractService) extractStructuredData(doc *goquery.Document, base *url.URL) []domain.ImageCandidate {
	var candidates []domain.ImageCandidate

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		for _, product := range parseStructuredProducts(raw) {
			for _, img := range product.Image {
				abs, ok := s.resolveCandidateURL(img, base)
				if !ok {
					continue
				}
				candidates = append(candidates, domain.ImageCandidate{
					URL:    abs,
					Origin: domain.OriginStructuredData,
					Alt:    product.Name,
				})
			}
		}
	})

	return candidates
}

// parseStructuredProducts decodes a JSON-LD payload into product entries,
// unwrapping top-level arrays and @graph containers.
func parseStructuredProducts(raw string) []structuredProduct {
	var out []structuredProduct

	collect := func(data []byte) {
		var p structuredProduct
		if err := json.Unmarshal(data, &p); err == nil && len(p.Image) > 0 {
			out = append(out, p)
		}
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			for _, item := range arr {
				collect(item)
			}
		}
		return out
	}

	var graph struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(trimmed), &graph); err == nil && len(graph.Graph) > 0 {
		for _, item := range graph.Graph {
			collect(item)
		}
		return out
	}

	collect([]byte(trimmed))
	return out
}

// extractMetaTags pulls og:image / twitter:image references plus any declared
// dimensions.
func (s *ExtractService) extractMetaTags(doc *goquery.Document, base *url.URL) []domain.ImageCandidate {
	var candidates []domain.ImageCandidate
	width, height := 0, 0
	var urls []string

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		prop, ok := sel.Attr("property")
		if !ok {
			prop, _ = sel.Attr("name")
		}
		content, _ := sel.Attr("content")
		if content == "" {
			return
		}
		switch prop {
		case "og:image", "og:image:secure_url", "twitter:image":
			urls = append(urls, content)
		case "og:image:width":
			if w, err := strconv.Atoi(content); err == nil {
				width = w
			}
		case "og:image:height":
			if h, err := strconv.Atoi(content); err == nil {
				height = h
			}
		}
	})

	for _, raw := range urls {
		abs, ok := s.resolveCandidateURL(raw, base)
		if !ok {
			continue
		}
		candidates = append(candidates, domain.ImageCandidate{
			URL:       abs,
			Origin:    domain.OriginMetaTag,
			PixelArea: width * height,
		})
	}
	return candidates
}

// extractImgElement yields up to two candidates for one <img>: the best
// responsive-set entry and the plain fallback src, when they differ.
func (s *ExtractService) extractImgElement(sel *goquery.Selection, base *url.URL) []domain.ImageCandidate {
	alt := strings.TrimSpace(sel.AttrOr("alt", ""))
	class := strings.TrimSpace(sel.AttrOr("class", ""))
	area := elementPixelArea(sel)

	var out []domain.ImageCandidate
	seen := make(map[string]bool, 2)

	appendURL := func(raw string) {
		abs, ok := s.resolveCandidateURL(raw, base)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, domain.ImageCandidate{
			URL:         abs,
			Origin:      domain.OriginImgElement,
			Alt:         alt,
			ClassTokens: class,
			PixelArea:   area,
		})
	}

	for _, attr := range []string{"srcset", "data-srcset"} {
		if srcset, ok := sel.Attr(attr); ok {
			if best := pickBestFromSrcset(srcset); best != "" {
				appendURL(best)
				break
			}
		}
	}

	if src, ok := sel.Attr("src"); ok {
		appendURL(src)
	} else {
		for _, attr := range lazySrcAttributes {
			if src, ok := sel.Attr(attr); ok && src != "" {
				appendURL(src)
				break
			}
		}
	}

	return out
}

// extractSourceElement takes the best responsive entry from a <source>.
func (s *ExtractService) extractSourceElement(sel *goquery.Selection, base *url.URL) *domain.ImageCandidate {
	srcset, ok := sel.Attr("srcset")
	if !ok {
		return nil
	}
	best := pickBestFromSrcset(srcset)
	if best == "" {
		return nil
	}
	abs, ok := s.resolveCandidateURL(best, base)
	if !ok {
		return nil
	}
	return &domain.ImageCandidate{
		URL:    abs,
		Origin: domain.OriginSourceElement,
	}
}

// extractBackgroundStyle pulls url(...) references from inline styles.
// Background images carry no measurable dimensions.
func (s *ExtractService) extractBackgroundStyle(sel *goquery.Selection, base *url.URL) *domain.ImageCandidate {
	style, _ := sel.Attr("style")
	m := backgroundURLRegex.FindStringSubmatch(style)
	if m == nil {
		return nil
	}
	abs, ok := s.resolveCandidateURL(m[1], base)
	if !ok {
		return nil
	}
	return &domain.ImageCandidate{
		URL:         abs,
		Origin:      domain.OriginBackgroundStyle,
		ClassTokens: strings.TrimSpace(sel.AttrOr("class", "")),
	}
}

func (s *ExtractService) extractPreloadLink(sel *goquery.Selection, base *url.URL) *domain.ImageCandidate {
	href, ok := sel.Attr("href")
	if !ok {
		return nil
	}
	abs, ok := s.resolveCandidateURL(href, base)
	if !ok {
		return nil
	}
	return &domain.ImageCandidate{
		URL:    abs,
		Origin: domain.OriginPreloadLink,
	}
}

// extractAnchorLink accepts <a href> only when the target is itself a raster
// file; bare links are the least trusted origin.
func (s *ExtractService) extractAnchorLink(sel *goquery.Selection, base *url.URL) *domain.ImageCandidate {
	href, ok := sel.Attr("href")
	if !ok || !hasRasterExtension(href) {
		return nil
	}
	abs, ok := s.resolveCandidateURL(href, base)
	if !ok {
		return nil
	}
	return &domain.ImageCandidate{
		URL:         abs,
		Origin:      domain.OriginAnchorLink,
		ClassTokens: strings.TrimSpace(sel.AttrOr("class", "")),
	}
}

// resolveCandidateURL resolves raw against the document base and applies the
// raster filter. Returns ("", false) for anything unusable.
func (s *ExtractService) resolveCandidateURL(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if strings.HasPrefix(raw, "data:") {
		if rasterDataURIRegex.MatchString(raw) {
			return raw, true
		}
		return "", false
	}

	rel, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(rel)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if isRejectedExtension(abs.Path) {
		return "", false
	}
	return abs.String(), true
}

// hasRasterExtension reports whether the URL path ends in an accepted raster
// extension.
func hasRasterExtension(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	return rasterExtensions[strings.ToLower(pathExtension(path))]
}

// isRejectedExtension reports whether the path names a non-raster format.
// Extension-less CDN paths are accepted; only explicit bad formats reject.
func isRejectedExtension(path string) bool {
	return rejectedExtensions[strings.ToLower(pathExtension(path))]
}

func pathExtension(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx < strings.LastIndex(path, "/") {
		return ""
	}
	return path[idx:]
}

// pickBestFromSrcset selects the single entry with the highest effective
// resolution score: width descriptor Nw scores N, density descriptor Nx scores
// round(N*1000), undecorated entries score 0. Ties keep the first seen.
func pickBestFromSrcset(srcset string) string {
	bestURL := ""
	bestScore := -1

	for _, entry := range strings.Split(srcset, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		m := srcsetEntryRegex.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		score := 0
		if m[2] != "" {
			n, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			if m[3] == "w" {
				score = int(n)
			} else {
				score = int(n*1000 + 0.5)
			}
		}
		if score > bestScore {
			bestScore = score
			bestURL = m[1]
		}
	}

	return bestURL
}

// elementPixelArea reads width/height attributes when present.
func elementPixelArea(sel *goquery.Selection) int {
	w, errW := strconv.Atoi(strings.TrimSpace(sel.AttrOr("width", "")))
	h, errH := strconv.Atoi(strings.TrimSpace(sel.AttrOr("height", "")))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// DeriveAnchors builds the trusted anchor set for a page: the publisher's meta
// primary image first, then structured-data images, then the largest measured
// native element. Deduplicated by normalized URL and capped at MaxAnchors.
// The result is computed once per page and never mutated during scoring.
func DeriveAnchors(candidates []domain.ImageCandidate) []string {
	var ordered []string

	for _, c := range candidates {
		if c.Origin == domain.OriginMetaTag {
			ordered = append(ordered, c.URL)
		}
	}
	for _, c := range candidates {
		if c.Origin == domain.OriginStructuredData {
			ordered = append(ordered, c.URL)
		}
	}

	// Largest measurable native element as the final fallback anchor.
	native := make([]domain.ImageCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Origin == domain.OriginImgElement && c.PixelArea > 0 {
			native = append(native, c)
		}
	}
	sort.SliceStable(native, func(i, j int) bool { return native[i].PixelArea > native[j].PixelArea })
	if len(native) > 0 {
		ordered = append(ordered, native[0].URL)
	}

	anchors := DedupURLs(ordered)
	if len(anchors) > domain.MaxAnchors {
		anchors = anchors[:domain.MaxAnchors]
	}
	return anchors
}
