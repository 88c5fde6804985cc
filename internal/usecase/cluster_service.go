package usecase

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/internal/domain"
)

// NoProductKey is the sentinel cluster key for URLs where no reliable key
// could be extracted.
const NoProductKey = ""

// Cluster scoring weights. Anchor agreement is the strongest signal, so the
// similarity sum dominates; a direct anchor-key match is near-decisive.
const (
	clusterAnchorSimWeight  = 25.0  // multiplier on summed member anchor similarity
	clusterAnchorKeyBonus   = 100.0 // cluster key matches a key extracted from an anchor URL
	clusterPackshotBonus    = 15.0  // any member matches the packshot suffix pattern
	clusterHostShareBonus   = 2.0   // per member sharing a host with an anchor
	clusterNoKeyOverrideBonus = 20.0 // relaxed-comparison bonus when re-checking keyed clusters
)

// ExtractProductKey derives a SKU-like clustering key from a URL path.
// Ordered fallback chain, first match wins:
//  1. a 6+ digit run followed by a single-letter variant suffix (the digit run)
//  2. the longest 6+ digit run anywhere in the path (ties: first occurrence)
//  3. the last two non-empty path segments, extension stripped, joined
//  4. NoProductKey when the URL has no path segments at all
func ExtractProductKey(rawURL string) string {
	path := lowerPath(rawURL)

	if m := skuVariantRegex.FindStringSubmatch(path); m != nil {
		return m[1]
	}

	if runs := digitRunRegex.FindAllString(path, -1); len(runs) > 0 {
		best := runs[0]
		for _, run := range runs[1:] {
			if len(run) > len(best) {
				best = run
			}
		}
		return best
	}

	segments := nonEmptySegments(path)
	if len(segments) == 0 {
		return NoProductKey
	}
	last := stripExtension(segments[len(segments)-1])
	if len(segments) == 1 {
		return last
	}
	return segments[len(segments)-2] + "/" + last
}

func nonEmptySegments(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func stripExtension(segment string) string {
	if idx := strings.LastIndex(segment, "."); idx > 0 {
		return segment[:idx]
	}
	return segment
}

// ClusterConfig holds configuration for the cluster service
type ClusterConfig struct {
	EnableDebugLogging bool
	Logger             *logrus.Logger
}

// ClusterService groups scored candidates by product key and selects the
// cluster that represents the page's primary product.
type ClusterService struct {
	enableDebugLogging bool
	log                *logrus.Logger
}

// NewClusterService creates a new cluster service with the given configuration
func NewClusterService(config ClusterConfig) *ClusterService {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ClusterService{
		enableDebugLogging: config.EnableDebugLogging,
		log:                log,
	}
}

// ClusterByKey partitions candidates into clusters keyed by product key.
// Member order within a cluster follows input order.
func (s *ClusterService) ClusterByKey(candidates []domain.ScoredCandidate) map[string][]domain.ScoredCandidate {
	clusters := make(map[string][]domain.ScoredCandidate)
	for _, c := range candidates {
		key := c.ProductKey
		if key == "" {
			key = ExtractProductKey(c.URL)
		}
		clusters[key] = append(clusters[key], c)
	}
	return clusters
}

// scoreCluster combines member heuristic scores, anchor agreement, and direct
// anchor evidence into one comparable value.
func (s *ClusterService) scoreCluster(key string, members []domain.ScoredCandidate, anchorKeys map[string]bool, anchorHosts map[string]bool) float64 {
	score := 0.0
	hasPackshot := false

	for _, m := range members {
		score += m.Score
		score += clusterAnchorSimWeight * m.AnchorSimilarity
		if IsPackshotURL(m.URL) {
			hasPackshot = true
		}
		if anchorHosts[urlHost(m.URL)] {
			score += clusterHostShareBonus
		}
	}

	if key != NoProductKey && anchorKeys[key] {
		score += clusterAnchorKeyBonus
	}
	if hasPackshot {
		score += clusterPackshotBonus
	}

	return score
}

// SelectPrimary picks the cluster most likely to hold the primary product's
// images. When the no-key sentinel cluster wins, keyed clusters containing a
// packshot-suffix member are re-checked under a relaxed comparison so a
// grouping failure cannot beat genuine SKU evidence.
func (s *ClusterService) SelectPrimary(clusters map[string][]domain.ScoredCandidate, anchors []string) (string, []domain.ScoredCandidate) {
	if len(clusters) == 0 {
		return NoProductKey, nil
	}

	anchorKeys := make(map[string]bool, len(anchors))
	anchorHosts := make(map[string]bool, len(anchors))
	for _, a := range anchors {
		if key := ExtractProductKey(a); key != NoProductKey {
			anchorKeys[key] = true
		}
		if host := urlHost(a); host != "" {
			anchorHosts[host] = true
		}
	}

	// Deterministic iteration so equal scores resolve the same way every run.
	keys := make([]string, 0, len(clusters))
	for key := range clusters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	bestKey := NoProductKey
	bestScore := 0.0
	first := true
	scores := make(map[string]float64, len(clusters))
	for _, key := range keys {
		cs := s.scoreCluster(key, clusters[key], anchorKeys, anchorHosts)
		scores[key] = cs
		if s.enableDebugLogging {
			s.log.Debugf("[CLUSTER] key=%q members=%d score=%.2f", key, len(clusters[key]), cs)
		}
		if first || cs > bestScore {
			bestKey, bestScore = key, cs
			first = false
		}
	}

	// No-key winner override: a keyed cluster with packshot evidence beats a
	// spurious "no signal" cluster under a relaxed comparison.
	if bestKey == NoProductKey {
		overrideKey := NoProductKey
		overrideScore := bestScore
		for _, key := range keys {
			if key == NoProductKey {
				continue
			}
			if !clusterHasPackshot(clusters[key]) {
				continue
			}
			if relaxed := scores[key] + clusterNoKeyOverrideBonus; relaxed > overrideScore {
				overrideKey, overrideScore = key, relaxed
			}
		}
		if overrideKey != NoProductKey {
			if s.enableDebugLogging {
				s.log.Debugf("[CLUSTER] no-key winner overridden by key=%q", overrideKey)
			}
			bestKey = overrideKey
		}
	}

	return bestKey, clusters[bestKey]
}

func clusterHasPackshot(members []domain.ScoredCandidate) bool {
	for _, m := range members {
		if IsPackshotURL(m.URL) {
			return true
		}
	}
	return false
}

// Rank returns the primary cluster's members ordered by anchor similarity
// (descending) then heuristic score (descending), re-deduplicated by
// normalized URL and capped at maxImages. maxImages <= 0 means no cap.
func (s *ClusterService) Rank(candidates []domain.ScoredCandidate, anchors []string, maxImages int) []domain.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	clusters := s.ClusterByKey(candidates)
	_, members := s.SelectPrimary(clusters, anchors)

	ordered := make([]domain.ScoredCandidate, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].AnchorSimilarity != ordered[j].AnchorSimilarity {
			return ordered[i].AnchorSimilarity > ordered[j].AnchorSimilarity
		}
		return ordered[i].Score > ordered[j].Score
	})

	ordered = DedupCandidates(ordered)
	if maxImages > 0 && len(ordered) > maxImages {
		ordered = ordered[:maxImages]
	}
	return ordered
}
