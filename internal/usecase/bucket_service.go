package usecase

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/internal/domain"
)

// tier is the provisional confidence class of one candidate.
type tier int

const (
	tierConfident tier = iota
	tierSemiConfident
	tierNotConfident
)

// BucketConfig holds the seeding thresholds and refinement budget.
// Defaults follow empirically-tuned values; the firm contract is only that
// confident thresholds are tighter than semi-confident ones.
type BucketConfig struct {
	ConfidentMaxDistance  int
	ConfidentMinComposite float64
	SemiMaxDistance       int
	SemiMinComposite      float64
	InlineBudget          int
	EnableDebugLogging    bool
	Logger                *logrus.Logger
}

// BucketService produces the final three-way confidence partition. Stages run
// strictly ordered: rule seeding, borderline selection, optional external
// refinement, invariant enforcement, final ordering.
type BucketService struct {
	cfg     BucketConfig
	refiner domain.RefinementClient
	log     *logrus.Logger
}

// NewBucketService creates a new bucket service. refiner may be nil when no
// external refinement collaborator is configured.
func NewBucketService(refiner domain.RefinementClient, config BucketConfig) *BucketService {
	if config.ConfidentMaxDistance <= 0 {
		config.ConfidentMaxDistance = 8
	}
	if config.ConfidentMinComposite <= 0 {
		config.ConfidentMinComposite = 0.7
	}
	if config.SemiMaxDistance <= 0 {
		config.SemiMaxDistance = 16
	}
	if config.SemiMinComposite <= 0 {
		config.SemiMinComposite = 0.5
	}
	if config.InlineBudget <= 0 {
		config.InlineBudget = 6
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &BucketService{
		cfg:     config,
		refiner: refiner,
		log:     config.Logger,
	}
}

// Partition classifies every candidate into exactly one bucket. candidates
// must already be deduplicated; comparisons maps candidate URL to its anchor
// comparison. Refinement failures degrade to the rule-based seeding.
func (s *BucketService) Partition(
	ctx context.Context,
	candidates []domain.ScoredCandidate,
	comparisons map[string]domain.AnchorComparison,
	anchors []string,
	pageContext string,
	enableRefinement bool,
) *domain.BucketPartition {
	if len(candidates) == 0 {
		return &domain.BucketPartition{}
	}

	// Stage 1: rule-based seeding.
	tiers := make(map[string]tier, len(candidates))
	for _, c := range candidates {
		tiers[c.URL] = s.seedTier(comparisons[c.URL])
	}

	// Stage 2: borderline selection, capped at the inline budget.
	ambiguous := s.selectAmbiguous(candidates, tiers, comparisons)

	// Stage 3: optional external refinement, merged under stage 4 invariants.
	if enableRefinement && s.refiner != nil {
		s.applyRefinement(ctx, candidates, tiers, comparisons, anchors, ambiguous, pageContext)
	}

	// Stage 4: invariant enforcement.
	s.enforceInvariants(candidates, tiers, anchors, comparisons)

	// Stage 5: final ordering within each bucket.
	partition := &domain.BucketPartition{}
	for _, c := range candidates {
		switch tiers[c.URL] {
		case tierConfident:
			partition.Confident = append(partition.Confident, c.URL)
		case tierSemiConfident:
			partition.SemiConfident = append(partition.SemiConfident, c.URL)
		default:
			partition.NotConfident = append(partition.NotConfident, c.URL)
		}
	}
	s.orderBucket(partition.Confident, comparisons)
	s.orderBucket(partition.SemiConfident, comparisons)
	s.orderBucket(partition.NotConfident, comparisons)

	return partition
}

// seedTier applies the fixed-threshold rules to one candidate's comparison.
func (s *BucketService) seedTier(cmp domain.AnchorComparison) tier {
	if cmp.Editorial {
		// Editorial evidence keeps a candidate out of confident regardless of
		// perceptual agreement; a near-zero distance still earns semi.
		if cmp.Distance <= s.cfg.ConfidentMaxDistance {
			return tierSemiConfident
		}
		return tierNotConfident
	}

	if cmp.Distance <= s.cfg.ConfidentMaxDistance && cmp.Composite >= s.cfg.ConfidentMinComposite {
		return tierConfident
	}
	if cmp.Packshot && cmp.Distance <= s.cfg.SemiMaxDistance {
		return tierConfident
	}
	if cmp.Distance <= s.cfg.SemiMaxDistance || cmp.Composite >= s.cfg.SemiMinComposite {
		return tierSemiConfident
	}
	return tierNotConfident
}

// selectAmbiguous picks the provisional semi-confident members closest to the
// confident boundary, capped at the inline budget.
func (s *BucketService) selectAmbiguous(candidates []domain.ScoredCandidate, tiers map[string]tier, comparisons map[string]domain.AnchorComparison) []string {
	var semis []string
	for _, c := range candidates {
		if tiers[c.URL] == tierSemiConfident {
			semis = append(semis, c.URL)
		}
	}
	sort.SliceStable(semis, func(i, j int) bool {
		return comparisons[semis[i]].Composite > comparisons[semis[j]].Composite
	})
	if len(semis) > s.cfg.InlineBudget {
		semis = semis[:s.cfg.InlineBudget]
	}
	return semis
}

// applyRefinement hands the provisional partition and manifest to the external
// collaborator and merges its verdicts. Only URLs present in the original
// candidate set are accepted; any failure skips the stage entirely as a logged
// degradation.
func (s *BucketService) applyRefinement(
	ctx context.Context,
	candidates []domain.ScoredCandidate,
	tiers map[string]tier,
	comparisons map[string]domain.AnchorComparison,
	anchors []string,
	ambiguous []string,
	pageContext string,
) {
	payload := &domain.RefinePayload{
		Anchors:     anchors,
		Ambiguous:   ambiguous,
		PageContext: pageContext,
	}
	for _, c := range candidates {
		cmp := comparisons[c.URL]
		payload.Candidates = append(payload.Candidates, domain.RefineCandidate{
			URL:              c.URL,
			Score:            c.Score,
			AnchorSimilarity: c.AnchorSimilarity,
			Distance:         cmp.Distance,
			ColorSimilarity:  cmp.ColorSimilarity,
			Composite:        cmp.Composite,
		})
		switch tiers[c.URL] {
		case tierConfident:
			payload.Provisional.Confident = append(payload.Provisional.Confident, c.URL)
		case tierSemiConfident:
			payload.Provisional.SemiConfident = append(payload.Provisional.SemiConfident, c.URL)
		default:
			payload.Provisional.NotConfident = append(payload.Provisional.NotConfident, c.URL)
		}
	}

	refined, err := s.refiner.Refine(ctx, payload)
	if err != nil || refined == nil {
		s.log.Warnf("[BUCKET] refinement skipped, keeping rule-based seeding: %v", err)
		return
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.URL] = true
	}

	// Apply promotions/demotions; the highest tier wins if the collaborator
	// listed a URL more than once. Unknown URLs are never introduced.
	applied := make(map[string]bool, len(candidates))
	apply := func(urls []string, t tier) {
		for _, u := range urls {
			if known[u] && !applied[u] {
				tiers[u] = t
				applied[u] = true
			}
		}
	}
	apply(refined.Confident, tierConfident)
	apply(refined.SemiConfident, tierSemiConfident)
	apply(refined.NotConfident, tierNotConfident)

	// Candidates the collaborator dropped fall through to stage 4's safe
	// default placement.
	for _, c := range candidates {
		if !applied[c.URL] {
			delete(tiers, c.URL)
		}
	}

	if s.cfg.EnableDebugLogging {
		s.log.Debugf("[BUCKET] refinement applied to %d/%d candidates", len(applied), len(candidates))
	}
}

// enforceInvariants guarantees the partition contract: every candidate in
// exactly one bucket, anchors force-placed into confident, and a non-empty
// confident bucket whenever any candidate exists.
func (s *BucketService) enforceInvariants(
	candidates []domain.ScoredCandidate,
	tiers map[string]tier,
	anchors []string,
	comparisons map[string]domain.AnchorComparison,
) {
	// Unclassified candidates get the safe default.
	for _, c := range candidates {
		if _, ok := tiers[c.URL]; !ok {
			tiers[c.URL] = tierSemiConfident
		}
	}

	// A candidate that is literally an anchor is the product by definition.
	anchorKeys := make(map[string]bool, len(anchors))
	for _, a := range anchors {
		anchorKeys[NormalizeImageURL(a)] = true
	}
	for _, c := range candidates {
		if anchorKeys[NormalizeImageURL(c.URL)] {
			tiers[c.URL] = tierConfident
		}
	}

	// Callers always get a minimal best-guess set: promote the top 1-2 when
	// confident ended up empty.
	if countTier(tiers, tierConfident) > 0 {
		return
	}

	pool := urlsInTier(candidates, tiers, tierSemiConfident)
	if len(pool) == 0 {
		pool = make([]string, 0, len(candidates))
		for _, c := range candidates {
			pool = append(pool, c.URL)
		}
	}
	s.orderBucket(pool, comparisons)

	promote := 2
	if len(pool) < promote {
		promote = len(pool)
	}
	for i := 0; i < promote; i++ {
		tiers[pool[i]] = tierConfident
	}
}

func countTier(tiers map[string]tier, t tier) int {
	n := 0
	for _, v := range tiers {
		if v == t {
			n++
		}
	}
	return n
}

func urlsInTier(candidates []domain.ScoredCandidate, tiers map[string]tier, t tier) []string {
	var urls []string
	for _, c := range candidates {
		if tiers[c.URL] == t {
			urls = append(urls, c.URL)
		}
	}
	return urls
}

// orderBucket sorts in place by composite score descending, tie-broken by
// perceptual distance ascending.
func (s *BucketService) orderBucket(urls []string, comparisons map[string]domain.AnchorComparison) {
	sort.SliceStable(urls, func(i, j int) bool {
		a, b := comparisons[urls[i]], comparisons[urls[j]]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		return a.Distance < b.Distance
	})
}
