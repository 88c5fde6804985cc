package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/internal/domain"
)

// PipelineConfig holds configuration for the pipeline service
type PipelineConfig struct {
	MaxImages          int
	EnableDebugLogging bool
	Logger             *logrus.Logger
}

// PipelineService orchestrates the full image pipeline as a chain of immutable
// stages: extraction, scoring, dedup, anchor similarity, perceptual features,
// clustering or bucketing. Every request is stateless: entities are created
// fresh and discarded once the result is returned.
type PipelineService struct {
	extract   *ExtractService
	scoring   *ScoringService
	cluster   *ClusterService
	vision    *VisionService
	bucket    *BucketService
	maxImages int
	log       *logrus.Logger
}

// NewPipelineService creates a new pipeline service with dependencies. vision
// may be nil, in which case analysis runs on lexical signals alone with
// neutral perceptual features.
func NewPipelineService(
	extract *ExtractService,
	scoring *ScoringService,
	cluster *ClusterService,
	vision *VisionService,
	bucket *BucketService,
	config PipelineConfig,
) *PipelineService {
	maxImages := config.MaxImages
	if maxImages <= 0 {
		maxImages = 12
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PipelineService{
		extract:   extract,
		scoring:   scoring,
		cluster:   cluster,
		vision:    vision,
		bucket:    bucket,
		maxImages: maxImages,
		log:       log,
	}
}

// Extract runs candidate extraction only.
func (s *PipelineService) Extract(html, baseURL string) ([]domain.ImageCandidate, error) {
	return s.extract.ExtractFromHTML(html, baseURL)
}

// Rank returns the primary product's images as an ordered list: extraction
// (when needed), scoring, lexical anchor similarity, dedup, and product-key
// clustering. No pixel data is fetched.
func (s *PipelineService) Rank(ctx context.Context, req *domain.RankRequest) ([]domain.ScoredCandidate, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest
	}

	candidates, anchors, err := s.resolveInput(req.Candidates, req.HTML, req.BaseURL, req.Anchors)
	if err != nil {
		return nil, err
	}

	scored := s.prepare(candidates, anchors)

	maxImages := req.MaxImages
	if maxImages <= 0 || maxImages > s.maxImages {
		maxImages = s.maxImages
	}

	return s.cluster.Rank(scored, anchors, maxImages), nil
}

// Analyze runs the full pipeline and returns the three-way confidence
// partition. Perceptual features are fetched concurrently for candidates and
// anchors; individual fetch failures degrade to neutral features, while a
// cancelled batch fails the whole call.
func (s *PipelineService) Analyze(ctx context.Context, req *domain.AnalyzeRequest) (*domain.BucketPartition, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest
	}

	candidates, anchors, err := s.resolveInput(req.Candidates, req.HTML, req.BaseURL, req.Anchors)
	if err != nil {
		return nil, err
	}

	scored := s.prepare(candidates, anchors)

	comparisons, err := s.compareAll(ctx, scored, anchors)
	if err != nil {
		return nil, err
	}

	partition := s.bucket.Partition(ctx, scored, comparisons, anchors, req.PageContext, req.EnableRefinement)

	s.log.Infof("[PIPELINE] partitioned %d candidates: %d confident, %d semi, %d not",
		len(scored), len(partition.Confident), len(partition.SemiConfident), len(partition.NotConfident))

	return partition, nil
}

// resolveInput produces the working candidate and anchor sets from either an
// explicit candidate list or raw HTML. An empty result is a fatal input error,
// distinct from a successful run that finds nothing confident.
func (s *PipelineService) resolveInput(candidates []domain.ImageCandidate, html, baseURL string, anchors []string) ([]domain.ImageCandidate, []string, error) {
	if len(candidates) == 0 {
		if html == "" {
			return nil, nil, fmt.Errorf("%w: either candidates or html must be supplied", domain.ErrInvalidRequest)
		}
		extracted, err := s.extract.ExtractFromHTML(html, baseURL)
		if err != nil {
			return nil, nil, err
		}
		candidates = extracted
		if len(anchors) == 0 {
			anchors = DeriveAnchors(candidates)
		}
	}

	// Drop empty URLs defensively; the extractor never produces them but
	// caller-supplied lists might.
	valid := make([]domain.ImageCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.URL != "" {
			valid = append(valid, c)
		}
	}

	if len(valid) == 0 {
		return nil, nil, domain.ErrNoCandidates
	}

	if len(anchors) > domain.MaxAnchors {
		anchors = anchors[:domain.MaxAnchors]
	}

	return valid, anchors, nil
}

// prepare scores, keys, and anchor-rates all candidates, then deduplicates.
func (s *PipelineService) prepare(candidates []domain.ImageCandidate, anchors []string) []domain.ScoredCandidate {
	scored := s.scoring.ScoreAll(candidates)
	for i := range scored {
		scored[i].AnchorSimilarity = AnchorSimilarity(scored[i].URL, anchors)
	}
	return DedupCandidates(scored)
}

// compareAll computes perceptual comparisons for the deduplicated candidate
// set. Without a vision service every comparison is neutral (lexical evidence
// still applies through the URL-pattern flags).
func (s *PipelineService) compareAll(ctx context.Context, scored []domain.ScoredCandidate, anchors []string) (map[string]domain.AnchorComparison, error) {
	comparisons := make(map[string]domain.AnchorComparison, len(scored))

	if s.vision == nil || len(anchors) == 0 {
		for _, c := range scored {
			comparisons[c.URL] = CompareToAnchors(c.URL, nil, nil)
		}
		return comparisons, nil
	}

	urls := make([]string, 0, len(scored)+len(anchors))
	for _, c := range scored {
		urls = append(urls, c.URL)
	}
	urls = append(urls, anchors...)

	features, err := s.vision.ComputeFeatures(ctx, urls)
	if err != nil {
		return nil, err
	}

	anchorFeats := make([]*domain.ImageFeatures, 0, len(anchors))
	for _, a := range anchors {
		anchorFeats = append(anchorFeats, features[a])
	}

	for i := range scored {
		feat := features[scored[i].URL]
		scored[i].Features = feat
		comparisons[scored[i].URL] = CompareToAnchors(scored[i].URL, feat, anchorFeats)
	}

	return comparisons, nil
}
