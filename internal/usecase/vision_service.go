package usecase

import (
	"context"
	"image"
	"math"
	"math/bits"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/stylelens/backend/internal/domain"
)

// Composite score weights. They sum to 0.85 so the pattern bonus cannot push
// the pre-clamp value far past 1.
const (
	compositeDistanceWeight = 0.45
	compositeColorWeight    = 0.25
	compositeResolutionWeight = 0.15

	compositePackshotBonus   = 0.10
	compositeEditorialPenalty = 0.15
)

// maxColorDistance is the largest possible Euclidean distance in 8-bit RGB
// space: sqrt(3 * 255^2).
const maxColorDistance = 441.6729559300637

// Neutral feature defaults used when an image could not be fetched or decoded.
const (
	neutralDistance        = 32
	neutralColorSimilarity = 0.5
)

// colorSampleSize is the grid the image is downscaled to before averaging
// channels. Small enough to be cheap, large enough to be stable.
const colorSampleSize = 16

// VisionConfig holds configuration for the vision service
type VisionConfig struct {
	Concurrency        int
	CacheTTL           time.Duration
	EnableDebugLogging bool
	Logger             *logrus.Logger
}

// VisionService computes perceptual features (difference hash, mean color)
// from actual pixel data and compares candidates against anchors. Fetches are
// issued concurrently per batch under a fixed cap; each per-image failure
// degrades that one image to neutral features instead of aborting the batch.
type VisionService struct {
	fetcher            domain.ImageFetcher
	cache              domain.CacheRepository
	concurrency        int64
	cacheTTL           time.Duration
	enableDebugLogging bool
	log                *logrus.Logger
}

// NewVisionService creates a new vision service with dependencies. cache may
// be nil to disable feature memoization.
func NewVisionService(fetcher domain.ImageFetcher, cache domain.CacheRepository, config VisionConfig) *VisionService {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 12
	}
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VisionService{
		fetcher:            fetcher,
		cache:              cache,
		concurrency:        int64(concurrency),
		cacheTTL:           cacheTTL,
		enableDebugLogging: config.EnableDebugLogging,
		log:                log,
	}
}

// ComputeFeatures fetches and hashes every URL concurrently, bounded by the
// configured cap. The result maps each input URL to its features, or to nil
// when that fetch failed (neutral degradation). The only error case is batch
// cancellation: partial results cannot satisfy the partition invariant, so a
// cancelled context surfaces as a single batch-level failure.
func (s *VisionService) ComputeFeatures(ctx context.Context, urls []string) (map[string]*domain.ImageFeatures, error) {
	results := make([]*domain.ImageFeatures, len(urls))
	sem := semaphore.NewWeighted(s.concurrency)

	for i, u := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, domain.ErrBatchCancelled
		}
		go func(slot int, imgURL string) {
			defer sem.Release(1)
			results[slot] = s.featuresForURL(ctx, imgURL)
		}(i, u)
	}

	// Gather: wait for all in-flight computations to resolve or fail.
	if err := sem.Acquire(ctx, s.concurrency); err != nil {
		return nil, domain.ErrBatchCancelled
	}

	out := make(map[string]*domain.ImageFeatures, len(urls))
	for i, u := range urls {
		out[u] = results[i]
	}
	return out, nil
}

// featuresForURL computes features for one image, consulting the cache first.
// Any failure returns nil; features are a pure function of the image bytes so
// cached values never go stale within their TTL.
func (s *VisionService) featuresForURL(ctx context.Context, imgURL string) *domain.ImageFeatures {
	cacheKey := "features:" + NormalizeImageURL(imgURL)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			if feat, ok := cached.(*domain.ImageFeatures); ok {
				return feat
			}
		}
	}

	img, err := s.fetcher.FetchImage(ctx, imgURL)
	if err != nil {
		s.log.Warnf("[VISION] feature fetch failed for %s: %v", imgURL, err)
		return nil
	}

	feat, err := ComputeImageFeatures(img)
	if err != nil {
		s.log.Warnf("[VISION] hashing failed for %s: %v", imgURL, err)
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, feat, s.cacheTTL); err != nil && s.enableDebugLogging {
			s.log.Debugf("[VISION] feature cache write failed for %s: %v", imgURL, err)
		}
	}

	return feat
}

// ComputeImageFeatures derives the 64-bit difference hash and mean per-channel
// color from a decoded image.
func ComputeImageFeatures(img image.Image) (*domain.ImageFeatures, error) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	meanR, meanG, meanB := meanColor(img)

	return &domain.ImageFeatures{
		DHash:  hash.GetHash(),
		MeanR:  meanR,
		MeanG:  meanG,
		MeanB:  meanB,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// meanColor downscales the image to a small grid and averages each channel in
// 8-bit terms.
func meanColor(img image.Image) (r, g, b float64) {
	small := resize.Resize(colorSampleSize, colorSampleSize, img, resize.Bilinear)
	bounds := small.Bounds()

	var sumR, sumG, sumB, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pr, pg, pb, _ := small.At(x, y).RGBA()
			sumR += float64(pr >> 8)
			sumG += float64(pg >> 8)
			sumB += float64(pb >> 8)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return sumR / n, sumG / n, sumB / n
}

// HammingDistance is the popcount of the XOR of two 64-bit difference hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// CompareToAnchors combines Hamming distance, color similarity, a
// resolution/aspect proxy, and URL-pattern evidence into one composite score
// in [0,1]. Missing features (failed fetch) contribute neutral defaults; the
// lexical URL evidence still applies.
func CompareToAnchors(candidateURL string, candidate *domain.ImageFeatures, anchors []*domain.ImageFeatures) domain.AnchorComparison {
	cmp := domain.AnchorComparison{
		URL:       candidateURL,
		Packshot:  IsPackshotURL(candidateURL),
		Editorial: IsEditorialURL(candidateURL),
	}

	present := presentFeatures(anchors)

	if candidate == nil || len(present) == 0 {
		cmp.Distance = neutralDistance
		cmp.ColorSimilarity = neutralColorSimilarity
		cmp.Composite = composite(cmp, 0.5)
		return cmp
	}

	cmp.HasFeatures = true

	minDist := 64
	for _, a := range present {
		if d := HammingDistance(candidate.DHash, a.DHash); d < minDist {
			minDist = d
		}
	}
	cmp.Distance = minDist

	meanR, meanG, meanB := 0.0, 0.0, 0.0
	for _, a := range present {
		meanR += a.MeanR
		meanG += a.MeanG
		meanB += a.MeanB
	}
	n := float64(len(present))
	colorDist := math.Sqrt(
		sq(candidate.MeanR-meanR/n) + sq(candidate.MeanG-meanG/n) + sq(candidate.MeanB-meanB/n))
	cmp.ColorSimilarity = clamp01(1 - colorDist/maxColorDistance)

	cmp.Composite = composite(cmp, resolutionProxy(candidate))
	return cmp
}

func presentFeatures(feats []*domain.ImageFeatures) []*domain.ImageFeatures {
	out := make([]*domain.ImageFeatures, 0, len(feats))
	for _, f := range feats {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// resolutionProxy rewards larger, sanely-proportioned images in [0,1].
func resolutionProxy(f *domain.ImageFeatures) float64 {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return 0.5
	}
	areaNorm := math.Min(1, float64(f.Width*f.Height)/1_000_000)
	aspect := float64(f.Width) / float64(f.Height)
	if aspect < 0.4 || aspect > 2.5 {
		// Extreme aspect ratios are banners or strips, not product shots.
		areaNorm *= 0.5
	}
	return areaNorm
}

// composite applies the fixed weighted sum plus URL-pattern adjustments,
// clamped into [0,1].
func composite(cmp domain.AnchorComparison, resProxy float64) float64 {
	score := compositeDistanceWeight*(1-float64(cmp.Distance)/64) +
		compositeColorWeight*cmp.ColorSimilarity +
		compositeResolutionWeight*resProxy

	if cmp.Packshot {
		score += compositePackshotBonus
	}
	if cmp.Editorial {
		score -= compositeEditorialPenalty
	}

	return clamp01(score)
}

func sq(x float64) float64 { return x * x }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
