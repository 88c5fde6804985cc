package domain

import (
	"context"
	"image"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ImageFetcher downloads and decodes a single remote image. Implementations
// own timeouts, politeness limits, and size caps; a failed fetch returns an
// error and the caller degrades to neutral features.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (image.Image, error)
}

// RefinementClient is the external classification collaborator. A nil result
// with a non-nil error means the refinement stage must be skipped; the
// returned partition is never authoritative on its own.
type RefinementClient interface {
	Refine(ctx context.Context, payload *RefinePayload) (*BucketPartition, error)
}
