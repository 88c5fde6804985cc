package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNoCandidates is returned when extraction produced no usable candidates
	ErrNoCandidates = errors.New("no image candidates found")

	// ErrFetchFailed is returned when an image could not be downloaded
	ErrFetchFailed = errors.New("image fetch failed")

	// ErrDecodeFailed is returned when downloaded bytes could not be decoded as an image
	ErrDecodeFailed = errors.New("image decode failed")

	// ErrRefineUnavailable is returned when the refinement service is unreachable
	// or returned a malformed response
	ErrRefineUnavailable = errors.New("refinement service unavailable")

	// ErrBatchCancelled is returned when a feature batch was cancelled before
	// every candidate could be classified
	ErrBatchCancelled = errors.New("feature batch cancelled")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
