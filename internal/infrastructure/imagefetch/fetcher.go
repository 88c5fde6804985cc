package imagefetch

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"github.com/stylelens/backend/internal/domain"
)

// Config holds fetcher configuration
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	PerHostRPS   float64
	Burst        int
	UserAgent    string
	Logger       *logrus.Logger
}

// Fetcher downloads and decodes remote images with per-host politeness
// limiting, a request timeout, and a body size cap.
type Fetcher struct {
	httpClient   *http.Client
	maxBodyBytes int64
	perHostRPS   rate.Limit
	burst        int
	userAgent    string
	log          *logrus.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a new image fetcher
func NewFetcher(config Config) *Fetcher {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxBody := config.MaxBodyBytes
	if maxBody == 0 {
		maxBody = 10 << 20
	}
	rps := config.PerHostRPS
	if rps <= 0 {
		rps = 4
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 8
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "StyleLens/1.0"
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Fetcher{
		httpClient:   &http.Client{Timeout: timeout},
		maxBodyBytes: maxBody,
		perHostRPS:   rate.Limit(rps),
		burst:        burst,
		userAgent:    userAgent,
		log:          log,
		limiters:     make(map[string]*rate.Limiter),
	}
}

// hostLimiter returns the rate limiter for one host, creating it on first use.
func (f *Fetcher) hostLimiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(f.perHostRPS, f.burst)
		f.limiters[host] = limiter
	}
	return limiter
}

// FetchImage downloads and decodes one image. Retries once on a transient
// failure; all failures wrap domain sentinel errors so callers can degrade to
// neutral features.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: unsupported url %q", domain.ErrFetchFailed, rawURL)
	}

	if err := f.hostLimiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrFetchFailed, err)
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		img, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == 1 {
			f.log.Debugf("[FETCH] retrying %s after error: %v", rawURL, err)
			time.Sleep(200 * time.Millisecond)
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,image/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isImageContentType(ct) {
		return nil, fmt.Errorf("%w: content type %q", domain.ErrDecodeFailed, ct)
	}

	body := io.LimitReader(resp.Body, f.maxBodyBytes)
	img, format, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}

	f.log.Debugf("[FETCH] decoded %s (%s, %dx%d)", rawURL, format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// isImageContentType accepts image/* except vector formats.
func isImageContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	if !strings.HasPrefix(ct, "image/") {
		return false
	}
	return ct != "image/svg+xml"
}
