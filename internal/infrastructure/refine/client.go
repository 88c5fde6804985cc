package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/internal/domain"
)

// Client talks to the external refinement collaborator: it posts the candidate
// manifest plus provisional buckets and receives a same-shape re-partition.
// Any transport or schema failure maps to domain.ErrRefineUnavailable so the
// pipeline can skip the stage; the response is never treated as authoritative
// here — merging happens under the bucket service's invariants.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logrus.Logger
}

// Config holds refinement client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// NewClient creates a new refinement client
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		log:        log,
	}
}

// refineResponse is the wire shape of the collaborator's answer.
type refineResponse struct {
	Confident     []string `json:"confident"`
	SemiConfident []string `json:"semiConfident"`
	NotConfident  []string `json:"notConfident"`
}

// Refine posts the payload and parses the returned partition. One round-trip,
// one timeout; no retry chain, that is the collaborator's internal concern.
func (c *Client) Refine(ctx context.Context, payload *domain.RefinePayload) (*domain.BucketPartition, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", domain.ErrRefineUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %v", domain.ErrRefineUnavailable, err)
	}

	endpoint := c.baseURL + "/v1/refine"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRefineUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRefineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warnf("[REFINE] status %d: %s", resp.StatusCode, string(raw))
		return nil, fmt.Errorf("%w: status %d", domain.ErrRefineUnavailable, resp.StatusCode)
	}

	var parsed refineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrRefineUnavailable, err)
	}

	// A response naming zero URLs is a schema violation, not a verdict.
	if len(parsed.Confident)+len(parsed.SemiConfident)+len(parsed.NotConfident) == 0 {
		return nil, fmt.Errorf("%w: empty partition", domain.ErrRefineUnavailable)
	}

	return &domain.BucketPartition{
		Confident:     parsed.Confident,
		SemiConfident: parsed.SemiConfident,
		NotConfident:  parsed.NotConfident,
	}, nil
}
