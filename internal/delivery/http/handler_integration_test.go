package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/config"
	"github.com/stylelens/backend/internal/domain"
	"github.com/stylelens/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

// newTestPipeline builds a pipeline with no vision service: analysis runs on
// lexical signals with neutral perceptual features, which is enough to
// exercise the HTTP surface.
func newTestPipeline() *usecase.PipelineService {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	return usecase.NewPipelineService(
		usecase.NewExtractService(usecase.ExtractConfig{Logger: log}),
		usecase.NewScoringService(usecase.ScoringConfig{Logger: log}),
		usecase.NewClusterService(usecase.ClusterConfig{Logger: log}),
		nil,
		usecase.NewBucketService(nil, usecase.BucketConfig{Logger: log}),
		usecase.PipelineConfig{Logger: log},
	)
}

// setupTestRouter creates a test router with default configuration
func setupTestRouter(pipeline *usecase.PipelineService) *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
		},
	}
	return SetupRouter(cfg, NewHandler(pipeline))
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, _ := http.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(newTestPipeline())

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "stylelens-backend" {
			t.Errorf("service = %v, want stylelens-backend", response["service"])
		}
	})
}

func TestExtractEndpoint(t *testing.T) {
	router := setupTestRouter(newTestPipeline())

	t.Run("extracts candidates from html", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/images/extract", map[string]string{
			"html": `<html><head><meta property="og:image" content="/img/main.jpg"></head>` +
				`<body><img src="/img/06987325409-p.jpg" alt="front view" width="800" height="1200"></body></html>`,
			"baseUrl": "https://shop.example.com/products/dress",
		})

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var response struct {
			Candidates []domain.ImageCandidate `json:"candidates"`
			Count      int                     `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.Count != 2 {
			t.Errorf("count = %d, want 2", response.Count)
		}
		for _, c := range response.Candidates {
			if c.URL == "" || c.URL[0] == '/' {
				t.Errorf("candidate URL %q is not absolute", c.URL)
			}
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/images/extract", map[string]string{"html": "<html></html>"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestRankEndpoint(t *testing.T) {
	router := setupTestRouter(newTestPipeline())

	t.Run("ranks explicit candidates", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/images/rank", domain.RankRequest{
			Candidates: []domain.ImageCandidate{
				{URL: "https://shop.example.com/products/06987325409-p/06987325409-p.jpg", Origin: domain.OriginImgElement},
				{URL: "https://shop.example.com/campaign/editorial-banner.jpg", Origin: domain.OriginImgElement},
			},
			Anchors: []string{"https://shop.example.com/products/06987325409-p/06987325409-p.jpg"},
		})

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var response struct {
			Images []string `json:"images"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(response.Images) == 0 {
			t.Fatal("images is empty, want at least the anchor-matching candidate")
		}
		if response.Images[0] != "https://shop.example.com/products/06987325409-p/06987325409-p.jpg" {
			t.Errorf("top image = %s, want the packshot", response.Images[0])
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/images/rank", domain.RankRequest{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	router := setupTestRouter(newTestPipeline())

	t.Run("returns a complete partition", func(t *testing.T) {
		candidates := []domain.ImageCandidate{
			{URL: "https://shop.example.com/products/06987325409-p/06987325409-p.jpg", Origin: domain.OriginImgElement},
			{URL: "https://shop.example.com/products/06987325409-p/06987325409-e1.jpg", Origin: domain.OriginImgElement},
			{URL: "https://cdn.other.com/banner/video-teaser.jpg", Origin: domain.OriginBackgroundStyle},
		}
		w := postJSON(t, router, "/api/v1/images/analyze", domain.AnalyzeRequest{
			Candidates: candidates,
			Anchors:    []string{"https://shop.example.com/products/06987325409-p/06987325409-p.jpg"},
		})

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var partition domain.BucketPartition
		if err := json.Unmarshal(w.Body.Bytes(), &partition); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if partition.Size() != len(candidates) {
			t.Errorf("partition size = %d, want %d", partition.Size(), len(candidates))
		}
		if len(partition.Confident) == 0 {
			t.Error("confident bucket empty, want non-empty for non-empty candidate set")
		}
		if !partition.Contains("https://shop.example.com/products/06987325409-p/06987325409-p.jpg") {
			t.Error("anchor candidate missing from partition")
		}
	})

	t.Run("distinguishes fatal failure from empty success", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/images/analyze", domain.AnalyzeRequest{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d for missing input", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects candidates with only empty urls", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/images/analyze", domain.AnalyzeRequest{
			Candidates: []domain.ImageCandidate{{URL: ""}},
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Status = %d, want %d for empty candidate set", w.Code, http.StatusUnprocessableEntity)
		}
	})
}
