package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stylelens/backend/config"
	httpDelivery "github.com/stylelens/backend/internal/delivery/http"
	"github.com/stylelens/backend/internal/infrastructure/cache"
	"github.com/stylelens/backend/internal/infrastructure/imagefetch"
	"github.com/stylelens/backend/internal/infrastructure/refine"
	"github.com/stylelens/backend/internal/domain"
	"github.com/stylelens/backend/internal/usecase"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Environment == "development" || cfg.Pipeline.EnableDebugLogging {
		log.SetLevel(logrus.DebugLevel)
	}

	log.Infof("Starting StyleLens Backend v1.0.0")
	log.Infof("Environment: %s", cfg.Server.Environment)
	log.Infof("Port: %s", cfg.Server.Port)
	log.Infof("Cache Type: %s (TTL: %s)", cfg.Cache.Type, cfg.Cache.TTL)

	// Initialize infrastructure dependencies
	featureCache := cache.NewMemoryCache()

	fetcher := imagefetch.NewFetcher(imagefetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		PerHostRPS:   cfg.Fetch.PerHostRPS,
		Burst:        cfg.Fetch.Burst,
		UserAgent:    cfg.Fetch.UserAgent,
		Logger:       log,
	})

	var refiner domain.RefinementClient
	if cfg.Refine.Enabled {
		refiner = refine.NewClient(refine.Config{
			BaseURL: cfg.Refine.BaseURL,
			APIKey:  cfg.Refine.APIKey,
			Timeout: cfg.Refine.Timeout,
			Logger:  log,
		})
		log.Infof("Refinement service: %s", cfg.Refine.BaseURL)
	} else {
		log.Infof("Refinement service disabled; rule-based bucketing only")
	}

	// Initialize usecase layer
	debug := cfg.Pipeline.EnableDebugLogging

	extractService := usecase.NewExtractService(usecase.ExtractConfig{
		EnableDebugLogging: debug,
		Logger:             log,
	})
	scoringService := usecase.NewScoringService(usecase.ScoringConfig{
		EnableDebugLogging: debug,
		Logger:             log,
	})
	clusterService := usecase.NewClusterService(usecase.ClusterConfig{
		EnableDebugLogging: debug,
		Logger:             log,
	})
	visionService := usecase.NewVisionService(fetcher, featureCache, usecase.VisionConfig{
		Concurrency:        cfg.Fetch.Concurrency,
		CacheTTL:           cfg.Cache.TTL,
		EnableDebugLogging: debug,
		Logger:             log,
	})
	bucketService := usecase.NewBucketService(refiner, usecase.BucketConfig{
		ConfidentMaxDistance:  cfg.Pipeline.ConfidentMaxDistance,
		ConfidentMinComposite: cfg.Pipeline.ConfidentMinComposite,
		SemiMaxDistance:       cfg.Pipeline.SemiMaxDistance,
		SemiMinComposite:      cfg.Pipeline.SemiMinComposite,
		InlineBudget:          cfg.Refine.InlineBudget,
		EnableDebugLogging:    debug,
		Logger:                log,
	})

	pipelineService := usecase.NewPipelineService(
		extractService,
		scoringService,
		clusterService,
		visionService,
		bucketService,
		usecase.PipelineConfig{
			MaxImages:          cfg.Pipeline.MaxImages,
			EnableDebugLogging: debug,
			Logger:             log,
		},
	)

	log.Infof("Bucketing: distance<=%d/%d, composite>=%.2f/%.2f, fetch concurrency=%d",
		cfg.Pipeline.ConfidentMaxDistance, cfg.Pipeline.SemiMaxDistance,
		cfg.Pipeline.ConfidentMinComposite, cfg.Pipeline.SemiMinComposite,
		cfg.Fetch.Concurrency)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(pipelineService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Infof("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
