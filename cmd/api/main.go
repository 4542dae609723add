package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lingkar-ai/lingkar-backend/api/controllers"
	"github.com/lingkar-ai/lingkar-backend/api/routes"
	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/internal/cashflow"
	"github.com/lingkar-ai/lingkar-backend/internal/extraction"
	"github.com/lingkar-ai/lingkar-backend/internal/features"
	"github.com/lingkar-ai/lingkar-backend/internal/risk"
	"github.com/lingkar-ai/lingkar-backend/internal/scoring"
	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	"github.com/lingkar-ai/lingkar-backend/pkg/db"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
	"github.com/lingkar-ai/lingkar-backend/pkg/metrics"
	"github.com/lingkar-ai/lingkar-backend/pkg/migrate"
	"github.com/lingkar-ai/lingkar-backend/pkg/pubsub"
	"github.com/lingkar-ai/lingkar-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	bucketRepo := aggregate.NewRepository(gormDB)
	aggregateService, err := aggregate.NewService(bucketRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create aggregate service", err)
		os.Exit(1)
	}
	cashFlowService, err := cashflow.NewService(cashflow.NewRepository(gormDB), bucketRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cash flow service", err)
		os.Exit(1)
	}
	riskService, err := risk.NewService(risk.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create risk service", err)
		os.Exit(1)
	}
	borrowerRepo := borrowers.NewRepository(gormDB)
	borrowerService, err := borrowers.NewService(borrowerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create borrower service", err)
		os.Exit(1)
	}
	assembler, err := features.NewAssembler(borrowerRepo, aggregateService)
	if err != nil {
		logg.Error(context.Background(), "failed to create feature assembler", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	scoringMetrics := metrics.NewScoringMetrics(registry)

	scorer, err := scoring.NewHTTPScorer(cfg.Scorer.URL, cfg.Scorer.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create scorer client", err)
		os.Exit(1)
	}
	scoringService, err := scoring.NewService(assembler, scorer, riskService, borrowerRepo, nil, scoringMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scoring service", err)
		os.Exit(1)
	}

	var scoringPublisher controllers.TriggerPublisher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		scoringPublisher = pubsubClient.ScoringPublisher()
	}

	var extractionService extraction.Service
	if cfg.FeatureFlags.EnableExtract {
		extractor, err := extraction.NewGeminiExtractor(context.Background(), cfg.Extraction)
		if err != nil {
			logg.Error(context.Background(), "failed to create extractor", err)
			os.Exit(1)
		}
		extractionService, err = extraction.NewService(extractor, cashFlowService, cfg.Extraction)
		if err != nil {
			logg.Error(context.Background(), "failed to create extraction service", err)
			os.Exit(1)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:           cfg,
			Logger:           logg,
			DBPinger:         dbClient,
			Redis:            redisClient,
			CashFlows:        cashFlowService,
			Aggregates:       aggregateService,
			Risk:             riskService,
			Borrowers:        borrowerService,
			Scoring:          scoringService,
			Extraction:       extractionService,
			ScoringPublisher: scoringPublisher,
			MetricsGatherer:  registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
