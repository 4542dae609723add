package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/internal/cron"
	"github.com/lingkar-ai/lingkar-backend/internal/features"
	"github.com/lingkar-ai/lingkar-backend/internal/risk"
	"github.com/lingkar-ai/lingkar-backend/internal/scoring"
	"github.com/lingkar-ai/lingkar-backend/pkg/bigquery"
	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	"github.com/lingkar-ai/lingkar-backend/pkg/db"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
	"github.com/lingkar-ai/lingkar-backend/pkg/metrics"
	"github.com/lingkar-ai/lingkar-backend/pkg/migrate"
	"github.com/lingkar-ai/lingkar-backend/pkg/pubsub"
	"github.com/lingkar-ai/lingkar-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "scoring-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "scoring-worker",
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
	aggregateService, err := aggregate.NewService(aggregate.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create aggregate service", err)
		os.Exit(1)
	}
	riskService, err := risk.NewService(risk.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create risk service", err)
		os.Exit(1)
	}
	borrowerRepo := borrowers.NewRepository(gormDB)
	assembler, err := features.NewAssembler(borrowerRepo, aggregateService)
	if err != nil {
		logg.Error(context.Background(), "failed to create feature assembler", err)
		os.Exit(1)
	}
	scorer, err := scoring.NewHTTPScorer(cfg.Scorer.URL, cfg.Scorer.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create scorer client", err)
		os.Exit(1)
	}

	var exporter scoring.Exporter
	if cfg.FeatureFlags.ExportScores {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		exporter, err = scoring.NewBigQueryExporter(bqClient, cfg.BigQuery.ScoreEventTable)
		if err != nil {
			logg.Error(context.Background(), "failed to create score exporter", err)
			os.Exit(1)
		}
	}

	scoringMetrics := metrics.NewScoringMetrics(prometheus.DefaultRegisterer)
	scoringService, err := scoring.NewService(assembler, scorer, riskService, borrowerRepo, exporter, scoringMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scoring service", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Worker.LockKey, cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}
	sweepJob, err := cron.NewSweepJob(cron.SweepJobParams{Logger: logg, Scoring: scoringService})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep job", err)
		os.Exit(1)
	}
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Worker.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting scoring worker")

	errCh := make(chan error, 2)
	go func() {
		errCh <- cronService.Run(ctx)
	}()

	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub", err)
			}
		}()
		consumer, err := scoring.NewConsumer(pubsubClient.ScoringSubscription(), scoringService, logg)
		if err != nil {
			logg.Error(ctx, "failed to create trigger consumer", err)
			os.Exit(1)
		}
		go func() {
			errCh <- consumer.Run(ctx)
		}()
	} else {
		logg.Info(ctx, "no gcp project configured, on-demand triggers disabled")
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "scoring worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "scoring worker shutting down gracefully")
}
