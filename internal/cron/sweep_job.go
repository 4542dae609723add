package cron

import (
	"context"
	"fmt"

	"github.com/lingkar-ai/lingkar-backend/internal/scoring"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

// SweepJobParams configure the weekly scoring sweep.
type SweepJobParams struct {
	Logger  *logger.Logger
	Scoring scoring.Service
}

type sweepJob struct {
	logg    *logger.Logger
	scoring scoring.Service
}

// NewSweepJob constructs the job that scores every borrower and circle.
func NewSweepJob(params SweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scoring == nil {
		return nil, fmt.Errorf("scoring service required")
	}
	return &sweepJob{logg: params.Logger, scoring: params.Scoring}, nil
}

func (j *sweepJob) Name() string { return "scoring-sweep" }

// Run executes one full sweep. The sweep keeps going past individual
// subject failures; the job reports them afterwards as one combined error
// so the cycle is counted as failed.
func (j *sweepJob) Run(ctx context.Context) error {
	report, err := j.scoring.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("scoring sweep: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "borrowers_scored", report.BorrowersScored)
	logCtx = j.logg.WithField(logCtx, "borrower_failures", report.BorrowerFailures)
	logCtx = j.logg.WithField(logCtx, "circles_scored", report.CirclesScored)
	logCtx = j.logg.WithField(logCtx, "circle_failures", report.CircleFailures)
	j.logg.Info(logCtx, "scoring sweep finished")
	if report.Failures != nil {
		return fmt.Errorf("scoring sweep completed with failures: %w", report.Failures)
	}
	return nil
}
