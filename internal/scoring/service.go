package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/internal/features"
	"github.com/lingkar-ai/lingkar-backend/internal/risk"
	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
	"github.com/lingkar-ai/lingkar-backend/pkg/metrics"
)

// Service orchestrates one scoring run: assemble features, call the external
// scorer, persist the snapshot. A scorer failure writes nothing.
type Service interface {
	ScoreBorrower(ctx context.Context, borrowerNumber string, date time.Time) (*models.BorrowerRiskSnapshot, error)
	ScoreCircle(ctx context.Context, circleID string, date time.Time) (*models.CircleRiskSnapshot, error)
	Sweep(ctx context.Context) (*SweepReport, error)
}

// SweepReport summarizes one full scoring pass. Failures carries the
// combined per-subject errors so callers can surface what went wrong, not
// just how often.
type SweepReport struct {
	BorrowersScored  int   `json:"borrowers_scored"`
	BorrowerFailures int   `json:"borrower_failures"`
	CirclesScored    int   `json:"circles_scored"`
	CircleFailures   int   `json:"circle_failures"`
	Failures         error `json:"-"`
}

type service struct {
	assembler features.Assembler
	scorer    Scorer
	snapshots risk.Service
	directory borrowers.Repository
	exporter  Exporter
	metrics   *metrics.ScoringMetrics
	logg      *logger.Logger
}

// NewService wires the scoring orchestrator. Exporter and metrics are
// optional; everything else is required.
func NewService(
	assembler features.Assembler,
	scorer Scorer,
	snapshots risk.Service,
	directory borrowers.Repository,
	exporter Exporter,
	scoringMetrics *metrics.ScoringMetrics,
	logg *logger.Logger,
) (Service, error) {
	if assembler == nil {
		return nil, fmt.Errorf("feature assembler required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer required")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("risk service required")
	}
	if directory == nil {
		return nil, fmt.Errorf("borrowers repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		assembler: assembler,
		scorer:    scorer,
		snapshots: snapshots,
		directory: directory,
		exporter:  exporter,
		metrics:   scoringMetrics,
		logg:      logg,
	}, nil
}

func (s *service) ScoreBorrower(ctx context.Context, borrowerNumber string, date time.Time) (*models.BorrowerRiskSnapshot, error) {
	if borrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	value, err := s.computeBorrowerScore(ctx, borrowerNumber, date)
	if err != nil {
		s.metrics.IncFailure("borrower")
		return nil, err
	}

	snapshot, err := s.snapshots.RecordBorrower(ctx, risk.RecordBorrowerInput{
		BorrowerNumber: borrowerNumber,
		Date:           date,
		Value:          value,
	})
	if err != nil {
		s.metrics.IncFailure("borrower")
		return nil, err
	}

	s.metrics.ObserveScore("borrower", value)
	s.export(ctx, ScoreEventRow{
		SubjectType: "borrower",
		SubjectID:   borrowerNumber,
		AnchorDate:  snapshot.AnchorDate,
		Risk:        value,
		ComputedAt:  time.Now().UTC(),
	})
	return snapshot, nil
}

func (s *service) computeBorrowerScore(ctx context.Context, borrowerNumber string, date time.Time) (float64, error) {
	vector, err := s.assembler.Assemble(ctx, borrowerNumber, date)
	if err != nil {
		return 0, err
	}
	return s.scorer.Score(ctx, vector)
}

// ScoreCircle scores every member fresh and records the mean. Any member
// failure aborts the run with nothing written.
func (s *service) ScoreCircle(ctx context.Context, circleID string, date time.Time) (*models.CircleRiskSnapshot, error) {
	if circleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	circle, err := s.directory.FindCircleByID(ctx, circleID)
	if err != nil {
		s.metrics.IncFailure("circle")
		if isRecordNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "circle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle")
	}
	if len(circle.MemberNumbers) == 0 {
		s.metrics.IncFailure("circle")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "circle has no members")
	}

	var sum float64
	for _, member := range circle.MemberNumbers {
		value, err := s.computeBorrowerScore(ctx, member, date)
		if err != nil {
			s.metrics.IncFailure("circle")
			return nil, err
		}
		sum += value
	}
	mean := sum / float64(len(circle.MemberNumbers))

	snapshot, err := s.snapshots.RecordCircle(ctx, risk.RecordCircleInput{
		CircleID:      circle.CircleID,
		MemberNumbers: circle.MemberNumbers,
		Date:          date,
		Value:         mean,
	})
	if err != nil {
		s.metrics.IncFailure("circle")
		return nil, err
	}

	s.metrics.ObserveScore("circle", mean)
	s.export(ctx, ScoreEventRow{
		SubjectType: "circle",
		SubjectID:   circle.CircleID,
		AnchorDate:  snapshot.AnchorDate,
		Risk:        mean,
		ComputedAt:  time.Now().UTC(),
	})
	return snapshot, nil
}

// Sweep scores every borrower, then every circle. Individual failures are
// counted and combined into the report; the sweep itself keeps going. The
// error return is reserved for failures that stop the sweep outright.
func (s *service) Sweep(ctx context.Context) (*SweepReport, error) {
	now := time.Now().UTC()
	report := &SweepReport{}

	numbers, err := s.directory.ListBorrowerNumbers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list borrower numbers")
	}
	for _, number := range numbers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.ScoreBorrower(ctx, number, now); err != nil {
			report.BorrowerFailures++
			report.Failures = multierr.Append(report.Failures, fmt.Errorf("borrower %s: %w", number, err))
			logCtx := s.logg.WithBorrower(ctx, number)
			s.logg.Warn(logCtx, "borrower scoring failed during sweep")
			continue
		}
		report.BorrowersScored++
	}

	circleIDs, err := s.directory.ListCircleIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list circle ids")
	}
	for _, circleID := range circleIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.ScoreCircle(ctx, circleID, now); err != nil {
			report.CircleFailures++
			report.Failures = multierr.Append(report.Failures, fmt.Errorf("circle %s: %w", circleID, err))
			logCtx := s.logg.WithCircle(ctx, circleID)
			s.logg.Warn(logCtx, "circle scoring failed during sweep")
			continue
		}
		report.CirclesScored++
	}

	return report, nil
}

// export ships the score event when an exporter is configured. Failures are
// logged, never propagated: the snapshot is already durable.
func (s *service) export(ctx context.Context, row ScoreEventRow) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.ExportScore(ctx, row); err != nil {
		s.logg.Error(ctx, "score event export failed", err)
	}
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
