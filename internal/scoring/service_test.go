package scoring

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/internal/features"
	"github.com/lingkar-ai/lingkar-backend/internal/risk"
	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

type fakeAssembler struct {
	failFor map[string]error
}

func (f *fakeAssembler) Assemble(ctx context.Context, borrowerNumber string, referenceDate time.Time) (*features.Vector, error) {
	if err, ok := f.failFor[borrowerNumber]; ok {
		return nil, err
	}
	return &features.Vector{BorrowerNumber: borrowerNumber, ReferenceDate: referenceDate}, nil
}

type fakeScorer struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, vector *features.Vector) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[vector.BorrowerNumber], nil
}

type fakeRiskService struct {
	risk.Service
	borrowerRecords []risk.RecordBorrowerInput
	circleRecords   []risk.RecordCircleInput
}

func (f *fakeRiskService) RecordBorrower(ctx context.Context, input risk.RecordBorrowerInput) (*models.BorrowerRiskSnapshot, error) {
	f.borrowerRecords = append(f.borrowerRecords, input)
	return &models.BorrowerRiskSnapshot{
		BorrowerNumber: input.BorrowerNumber,
		AnchorDate:     risk.AnchorOf(input.Date),
		Risk:           input.Value,
	}, nil
}

func (f *fakeRiskService) RecordCircle(ctx context.Context, input risk.RecordCircleInput) (*models.CircleRiskSnapshot, error) {
	f.circleRecords = append(f.circleRecords, input)
	return &models.CircleRiskSnapshot{
		CircleID:      input.CircleID,
		MemberNumbers: input.MemberNumbers,
		AnchorDate:    risk.AnchorOf(input.Date),
		Risk:          input.Value,
	}, nil
}

type fakeDirectory struct {
	borrowers.Repository
	numbers   []string
	circleIDs []string
	circles   map[string]*models.Circle
}

func (f *fakeDirectory) ListBorrowerNumbers(ctx context.Context) ([]string, error) {
	return f.numbers, nil
}

func (f *fakeDirectory) ListCircleIDs(ctx context.Context) ([]string, error) {
	return f.circleIDs, nil
}

func (f *fakeDirectory) FindCircleByID(ctx context.Context, circleID string) (*models.Circle, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return circle, nil
}

type fakeExporter struct {
	rows []ScoreEventRow
	err  error
}

func (f *fakeExporter) ExportScore(ctx context.Context, row ScoreEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "scoring-test", Output: io.Discard})
}

func newScoringService(t *testing.T, assembler features.Assembler, scorer Scorer, snapshots *fakeRiskService, directory *fakeDirectory, exporter Exporter) Service {
	t.Helper()
	svc, err := NewService(assembler, scorer, snapshots, directory, exporter, nil, testLogger())
	require.NoError(t, err)
	return svc
}

func TestScoreBorrowerRecordsAndExports(t *testing.T) {
	snapshots := &fakeRiskService{}
	exporter := &fakeExporter{}
	svc := newScoringService(t,
		&fakeAssembler{},
		&fakeScorer{scores: map[string]float64{"BRW-001": 0.17}},
		snapshots,
		&fakeDirectory{},
		exporter,
	)

	snapshot, err := svc.ScoreBorrower(context.Background(), "BRW-001", time.Date(2025, 11, 26, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 0.17, snapshot.Risk, 1e-9)

	require.Len(t, snapshots.borrowerRecords, 1)
	assert.InDelta(t, 0.17, snapshots.borrowerRecords[0].Value, 1e-9)

	require.Len(t, exporter.rows, 1)
	assert.Equal(t, "borrower", exporter.rows[0].SubjectType)
	assert.Equal(t, "BRW-001", exporter.rows[0].SubjectID)
}

func TestScoreBorrowerScorerFailureWritesNothing(t *testing.T) {
	snapshots := &fakeRiskService{}
	svc := newScoringService(t,
		&fakeAssembler{},
		&fakeScorer{err: pkgerrors.New(pkgerrors.CodeDependency, "scorer unavailable")},
		snapshots,
		&fakeDirectory{},
		nil,
	)

	_, err := svc.ScoreBorrower(context.Background(), "BRW-001", time.Now())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, snapshots.borrowerRecords)
}

func TestScoreCircleRecordsMeanOfMembers(t *testing.T) {
	snapshots := &fakeRiskService{}
	directory := &fakeDirectory{
		circles: map[string]*models.Circle{
			"CIR-01": {
				CircleID:      "CIR-01",
				MemberNumbers: []string{"BRW-001", "BRW-002"},
			},
		},
	}
	svc := newScoringService(t,
		&fakeAssembler{},
		&fakeScorer{scores: map[string]float64{"BRW-001": 0.10, "BRW-002": 0.30}},
		snapshots,
		directory,
		nil,
	)

	snapshot, err := svc.ScoreCircle(context.Background(), "CIR-01", time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.20, snapshot.Risk, 1e-9)

	require.Len(t, snapshots.circleRecords, 1)
	assert.Equal(t, []string{"BRW-001", "BRW-002"}, snapshots.circleRecords[0].MemberNumbers)
	assert.Empty(t, snapshots.borrowerRecords, "member scores must not be persisted individually")
}

func TestScoreCircleMemberFailureWritesNothing(t *testing.T) {
	snapshots := &fakeRiskService{}
	directory := &fakeDirectory{
		circles: map[string]*models.Circle{
			"CIR-01": {
				CircleID:      "CIR-01",
				MemberNumbers: []string{"BRW-001", "BRW-404"},
			},
		},
	}
	svc := newScoringService(t,
		&fakeAssembler{failFor: map[string]error{"BRW-404": pkgerrors.New(pkgerrors.CodeNotFound, "borrower not found")}},
		&fakeScorer{scores: map[string]float64{"BRW-001": 0.10}},
		snapshots,
		directory,
		nil,
	)

	_, err := svc.ScoreCircle(context.Background(), "CIR-01", time.Now())
	require.Error(t, err)
	assert.Empty(t, snapshots.circleRecords)
}

func TestScoreCircleUnknownCircleIsNotFound(t *testing.T) {
	svc := newScoringService(t, &fakeAssembler{}, &fakeScorer{}, &fakeRiskService{}, &fakeDirectory{circles: map[string]*models.Circle{}}, nil)

	_, err := svc.ScoreCircle(context.Background(), "CIR-404", time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSweepCountsFailuresAndKeepsGoing(t *testing.T) {
	snapshots := &fakeRiskService{}
	directory := &fakeDirectory{
		numbers:   []string{"BRW-001", "BRW-BAD", "BRW-002"},
		circleIDs: []string{"CIR-01"},
		circles: map[string]*models.Circle{
			"CIR-01": {
				CircleID:      "CIR-01",
				MemberNumbers: []string{"BRW-001", "BRW-002"},
			},
		},
	}
	svc := newScoringService(t,
		&fakeAssembler{failFor: map[string]error{"BRW-BAD": pkgerrors.New(pkgerrors.CodeNotFound, "borrower not found")}},
		&fakeScorer{scores: map[string]float64{"BRW-001": 0.05, "BRW-002": 0.15}},
		snapshots,
		directory,
		nil,
	)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.BorrowersScored)
	assert.Equal(t, 1, report.BorrowerFailures)
	assert.Equal(t, 1, report.CirclesScored)
	assert.Equal(t, 0, report.CircleFailures)
	assert.Len(t, snapshots.borrowerRecords, 2)
	assert.Len(t, snapshots.circleRecords, 1)

	require.Len(t, multierr.Errors(report.Failures), 1)
	assert.Contains(t, report.Failures.Error(), "BRW-BAD")
}

func TestExporterFailureDoesNotFailScoring(t *testing.T) {
	snapshots := &fakeRiskService{}
	svc := newScoringService(t,
		&fakeAssembler{},
		&fakeScorer{scores: map[string]float64{"BRW-001": 0.12}},
		snapshots,
		&fakeDirectory{},
		&fakeExporter{err: pkgerrors.New(pkgerrors.CodeDependency, "bigquery down")},
	)

	_, err := svc.ScoreBorrower(context.Background(), "BRW-001", time.Now())
	require.NoError(t, err)
	assert.Len(t, snapshots.borrowerRecords, 1)
}
