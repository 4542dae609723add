package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

// trendDeadBand is the score movement below which two snapshots are
// reported as stable.
const trendDeadBand = 0.01

// Service records and resolves weekly risk snapshots for borrowers and
// lending circles.
type Service interface {
	RecordBorrower(ctx context.Context, input RecordBorrowerInput) (*models.BorrowerRiskSnapshot, error)
	RecordCircle(ctx context.Context, input RecordCircleInput) (*models.CircleRiskSnapshot, error)
	CorrectBorrower(ctx context.Context, input CorrectInput) (int64, error)
	CorrectCircle(ctx context.Context, input CorrectInput) (int64, error)
	ResolveBorrower(ctx context.Context, borrowerNumber string, queryDate time.Time) (*Resolution, error)
	ResolveCircle(ctx context.Context, circleID string, queryDate time.Time) (*CircleResolution, error)
	ResolveForMember(ctx context.Context, memberNumber string, queryDate time.Time) (*CircleResolution, error)
	BorrowerStatus(ctx context.Context, borrowerNumber string, queryDate time.Time) (*Status, error)
	Overview(ctx context.Context) (*Overview, error)
}

// RecordBorrowerInput is one computed score to persist for a borrower.
type RecordBorrowerInput struct {
	BorrowerNumber string
	Date           time.Time
	Value          float64
}

// RecordCircleInput is one computed score to persist for a circle, together
// with the member set the score covered.
type RecordCircleInput struct {
	CircleID      string
	MemberNumbers []string
	Date          time.Time
	Value         float64
}

// CorrectInput addresses every snapshot at one (subject, anchor) key for an
// in-place operator fix.
type CorrectInput struct {
	Subject string
	Date    time.Time
	Value   float64
}

// Resolution is a resolved borrower snapshot. FellBack reports that the
// primary anchor was empty and the week-earlier snapshot was used.
type Resolution struct {
	BorrowerNumber string          `json:"borrower_number"`
	Risk           float64         `json:"risk"`
	Level          enums.RiskLevel `json:"level"`
	AnchorDate     time.Time       `json:"anchor_date"`
	RecordedAt     time.Time       `json:"recorded_at"`
	FellBack       bool            `json:"fell_back"`
}

// CircleResolution is a resolved circle snapshot.
type CircleResolution struct {
	CircleID      string          `json:"circle_id"`
	MemberNumbers []string        `json:"member_numbers"`
	Risk          float64         `json:"risk"`
	Level         enums.RiskLevel `json:"level"`
	AnchorDate    time.Time       `json:"anchor_date"`
	RecordedAt    time.Time       `json:"recorded_at"`
	FellBack      bool            `json:"fell_back"`
}

// Status pairs the current resolution with the prior week for trend display.
type Status struct {
	Current  Resolution   `json:"current"`
	Previous *Resolution  `json:"previous,omitempty"`
	Trend    *enums.Trend `json:"trend,omitempty"`
}

// Overview is the lender dashboard headline: how many subjects sit above the
// high-risk threshold on their latest snapshot.
type Overview struct {
	HighRiskBorrowers int64 `json:"high_risk_borrowers"`
	HighRiskCircles   int64 `json:"high_risk_circles"`
}

type service struct {
	repo Repository
}

// NewService wires a risk service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("risk repository required")
	}
	return &service{repo: repo}, nil
}

// TrendOf compares two scores, reporting stable inside the dead-band so
// rounding noise does not read as movement.
func TrendOf(current, previous float64) enums.Trend {
	if math.Abs(current-previous) < trendDeadBand {
		return enums.TrendStable
	}
	if current > previous {
		return enums.TrendRising
	}
	return enums.TrendFalling
}

func validateValue(value float64) error {
	if value < 0 || value > 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("risk value %v outside [0, 1]", value))
	}
	return nil
}

func (s *service) RecordBorrower(ctx context.Context, input RecordBorrowerInput) (*models.BorrowerRiskSnapshot, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if input.Date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date is required")
	}
	if err := validateValue(input.Value); err != nil {
		return nil, err
	}

	snapshot := &models.BorrowerRiskSnapshot{
		ID:             uuid.New(),
		BorrowerNumber: input.BorrowerNumber,
		AnchorDate:     AnchorOf(input.Date),
		Risk:           input.Value,
	}
	if err := s.repo.InsertBorrowerSnapshot(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert borrower snapshot")
	}
	return snapshot, nil
}

func (s *service) RecordCircle(ctx context.Context, input RecordCircleInput) (*models.CircleRiskSnapshot, error) {
	if input.CircleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required")
	}
	if len(input.MemberNumbers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member numbers are required")
	}
	if input.Date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date is required")
	}
	if err := validateValue(input.Value); err != nil {
		return nil, err
	}

	snapshot := &models.CircleRiskSnapshot{
		ID:            uuid.New(),
		CircleID:      input.CircleID,
		MemberNumbers: input.MemberNumbers,
		AnchorDate:    AnchorOf(input.Date),
		Risk:          input.Value,
	}
	if err := s.repo.InsertCircleSnapshot(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert circle snapshot")
	}
	return snapshot, nil
}

func (s *service) CorrectBorrower(ctx context.Context, input CorrectInput) (int64, error) {
	if input.Subject == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if input.Date.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "date is required")
	}
	if err := validateValue(input.Value); err != nil {
		return 0, err
	}

	count, err := s.repo.CorrectBorrowerSnapshots(ctx, input.Subject, AnchorOf(input.Date), input.Value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "correct borrower snapshots")
	}
	return count, nil
}

func (s *service) CorrectCircle(ctx context.Context, input CorrectInput) (int64, error) {
	if input.Subject == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required")
	}
	if input.Date.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "date is required")
	}
	if err := validateValue(input.Value); err != nil {
		return 0, err
	}

	count, err := s.repo.CorrectCircleSnapshots(ctx, input.Subject, AnchorOf(input.Date), input.Value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "correct circle snapshots")
	}
	return count, nil
}

func (s *service) ResolveBorrower(ctx context.Context, borrowerNumber string, queryDate time.Time) (*Resolution, error) {
	if borrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if queryDate.IsZero() {
		queryDate = time.Now().UTC()
	}

	primary := AnchorOf(queryDate)
	snapshot, fellBack, err := s.resolveBorrowerAt(ctx, borrowerNumber, primary)
	if err != nil {
		return nil, err
	}
	return borrowerResolution(snapshot, fellBack), nil
}

// resolveBorrowerAt tries the primary anchor, then exactly one week back.
func (s *service) resolveBorrowerAt(ctx context.Context, borrowerNumber string, primary time.Time) (*models.BorrowerRiskSnapshot, bool, error) {
	snapshot, err := s.repo.LatestBorrowerSnapshot(ctx, borrowerNumber, primary)
	if err == nil {
		return snapshot, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrower snapshot")
	}

	snapshot, err = s.repo.LatestBorrowerSnapshot(ctx, borrowerNumber, PreviousAnchor(primary))
	if err == nil {
		return snapshot, true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "risk snapshot not found")
	}
	return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrower snapshot")
}

func (s *service) ResolveCircle(ctx context.Context, circleID string, queryDate time.Time) (*CircleResolution, error) {
	if circleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required")
	}
	if queryDate.IsZero() {
		queryDate = time.Now().UTC()
	}

	primary := AnchorOf(queryDate)
	snapshot, err := s.repo.LatestCircleSnapshot(ctx, circleID, primary)
	if err == nil {
		return circleResolution(snapshot, false), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle snapshot")
	}

	snapshot, err = s.repo.LatestCircleSnapshot(ctx, circleID, PreviousAnchor(primary))
	if err == nil {
		return circleResolution(snapshot, true), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "risk snapshot not found")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle snapshot")
}

func (s *service) ResolveForMember(ctx context.Context, memberNumber string, queryDate time.Time) (*CircleResolution, error) {
	if memberNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member number is required")
	}
	if queryDate.IsZero() {
		queryDate = time.Now().UTC()
	}

	primary := AnchorOf(queryDate)
	snapshot, err := s.repo.LatestCircleSnapshotForMember(ctx, memberNumber, primary)
	if err == nil {
		return circleResolution(snapshot, false), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle snapshot for member")
	}

	snapshot, err = s.repo.LatestCircleSnapshotForMember(ctx, memberNumber, PreviousAnchor(primary))
	if err == nil {
		return circleResolution(snapshot, true), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "risk snapshot not found")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle snapshot for member")
}

// BorrowerStatus resolves the current snapshot and pairs it with the exact
// prior-week snapshot when one exists. The previous lookup does not fall
// back: comparing a snapshot against itself would always read stable.
func (s *service) BorrowerStatus(ctx context.Context, borrowerNumber string, queryDate time.Time) (*Status, error) {
	current, err := s.ResolveBorrower(ctx, borrowerNumber, queryDate)
	if err != nil {
		return nil, err
	}

	status := &Status{Current: *current}

	previous, err := s.repo.LatestBorrowerSnapshot(ctx, borrowerNumber, PreviousAnchor(current.AnchorDate))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return status, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous borrower snapshot")
	}

	status.Previous = borrowerResolution(previous, false)
	trend := TrendOf(current.Risk, previous.Risk)
	status.Trend = &trend
	return status, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	borrowers, err := s.repo.CountHighRiskBorrowers(ctx, enums.RiskThresholdHigh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count high risk borrowers")
	}
	circles, err := s.repo.CountHighRiskCircles(ctx, enums.RiskThresholdHigh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count high risk circles")
	}
	return &Overview{HighRiskBorrowers: borrowers, HighRiskCircles: circles}, nil
}

func borrowerResolution(snapshot *models.BorrowerRiskSnapshot, fellBack bool) *Resolution {
	return &Resolution{
		BorrowerNumber: snapshot.BorrowerNumber,
		Risk:           snapshot.Risk,
		Level:          enums.RiskLevelForScore(snapshot.Risk),
		AnchorDate:     snapshot.AnchorDate,
		RecordedAt:     snapshot.CreatedAt,
		FellBack:       fellBack,
	}
}

func circleResolution(snapshot *models.CircleRiskSnapshot, fellBack bool) *CircleResolution {
	return &CircleResolution{
		CircleID:      snapshot.CircleID,
		MemberNumbers: snapshot.MemberNumbers,
		Risk:          snapshot.Risk,
		Level:         enums.RiskLevelForScore(snapshot.Risk),
		AnchorDate:    snapshot.AnchorDate,
		RecordedAt:    snapshot.CreatedAt,
		FellBack:      fellBack,
	}
}
