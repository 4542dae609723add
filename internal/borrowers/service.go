package borrowers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/pkg/db"
	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

// Service manages the borrower directory: static attributes, lending
// circles, and imported loan positions.
type Service interface {
	CreateBorrower(ctx context.Context, input CreateBorrowerInput) (*models.Borrower, error)
	GetBorrower(ctx context.Context, borrowerNumber string) (*models.Borrower, error)
	ListBorrowers(ctx context.Context, limit, offset int) ([]models.Borrower, error)
	CreateCircle(ctx context.Context, input CreateCircleInput) (*models.Circle, error)
	GetCircle(ctx context.Context, circleID string) (*models.Circle, error)
	RecordLoanSnapshot(ctx context.Context, input LoanSnapshotInput) (*models.LoanSnapshot, error)
}

// CreateBorrowerInput carries the static attributes captured at onboarding.
type CreateBorrowerInput struct {
	BorrowerNumber  string
	DateOfBirth     *time.Time
	MaritalStatus   string
	Religion        string
	BusinessPurpose string
}

// CreateCircleInput registers a lending circle and its member set.
type CreateCircleInput struct {
	CircleID      string
	Name          string
	MemberNumbers []string
}

// LoanSnapshotInput is one imported loan position.
type LoanSnapshotInput struct {
	BorrowerNumber    string
	PrincipalAmount   decimal.Decimal
	OutstandingAmount decimal.Decimal
	DaysPastDue       int
}

type service struct {
	repo Repository
}

// NewService wires a borrower directory service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("borrowers repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateBorrower(ctx context.Context, input CreateBorrowerInput) (*models.Borrower, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}

	borrower := &models.Borrower{
		ID:              uuid.New(),
		BorrowerNumber:  input.BorrowerNumber,
		DateOfBirth:     input.DateOfBirth,
		MaritalStatus:   input.MaritalStatus,
		Religion:        input.Religion,
		BusinessPurpose: input.BusinessPurpose,
	}
	if err := s.repo.CreateBorrower(ctx, borrower); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "borrower number already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create borrower")
	}
	return borrower, nil
}

func (s *service) GetBorrower(ctx context.Context, borrowerNumber string) (*models.Borrower, error) {
	if borrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	borrower, err := s.repo.FindBorrowerByNumber(ctx, borrowerNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrower not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrower")
	}
	return borrower, nil
}

func (s *service) ListBorrowers(ctx context.Context, limit, offset int) ([]models.Borrower, error) {
	list, err := s.repo.ListBorrowers(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list borrowers")
	}
	return list, nil
}

func (s *service) CreateCircle(ctx context.Context, input CreateCircleInput) (*models.Circle, error) {
	if input.CircleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required")
	}
	if len(input.MemberNumbers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member numbers are required")
	}

	circle := &models.Circle{
		ID:            uuid.New(),
		CircleID:      input.CircleID,
		Name:          input.Name,
		MemberNumbers: input.MemberNumbers,
	}
	if err := s.repo.CreateCircle(ctx, circle); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "circle id already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create circle")
	}
	return circle, nil
}

func (s *service) GetCircle(ctx context.Context, circleID string) (*models.Circle, error) {
	if circleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required")
	}
	circle, err := s.repo.FindCircleByID(ctx, circleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "circle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle")
	}
	return circle, nil
}

func (s *service) RecordLoanSnapshot(ctx context.Context, input LoanSnapshotInput) (*models.LoanSnapshot, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if input.PrincipalAmount.Sign() < 0 || input.OutstandingAmount.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan amounts must not be negative")
	}
	if input.DaysPastDue < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days past due must not be negative")
	}

	snapshot := &models.LoanSnapshot{
		ID:                uuid.New(),
		BorrowerNumber:    input.BorrowerNumber,
		PrincipalAmount:   input.PrincipalAmount,
		OutstandingAmount: input.OutstandingAmount,
		DaysPastDue:       input.DaysPastDue,
	}
	if err := s.repo.CreateLoanSnapshot(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan snapshot")
	}
	return snapshot, nil
}
