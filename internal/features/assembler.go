package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

// Vector is the input handed to the external scorer for one borrower.
type Vector struct {
	BorrowerNumber    string          `json:"borrower_number"`
	AgeYears          int             `json:"age_years"`
	MaritalStatus     string          `json:"marital_status"`
	Religion          string          `json:"religion"`
	BusinessPurpose   string          `json:"business_purpose"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	DaysPastDue       int             `json:"days_past_due"`
	WeekRevenue       decimal.Decimal `json:"week_revenue"`
	WeekExpense       decimal.Decimal `json:"week_expense"`
	ReferenceDate     time.Time       `json:"reference_date"`
}

// Assembler builds scorer feature vectors from the borrower directory and
// the cash flow buckets.
type Assembler interface {
	Assemble(ctx context.Context, borrowerNumber string, referenceDate time.Time) (*Vector, error)
}

type assembler struct {
	directory borrowers.Repository
	buckets   aggregate.Service
}

// NewAssembler wires a feature assembler.
func NewAssembler(directory borrowers.Repository, buckets aggregate.Service) (Assembler, error) {
	if directory == nil {
		return nil, fmt.Errorf("borrowers repository required")
	}
	if buckets == nil {
		return nil, fmt.Errorf("aggregate service required")
	}
	return &assembler{directory: directory, buckets: buckets}, nil
}

// WeekBounds returns the Monday and Sunday of the calendar week containing
// the reference date. This Monday-based periodization is intentionally
// different from the Saturday risk anchor: cash flow features describe the
// trading week, snapshots address the reporting week.
func WeekBounds(reference time.Time) (time.Time, time.Time) {
	day := aggregate.DayOf(reference)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

func (a *assembler) Assemble(ctx context.Context, borrowerNumber string, referenceDate time.Time) (*Vector, error) {
	if borrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if referenceDate.IsZero() {
		referenceDate = time.Now().UTC()
	}

	borrower, err := a.directory.FindBorrowerByNumber(ctx, borrowerNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrower not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrower")
	}

	vector := &Vector{
		BorrowerNumber:  borrower.BorrowerNumber,
		MaritalStatus:   borrower.MaritalStatus,
		Religion:        borrower.Religion,
		BusinessPurpose: borrower.BusinessPurpose,
		ReferenceDate:   aggregate.DayOf(referenceDate),
	}
	if borrower.DateOfBirth != nil {
		vector.AgeYears = ageYears(*borrower.DateOfBirth, referenceDate)
	}

	loan, err := a.directory.LatestLoanSnapshot(ctx, borrowerNumber)
	if err == nil {
		vector.PrincipalAmount = loan.PrincipalAmount
		vector.OutstandingAmount = loan.OutstandingAmount
		vector.DaysPastDue = loan.DaysPastDue
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan snapshot")
	}

	monday, sunday := WeekBounds(referenceDate)
	totals, err := a.buckets.Totals(ctx, aggregate.TotalsInput{
		BorrowerNumber: borrowerNumber,
		From:           monday,
		To:             sunday,
	})
	if err != nil {
		return nil, err
	}
	vector.WeekRevenue = totals.Revenue
	vector.WeekExpense = totals.Expense

	return vector, nil
}

func ageYears(dateOfBirth, reference time.Time) int {
	years := reference.Year() - dateOfBirth.Year()
	anniversary := dateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(reference) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
