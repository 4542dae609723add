package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/lingkar-ai/lingkar-backend/pkg/db"
	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxDeltaAttempts = 3
	retryBackoffBase = 25 * time.Millisecond
)

// Service maintains per-borrower daily cash flow totals. Buckets only exist
// while their total is positive; applying a delta creates, updates, or
// removes the row as needed.
type Service interface {
	ApplyDelta(ctx context.Context, input ApplyDeltaInput) error
	Totals(ctx context.Context, input TotalsInput) (*Totals, error)
	ListBuckets(ctx context.Context, borrowerNumber string, from, to time.Time) ([]models.CashFlowBucket, error)
}

// ApplyDeltaInput identifies one bucket and the signed amount to add.
type ApplyDeltaInput struct {
	BorrowerNumber string
	Kind           enums.CashFlowKind
	Day            time.Time
	Delta          decimal.Decimal
}

// TotalsInput scopes a totals query to a borrower and optional day range.
type TotalsInput struct {
	BorrowerNumber string
	From           time.Time
	To             time.Time
}

// Totals summarizes bucket totals per kind for one borrower.
type Totals struct {
	BorrowerNumber string          `json:"borrower_number"`
	Revenue        decimal.Decimal `json:"revenue"`
	Expense        decimal.Decimal `json:"expense"`
	Net            decimal.Decimal `json:"net"`
}

type service struct {
	repo    Repository
	backoff time.Duration
}

// NewService wires a bucket service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("aggregate repository required")
	}
	return &service{repo: repo, backoff: retryBackoffBase}, nil
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) ApplyDelta(ctx context.Context, input ApplyDeltaInput) error {
	if input.BorrowerNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash flow kind %q", input.Kind))
	}
	if input.Day.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "day is required")
	}
	if input.Delta.IsZero() {
		return nil
	}

	day := DayOf(input.Day)

	var lastErr error
	for attempt := 1; attempt <= maxDeltaAttempts; attempt++ {
		if attempt > 1 && s.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff << (attempt - 2)):
			}
		}

		retry, err := ApplyDeltaOnce(ctx, s.repo, input.BorrowerNumber, input.Kind, day, input.Delta)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}

	return pkgerrors.Wrap(pkgerrors.CodeConcurrency, lastErr, "bucket contention not resolved after retries")
}

// ApplyDeltaOnce makes a single attempt at the bucket transition using the
// provided repository, which lets callers run it inside their own
// transaction. The first return value reports whether the caller may retry.
func ApplyDeltaOnce(ctx context.Context, repo Repository, borrowerNumber string, kind enums.CashFlowKind, day time.Time, delta decimal.Decimal) (bool, error) {
	rows, err := repo.AddToBucket(ctx, borrowerNumber, kind, day, delta)
	if err != nil {
		if db.IsSerializationFailure(err) {
			return true, err
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cash flow bucket")
	}

	if rows > 0 {
		if err := repo.CollapseZero(ctx, borrowerNumber, kind, day); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collapse empty bucket")
		}
		return false, nil
	}

	// No row to update. A non-positive delta against an absent bucket is a
	// no-op: the total is already zero.
	if delta.Sign() <= 0 {
		return false, nil
	}

	bucket := &models.CashFlowBucket{
		ID:             uuid.New(),
		BorrowerNumber: borrowerNumber,
		Kind:           kind,
		Day:            day,
		Total:          delta,
	}
	if err := repo.InsertBucket(ctx, bucket); err != nil {
		// A concurrent writer created the row first; fold into it.
		if db.IsUniqueViolation(err, "") {
			return true, err
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cash flow bucket")
	}
	return false, nil
}

func (s *service) Totals(ctx context.Context, input TotalsInput) (*Totals, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}

	revenue, err := s.repo.SumByKind(ctx, input.BorrowerNumber, enums.CashFlowKindRevenue, input.From, input.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue buckets")
	}
	expense, err := s.repo.SumByKind(ctx, input.BorrowerNumber, enums.CashFlowKindExpense, input.From, input.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum expense buckets")
	}

	return &Totals{
		BorrowerNumber: input.BorrowerNumber,
		Revenue:        revenue,
		Expense:        expense,
		Net:            revenue.Sub(expense),
	}, nil
}

func (s *service) ListBuckets(ctx context.Context, borrowerNumber string, from, to time.Time) ([]models.CashFlowBucket, error) {
	if borrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	buckets, err := s.repo.ListBuckets(ctx, borrowerNumber, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cash flow buckets")
	}
	return buckets, nil
}
