package cashflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/pagination"
)

const (
	maxTxAttempts    = 3
	retryBackoffBase = 25 * time.Millisecond
)

// Service records borrower cash flow entries and keeps the daily bucket
// totals in lockstep. Every mutation runs the entry write and the bucket
// delta in one transaction so the two tables never drift.
type Service interface {
	Create(ctx context.Context, input CreateEntryInput) (*models.CashFlowEntry, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateEntryInput) (*models.CashFlowEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.CashFlowEntry, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateEntryInput captures one reported transaction.
type CreateEntryInput struct {
	BorrowerNumber string
	Kind           enums.CashFlowKind
	Amount         decimal.Decimal
	Description    string
	OccurredAt     time.Time
}

// UpdateEntryInput carries the mutable fields of an entry. Nil fields are
// left unchanged.
type UpdateEntryInput struct {
	Kind        *enums.CashFlowKind
	Amount      *decimal.Decimal
	Description *string
	OccurredAt  *time.Time
}

// ListInput scopes an entry listing to a borrower.
type ListInput struct {
	BorrowerNumber string
	Kind           *enums.CashFlowKind
	From           time.Time
	To             time.Time
	Pagination     pagination.Params
}

// ListResult is one page of entries plus the cursor for the next page.
type ListResult struct {
	Entries    []models.CashFlowEntry
	NextCursor string
}

type service struct {
	repo    Repository
	buckets aggregate.Repository
	tx      txRunner
	backoff time.Duration
}

// NewService wires a cash flow service with its repositories and
// transaction runner.
func NewService(repo Repository, buckets aggregate.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cashflow repository required")
	}
	if buckets == nil {
		return nil, fmt.Errorf("bucket repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, buckets: buckets, tx: tx, backoff: retryBackoffBase}, nil
}

// retryableTxError marks a transaction that failed on a transient bucket
// conflict and should be rerun from the top.
type retryableTxError struct {
	cause error
}

func (e *retryableTxError) Error() string { return e.cause.Error() }
func (e *retryableTxError) Unwrap() error { return e.cause }

func (s *service) Create(ctx context.Context, input CreateEntryInput) (*models.CashFlowEntry, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash flow kind %q", input.Kind))
	}
	if input.Amount.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if input.OccurredAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "occurred_at is required")
	}

	entry := &models.CashFlowEntry{
		ID:             uuid.New(),
		BorrowerNumber: input.BorrowerNumber,
		Kind:           input.Kind,
		Amount:         input.Amount,
		Description:    input.Description,
		OccurredAt:     input.OccurredAt.UTC(),
	}

	err := s.runWithRetry(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cash flow entry")
		}
		return s.syncBucket(ctx, tx, entry.BorrowerNumber, entry.Kind, entry.OccurredAt, entry.Amount)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateEntryInput) (*models.CashFlowEntry, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	if input.Kind != nil && !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash flow kind %q", *input.Kind))
	}
	if input.Amount != nil && input.Amount.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}

	var updated *models.CashFlowEntry
	err := s.runWithRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cash flow entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cash flow entry")
		}

		oldKind := entry.Kind
		oldAmount := entry.Amount
		oldDay := aggregate.DayOf(entry.OccurredAt)

		if input.Kind != nil {
			entry.Kind = *input.Kind
		}
		if input.Amount != nil {
			entry.Amount = *input.Amount
		}
		if input.Description != nil {
			entry.Description = *input.Description
		}
		if input.OccurredAt != nil {
			entry.OccurredAt = input.OccurredAt.UTC()
		}

		if err := repo.Save(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cash flow entry")
		}

		newDay := aggregate.DayOf(entry.OccurredAt)
		if oldKind != entry.Kind || !oldDay.Equal(newDay) {
			// The entry moved buckets: back out of the old one, land in
			// the new one.
			if err := s.syncBucket(ctx, tx, entry.BorrowerNumber, oldKind, oldDay, oldAmount.Neg()); err != nil {
				return err
			}
			if err := s.syncBucket(ctx, tx, entry.BorrowerNumber, entry.Kind, newDay, entry.Amount); err != nil {
				return err
			}
		} else if diff := entry.Amount.Sub(oldAmount); !diff.IsZero() {
			if err := s.syncBucket(ctx, tx, entry.BorrowerNumber, entry.Kind, newDay, diff); err != nil {
				return err
			}
		}

		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}

	return s.runWithRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cash flow entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cash flow entry")
		}

		if err := repo.Delete(ctx, entry.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cash flow entry")
		}

		return s.syncBucket(ctx, tx, entry.BorrowerNumber, entry.Kind, aggregate.DayOf(entry.OccurredAt), entry.Amount.Neg())
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.CashFlowEntry, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cash flow entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cash flow entry")
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if input.Kind != nil && !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash flow kind %q", *input.Kind))
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	entries, err := s.repo.List(ctx, ListFilter{
		BorrowerNumber: input.BorrowerNumber,
		Kind:           input.Kind,
		From:           input.From,
		To:             input.To,
		Cursor:         cursor,
		Limit:          limit + 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cash flow entries")
	}

	result := &ListResult{Entries: entries}
	if len(entries) > limit {
		result.Entries = entries[:limit]
		last := result.Entries[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			Timestamp: last.OccurredAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

// syncBucket applies one bucket delta inside the caller's transaction,
// translating transient conflicts into a retry of the whole transaction.
func (s *service) syncBucket(ctx context.Context, tx *gorm.DB, borrowerNumber string, kind enums.CashFlowKind, day time.Time, delta decimal.Decimal) error {
	retry, err := aggregate.ApplyDeltaOnce(ctx, s.buckets.WithTx(tx), borrowerNumber, kind, aggregate.DayOf(day), delta)
	if err == nil {
		return nil
	}
	if retry {
		return &retryableTxError{cause: err}
	}
	return err
}

func (s *service) runWithRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if attempt > 1 && s.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff << (attempt - 2)):
			}
		}

		err := s.tx.WithTx(ctx, fn)
		if err == nil {
			return nil
		}

		var retryable *retryableTxError
		if !errors.As(err, &retryable) {
			return err
		}
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeConcurrency, lastErr, "bucket contention not resolved after retries")
}
