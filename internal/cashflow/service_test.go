package cashflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/pagination"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func setupCashFlowTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	entries := `
CREATE TABLE IF NOT EXISTS cash_flow_entries (
  id TEXT PRIMARY KEY,
  borrower_number TEXT NOT NULL,
  kind TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  description TEXT,
  occurred_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	buckets := `
CREATE TABLE IF NOT EXISTS cash_flow_buckets (
  id TEXT PRIMARY KEY,
  borrower_number TEXT NOT NULL,
  kind TEXT NOT NULL,
  day DATETIME NOT NULL,
  total NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (borrower_number, kind, day)
);`
	require.NoError(t, conn.Exec(entries).Error)
	require.NoError(t, conn.Exec(buckets).Error)
	return conn
}

func setupCashFlowService(t *testing.T) (Service, aggregate.Repository) {
	t.Helper()

	conn := setupCashFlowTestDB(t)
	buckets := aggregate.NewRepository(conn)
	svc, err := NewService(NewRepository(conn), buckets, testTxRunner{db: conn})
	require.NoError(t, err)
	return svc, buckets
}

func mustBucketTotal(t *testing.T, buckets aggregate.Repository, borrower string, kind enums.CashFlowKind, day time.Time) decimal.Decimal {
	t.Helper()
	bucket, err := buckets.FindBucket(context.Background(), borrower, kind, day)
	require.NoError(t, err)
	return bucket.Total
}

func TestCreateEntrySyncsBucket(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	occurred := time.Date(2026, 2, 3, 14, 30, 0, 0, time.UTC)

	entry, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.NewFromFloat(200.50),
		Description:    "warung sales",
		OccurredAt:     occurred,
	})
	require.NoError(t, err)
	require.NotNil(t, entry)

	total := mustBucketTotal(t, buckets, "BRW-010", enums.CashFlowKindRevenue, aggregate.DayOf(occurred))
	assert.True(t, total.Equal(decimal.NewFromFloat(200.50)), "got %s", total)
}

func TestCreateEntriesSameDayAccumulate(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	for _, amount := range []float64{100, 45.50} {
		_, err := svc.Create(ctx, CreateEntryInput{
			BorrowerNumber: "BRW-010",
			Kind:           enums.CashFlowKindExpense,
			Amount:         decimal.NewFromFloat(amount),
			OccurredAt:     day.Add(6 * time.Hour),
		})
		require.NoError(t, err)
	}

	total := mustBucketTotal(t, buckets, "BRW-010", enums.CashFlowKindExpense, day)
	assert.True(t, total.Equal(decimal.NewFromFloat(145.50)), "got %s", total)
}

func TestCreateEntryRejectsInvalidInput(t *testing.T) {
	svc, _ := setupCashFlowService(t)
	ctx := context.Background()

	cases := []CreateEntryInput{
		{Kind: enums.CashFlowKindRevenue, Amount: decimal.NewFromInt(10), OccurredAt: time.Now()},
		{BorrowerNumber: "BRW-010", Kind: "TRANSFER", Amount: decimal.NewFromInt(10), OccurredAt: time.Now()},
		{BorrowerNumber: "BRW-010", Kind: enums.CashFlowKindRevenue, Amount: decimal.NewFromInt(-10), OccurredAt: time.Now()},
		{BorrowerNumber: "BRW-010", Kind: enums.CashFlowKindRevenue, Amount: decimal.NewFromInt(10)},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v", input)
	}
}

func TestCreateEntryAcceptsZeroAmount(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	occurred := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)

	entry, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.Zero,
		OccurredAt:     occurred,
	})
	require.NoError(t, err)
	assert.True(t, entry.Amount.IsZero())

	// A zero delta never materializes a bucket.
	_, err = buckets.FindBucket(ctx, "BRW-010", enums.CashFlowKindRevenue, aggregate.DayOf(occurred))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateAmountAdjustsSameBucket(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	occurred := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	entry, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.NewFromInt(100),
		OccurredAt:     occurred,
	})
	require.NoError(t, err)

	newAmount := decimal.NewFromInt(60)
	updated, err := svc.Update(ctx, entry.ID, UpdateEntryInput{Amount: &newAmount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(newAmount))

	total := mustBucketTotal(t, buckets, "BRW-010", enums.CashFlowKindRevenue, aggregate.DayOf(occurred))
	assert.True(t, total.Equal(newAmount), "got %s", total)
}

func TestUpdateKindMovesBetweenBuckets(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	occurred := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	day := aggregate.DayOf(occurred)

	entry, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.NewFromInt(80),
		OccurredAt:     occurred,
	})
	require.NoError(t, err)

	expense := enums.CashFlowKindExpense
	_, err = svc.Update(ctx, entry.ID, UpdateEntryInput{Kind: &expense})
	require.NoError(t, err)

	// The revenue bucket emptied out and must be gone.
	_, err = buckets.FindBucket(ctx, "BRW-010", enums.CashFlowKindRevenue, day)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	total := mustBucketTotal(t, buckets, "BRW-010", expense, day)
	assert.True(t, total.Equal(decimal.NewFromInt(80)), "got %s", total)
}

func TestUpdateOccurredAtMovesBetweenDays(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	oldDay := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	newDay := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	// Second entry keeps the old bucket alive after the move.
	_, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.NewFromInt(50),
		OccurredAt:     oldDay.Add(8 * time.Hour),
	})
	require.NoError(t, err)

	entry, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.NewFromInt(30),
		OccurredAt:     oldDay.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	moved := newDay.Add(9 * time.Hour)
	_, err = svc.Update(ctx, entry.ID, UpdateEntryInput{OccurredAt: &moved})
	require.NoError(t, err)

	oldTotal := mustBucketTotal(t, buckets, "BRW-010", enums.CashFlowKindRevenue, oldDay)
	assert.True(t, oldTotal.Equal(decimal.NewFromInt(50)), "got %s", oldTotal)

	newTotal := mustBucketTotal(t, buckets, "BRW-010", enums.CashFlowKindRevenue, newDay)
	assert.True(t, newTotal.Equal(decimal.NewFromInt(30)), "got %s", newTotal)
}

func TestDeleteEntryCollapsesEmptyBucket(t *testing.T) {
	svc, buckets := setupCashFlowService(t)
	ctx := context.Background()
	occurred := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	entry, err := svc.Create(ctx, CreateEntryInput{
		BorrowerNumber: "BRW-010",
		Kind:           enums.CashFlowKindRevenue,
		Amount:         decimal.NewFromInt(100),
		OccurredAt:     occurred,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, entry.ID))

	_, err = buckets.FindBucket(ctx, "BRW-010", enums.CashFlowKindRevenue, aggregate.DayOf(occurred))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = svc.Get(ctx, entry.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteMissingEntryReturnsNotFound(t *testing.T) {
	svc, _ := setupCashFlowService(t)

	err := svc.Delete(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginatesWithCursor(t *testing.T) {
	svc, _ := setupCashFlowService(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, CreateEntryInput{
			BorrowerNumber: "BRW-010",
			Kind:           enums.CashFlowKindRevenue,
			Amount:         decimal.NewFromInt(int64(i + 1)),
			OccurredAt:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, ListInput{
		BorrowerNumber: "BRW-010",
		Pagination:     pagination.Params{Limit: 3},
	})
	require.NoError(t, err)
	assert.Len(t, first.Entries, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, ListInput{
		BorrowerNumber: "BRW-010",
		Pagination:     pagination.Params{Limit: 3, Cursor: first.NextCursor},
	})
	require.NoError(t, err)
	assert.Len(t, second.Entries, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[string]bool{}
	for _, entry := range append(first.Entries, second.Entries...) {
		require.False(t, seen[entry.ID.String()], "entry repeated across pages")
		seen[entry.ID.String()] = true
	}
}

func TestListOrdersByOccurredAtNotInsertion(t *testing.T) {
	svc, _ := setupCashFlowService(t)
	ctx := context.Background()

	// Backfilled entry: inserted last but occurred first.
	occurred := []time.Time{
		time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, at := range occurred {
		_, err := svc.Create(ctx, CreateEntryInput{
			BorrowerNumber: "BRW-010",
			Kind:           enums.CashFlowKindRevenue,
			Amount:         decimal.NewFromInt(10),
			OccurredAt:     at,
		})
		require.NoError(t, err)
	}

	result, err := svc.List(ctx, ListInput{BorrowerNumber: "BRW-010"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)
	assert.True(t, result.Entries[0].OccurredAt.Equal(occurred[1]))
	assert.True(t, result.Entries[1].OccurredAt.Equal(occurred[0]))
	assert.True(t, result.Entries[2].OccurredAt.Equal(occurred[2]))
}

func TestListCursorWalksOccurredAtOrder(t *testing.T) {
	svc, _ := setupCashFlowService(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of chronological order so insertion order cannot mask a
	// wrong sort key.
	for _, offset := range []int{3, 0, 4, 1, 2} {
		_, err := svc.Create(ctx, CreateEntryInput{
			BorrowerNumber: "BRW-010",
			Kind:           enums.CashFlowKindRevenue,
			Amount:         decimal.NewFromInt(10),
			OccurredAt:     base.AddDate(0, 0, offset),
		})
		require.NoError(t, err)
	}

	var all []time.Time
	cursor := ""
	for {
		page, err := svc.List(ctx, ListInput{
			BorrowerNumber: "BRW-010",
			Pagination:     pagination.Params{Limit: 2, Cursor: cursor},
		})
		require.NoError(t, err)
		for _, entry := range page.Entries {
			all = append(all, entry.OccurredAt)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].Before(all[i-1]), "entries out of occurred_at order at %d", i)
	}
}

func TestListFiltersByKindAndRange(t *testing.T) {
	svc, _ := setupCashFlowService(t)
	ctx := context.Background()

	seed := []struct {
		kind enums.CashFlowKind
		at   time.Time
	}{
		{enums.CashFlowKindRevenue, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{enums.CashFlowKindRevenue, time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)},
		{enums.CashFlowKindExpense, time.Date(2026, 2, 5, 11, 0, 0, 0, time.UTC)},
		{enums.CashFlowKindRevenue, time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)},
	}
	for _, row := range seed {
		_, err := svc.Create(ctx, CreateEntryInput{
			BorrowerNumber: "BRW-010",
			Kind:           row.kind,
			Amount:         decimal.NewFromInt(10),
			OccurredAt:     row.at,
		})
		require.NoError(t, err)
	}

	revenue := enums.CashFlowKindRevenue
	result, err := svc.List(ctx, ListInput{
		BorrowerNumber: "BRW-010",
		Kind:           &revenue,
		From:           time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		To:             time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.True(t, result.Entries[0].OccurredAt.Equal(seed[1].at))
}
