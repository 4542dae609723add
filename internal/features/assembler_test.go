package features

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

func setupFeaturesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{`
CREATE TABLE IF NOT EXISTS borrowers (
  id TEXT PRIMARY KEY,
  borrower_number TEXT NOT NULL UNIQUE,
  date_of_birth DATETIME,
  marital_status TEXT,
  religion TEXT,
  business_purpose TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS loan_snapshots (
  id TEXT PRIMARY KEY,
  borrower_number TEXT NOT NULL,
  principal_amount NUMERIC NOT NULL,
  outstanding_amount NUMERIC NOT NULL,
  days_past_due INTEGER NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cash_flow_buckets (
  id TEXT PRIMARY KEY,
  borrower_number TEXT NOT NULL,
  kind TEXT NOT NULL,
  day DATETIME NOT NULL,
  total NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (borrower_number, kind, day)
);`}
	for _, ddl := range schemas {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	return conn
}

func setupAssembler(t *testing.T) (Assembler, borrowers.Service, aggregate.Service) {
	t.Helper()

	conn := setupFeaturesTestDB(t)
	directory := borrowers.NewRepository(conn)
	directorySvc, err := borrowers.NewService(directory)
	require.NoError(t, err)

	buckets, err := aggregate.NewService(aggregate.NewRepository(conn))
	require.NoError(t, err)

	asm, err := NewAssembler(directory, buckets)
	require.NoError(t, err)
	return asm, directorySvc, buckets
}

func TestWeekBoundsMondayThroughSunday(t *testing.T) {
	// Wednesday 2026-03-04.
	monday, sunday := WeekBounds(time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC))
	assert.True(t, monday.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, sunday.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))

	// Monday maps to itself, Sunday stays in the same week.
	monday, _ = WeekBounds(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.True(t, monday.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	monday, sunday = WeekBounds(time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC))
	assert.True(t, monday.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, sunday.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))
}

func TestAssembleBuildsFullVector(t *testing.T) {
	asm, directory, buckets := setupAssembler(t)
	ctx := context.Background()

	dob := time.Date(1990, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := directory.CreateBorrower(ctx, borrowers.CreateBorrowerInput{
		BorrowerNumber:  "BRW-001",
		DateOfBirth:     &dob,
		MaritalStatus:   "married",
		Religion:        "islam",
		BusinessPurpose: "vegetable stand",
	})
	require.NoError(t, err)

	_, err = directory.RecordLoanSnapshot(ctx, borrowers.LoanSnapshotInput{
		BorrowerNumber:    "BRW-001",
		PrincipalAmount:   decimal.NewFromInt(3000),
		OutstandingAmount: decimal.NewFromInt(1800),
		DaysPastDue:       4,
	})
	require.NoError(t, err)

	// Reference week Monday 2026-03-02 .. Sunday 2026-03-08; the Saturday
	// before and the Monday after must be excluded.
	seed := []struct {
		day    time.Time
		kind   enums.CashFlowKind
		amount int64
	}{
		{time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), enums.CashFlowKindRevenue, 999},
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), enums.CashFlowKindRevenue, 120},
		{time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), enums.CashFlowKindRevenue, 80},
		{time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), enums.CashFlowKindExpense, 45},
		{time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), enums.CashFlowKindExpense, 999},
	}
	for _, row := range seed {
		require.NoError(t, buckets.ApplyDelta(ctx, aggregate.ApplyDeltaInput{
			BorrowerNumber: "BRW-001",
			Kind:           row.kind,
			Day:            row.day,
			Delta:          decimal.NewFromInt(row.amount),
		}))
	}

	vector, err := asm.Assemble(ctx, "BRW-001", time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 35, vector.AgeYears)
	assert.Equal(t, "married", vector.MaritalStatus)
	assert.Equal(t, 4, vector.DaysPastDue)
	assert.True(t, vector.PrincipalAmount.Equal(decimal.NewFromInt(3000)))
	assert.True(t, vector.WeekRevenue.Equal(decimal.NewFromInt(200)), "revenue %s", vector.WeekRevenue)
	assert.True(t, vector.WeekExpense.Equal(decimal.NewFromInt(45)), "expense %s", vector.WeekExpense)
}

func TestAssembleWithoutLoanSnapshotUsesZeroes(t *testing.T) {
	asm, directory, _ := setupAssembler(t)
	ctx := context.Background()

	_, err := directory.CreateBorrower(ctx, borrowers.CreateBorrowerInput{
		BorrowerNumber: "BRW-002",
	})
	require.NoError(t, err)

	vector, err := asm.Assemble(ctx, "BRW-002", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, vector.DaysPastDue)
	assert.True(t, vector.PrincipalAmount.IsZero())
	assert.True(t, vector.WeekRevenue.IsZero())
	assert.Zero(t, vector.AgeYears)
}

func TestAssembleUnknownBorrowerIsNotFound(t *testing.T) {
	asm, _, _ := setupAssembler(t)

	_, err := asm.Assemble(context.Background(), "BRW-404", time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
