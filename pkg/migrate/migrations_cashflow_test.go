package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lingkar-ai/lingkar-backend/pkg/migrate"
)

func TestCashFlowMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_cash_flow_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no cash flow migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE cash_flow_kind_enum AS ENUM ('REVENUE', 'EXPENSE')",
		"CREATE TABLE IF NOT EXISTS cash_flow_entries",
		"CREATE TABLE IF NOT EXISTS cash_flow_buckets",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_cash_flow_buckets_key",
		"CHECK (amount >= 0)",
		"DROP TABLE IF EXISTS cash_flow_buckets",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRiskSnapshotMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_risk_snapshots.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no risk snapshot migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS borrower_risk_snapshots",
		"CREATE TABLE IF NOT EXISTS circle_risk_snapshots",
		"CHECK (risk >= 0 AND risk <= 1)",
		"USING GIN (member_numbers)",
		"DROP TABLE IF EXISTS circle_risk_snapshots",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsRepoMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
