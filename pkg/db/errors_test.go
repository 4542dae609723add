package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}, "") {
		t.Fatal("expected pg unique violation to match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: cash_flow_buckets"), "") {
		t.Fatal("expected sqlite unique violation to match")
	}
	if !IsUniqueViolation(errors.New("violates unique constraint \"uq_cash_flow_buckets_key\""), "uq_cash_flow_buckets_key") {
		t.Fatal("expected named constraint to match")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unrelated error must not match")
	}
}

func TestIsSerializationFailure(t *testing.T) {
	if !IsSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("expected serialization failure to match")
	}
	if !IsSerializationFailure(&pgconn.PgError{Code: "40P01"}) {
		t.Fatal("expected deadlock to match")
	}
	if IsSerializationFailure(errors.New("duplicate key value")) {
		t.Fatal("unique violation is not a serialization failure")
	}
}
