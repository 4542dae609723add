package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanSnapshot is a point-in-time view of a borrower's loan position,
// imported from the lender's core system.
type LoanSnapshot struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BorrowerNumber    string          `gorm:"column:borrower_number;not null;index:idx_loan_snapshots_owner"`
	PrincipalAmount   decimal.Decimal `gorm:"column:principal_amount;type:decimal(20,2);not null"`
	OutstandingAmount decimal.Decimal `gorm:"column:outstanding_amount;type:decimal(20,2);not null"`
	DaysPastDue       int             `gorm:"column:days_past_due;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}
