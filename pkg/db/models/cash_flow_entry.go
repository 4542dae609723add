package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
)

// CashFlowEntry is one borrower-reported transaction. Entries carry full
// timestamp precision; aggregation happens at calendar-day grain.
type CashFlowEntry struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BorrowerNumber string             `gorm:"column:borrower_number;not null;index:idx_cash_flow_entries_owner"`
	Kind           enums.CashFlowKind `gorm:"column:kind;type:cash_flow_kind_enum;not null"`
	Amount         decimal.Decimal    `gorm:"column:amount;type:decimal(20,2);not null"`
	Description    string             `gorm:"column:description"`
	OccurredAt     time.Time          `gorm:"column:occurred_at;not null;index:idx_cash_flow_entries_occurred"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
