package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
)

// CashFlowBucket is the running total for one (borrower, kind, day) key.
//
// Presence of a row IS the non-zero-total invariant: a bucket whose total
// reaches zero is deleted, never stored as an explicit zero row. Total always
// equals the sum of live CashFlowEntry amounts sharing the key.
type CashFlowBucket struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BorrowerNumber string             `gorm:"column:borrower_number;not null;uniqueIndex:uq_cash_flow_buckets_key,priority:1"`
	Kind           enums.CashFlowKind `gorm:"column:kind;type:cash_flow_kind_enum;not null;uniqueIndex:uq_cash_flow_buckets_key,priority:2"`
	Day            time.Time          `gorm:"column:day;type:date;not null;uniqueIndex:uq_cash_flow_buckets_key,priority:3"`
	Total          decimal.Decimal    `gorm:"column:total;type:decimal(20,2);not null"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
