package models

import (
	"time"

	"github.com/google/uuid"
)

// BorrowerRiskSnapshot is one persisted default probability for a borrower at
// a weekly anchor date. Rows are append-only: recomputation inserts a new row
// rather than overwriting, so prior evidence survives.
type BorrowerRiskSnapshot struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BorrowerNumber string    `gorm:"column:borrower_number;not null;index:idx_borrower_risk_key,priority:1"`
	AnchorDate     time.Time `gorm:"column:anchor_date;type:date;not null;index:idx_borrower_risk_key,priority:2"`
	Risk           float64   `gorm:"column:risk;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
