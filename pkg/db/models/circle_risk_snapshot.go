package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CircleRiskSnapshot is one persisted default probability for a lending
// circle at a weekly anchor date. MemberNumbers records which borrowers the
// score covered; it is a data attribute of the snapshot, not an ownership
// relation.
type CircleRiskSnapshot struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CircleID      string         `gorm:"column:circle_id;not null;index:idx_circle_risk_key,priority:1"`
	MemberNumbers pq.StringArray `gorm:"column:member_numbers;type:text[];not null"`
	AnchorDate    time.Time      `gorm:"column:anchor_date;type:date;not null;index:idx_circle_risk_key,priority:2"`
	Risk          float64        `gorm:"column:risk;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}
