package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Circle is a lending circle: a named group of borrowers scored together.
type Circle struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CircleID      string         `gorm:"column:circle_id;not null;uniqueIndex:uq_circles_circle_id"`
	Name          string         `gorm:"column:name"`
	MemberNumbers pq.StringArray `gorm:"column:member_numbers;type:text[];not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
