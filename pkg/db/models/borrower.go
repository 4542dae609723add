package models

import (
	"time"

	"github.com/google/uuid"
)

// Borrower holds the static attributes the feature assembler feeds to the
// external scorer.
type Borrower struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BorrowerNumber  string     `gorm:"column:borrower_number;not null;uniqueIndex:uq_borrowers_number"`
	DateOfBirth     *time.Time `gorm:"column:date_of_birth;type:date"`
	MaritalStatus   string     `gorm:"column:marital_status"`
	Religion        string     `gorm:"column:religion"`
	BusinessPurpose string     `gorm:"column:business_purpose"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
