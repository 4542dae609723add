package risk

import (
	"context"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
)

// Repository manages persistence for risk snapshots. Snapshot tables are
// append-only; only Correct mutates existing rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertBorrowerSnapshot(ctx context.Context, snapshot *models.BorrowerRiskSnapshot) error
	InsertCircleSnapshot(ctx context.Context, snapshot *models.CircleRiskSnapshot) error
	LatestBorrowerSnapshot(ctx context.Context, borrowerNumber string, anchor time.Time) (*models.BorrowerRiskSnapshot, error)
	LatestCircleSnapshot(ctx context.Context, circleID string, anchor time.Time) (*models.CircleRiskSnapshot, error)
	LatestCircleSnapshotForMember(ctx context.Context, memberNumber string, anchor time.Time) (*models.CircleRiskSnapshot, error)
	CorrectBorrowerSnapshots(ctx context.Context, borrowerNumber string, anchor time.Time, value float64) (int64, error)
	CorrectCircleSnapshots(ctx context.Context, circleID string, anchor time.Time, value float64) (int64, error)
	CountHighRiskBorrowers(ctx context.Context, threshold float64) (int64, error)
	CountHighRiskCircles(ctx context.Context, threshold float64) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a snapshot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InsertBorrowerSnapshot(ctx context.Context, snapshot *models.BorrowerRiskSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) InsertCircleSnapshot(ctx context.Context, snapshot *models.CircleRiskSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) LatestBorrowerSnapshot(ctx context.Context, borrowerNumber string, anchor time.Time) (*models.BorrowerRiskSnapshot, error) {
	var snapshot models.BorrowerRiskSnapshot
	err := r.db.WithContext(ctx).
		Where("borrower_number = ? AND anchor_date = ?", borrowerNumber, anchor).
		Order("created_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) LatestCircleSnapshot(ctx context.Context, circleID string, anchor time.Time) (*models.CircleRiskSnapshot, error) {
	var snapshot models.CircleRiskSnapshot
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND anchor_date = ?", circleID, anchor).
		Order("created_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LatestCircleSnapshotForMember finds the circle snapshot whose recorded
// member set contains the borrower. Uses the Postgres array containment
// operator against the GIN index.
func (r *repository) LatestCircleSnapshotForMember(ctx context.Context, memberNumber string, anchor time.Time) (*models.CircleRiskSnapshot, error) {
	var snapshot models.CircleRiskSnapshot
	err := r.db.WithContext(ctx).
		Where("anchor_date = ? AND member_numbers @> ?", anchor, pq.Array([]string{memberNumber})).
		Order("created_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) CorrectBorrowerSnapshots(ctx context.Context, borrowerNumber string, anchor time.Time, value float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BorrowerRiskSnapshot{}).
		Where("borrower_number = ? AND anchor_date = ?", borrowerNumber, anchor).
		Update("risk", value)
	return result.RowsAffected, result.Error
}

func (r *repository) CorrectCircleSnapshots(ctx context.Context, circleID string, anchor time.Time, value float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CircleRiskSnapshot{}).
		Where("circle_id = ? AND anchor_date = ?", circleID, anchor).
		Update("risk", value)
	return result.RowsAffected, result.Error
}

func (r *repository) CountHighRiskBorrowers(ctx context.Context, threshold float64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM borrower_risk_snapshots s
		WHERE s.created_at = (
			SELECT MAX(created_at) FROM borrower_risk_snapshots
			WHERE borrower_number = s.borrower_number
		)
		AND s.risk > ?`, threshold).Scan(&count).Error
	return count, err
}

func (r *repository) CountHighRiskCircles(ctx context.Context, threshold float64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM circle_risk_snapshots s
		WHERE s.created_at = (
			SELECT MAX(created_at) FROM circle_risk_snapshots
			WHERE circle_id = s.circle_id
		)
		AND s.risk > ?`, threshold).Scan(&count).Error
	return count, err
}
