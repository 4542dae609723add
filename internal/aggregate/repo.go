package aggregate

import (
	"context"
	"time"

	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository manages persistence for daily cash flow buckets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AddToBucket(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, day time.Time, delta decimal.Decimal) (int64, error)
	InsertBucket(ctx context.Context, bucket *models.CashFlowBucket) error
	CollapseZero(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, day time.Time) error
	FindBucket(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, day time.Time) (*models.CashFlowBucket, error)
	ListBuckets(ctx context.Context, borrowerNumber string, from, to time.Time) ([]models.CashFlowBucket, error)
	SumByKind(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, from, to time.Time) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bucket repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AddToBucket applies the delta in a single UPDATE so concurrent writers
// never observe each other's intermediate totals. Returns the number of
// rows updated; zero means the bucket does not exist yet.
func (r *repository) AddToBucket(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, day time.Time, delta decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CashFlowBucket{}).
		Where("borrower_number = ? AND kind = ? AND day = ?", borrowerNumber, kind, day).
		Updates(map[string]any{
			"total":      gorm.Expr("total + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) InsertBucket(ctx context.Context, bucket *models.CashFlowBucket) error {
	return r.db.WithContext(ctx).Create(bucket).Error
}

// CollapseZero removes the bucket row when its total has dropped to zero or
// below. Absence of a row is how a zero total is represented.
func (r *repository) CollapseZero(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, day time.Time) error {
	return r.db.WithContext(ctx).
		Where("borrower_number = ? AND kind = ? AND day = ? AND total <= 0", borrowerNumber, kind, day).
		Delete(&models.CashFlowBucket{}).Error
}

func (r *repository) FindBucket(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, day time.Time) (*models.CashFlowBucket, error) {
	var bucket models.CashFlowBucket
	err := r.db.WithContext(ctx).
		Where("borrower_number = ? AND kind = ? AND day = ?", borrowerNumber, kind, day).
		First(&bucket).Error
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (r *repository) ListBuckets(ctx context.Context, borrowerNumber string, from, to time.Time) ([]models.CashFlowBucket, error) {
	query := r.db.WithContext(ctx).
		Where("borrower_number = ?", borrowerNumber)
	if !from.IsZero() {
		query = query.Where("day >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("day <= ?", to)
	}

	var buckets []models.CashFlowBucket
	if err := query.Order("day ASC, kind ASC").Find(&buckets).Error; err != nil {
		return nil, err
	}
	return buckets, nil
}

func (r *repository) SumByKind(ctx context.Context, borrowerNumber string, kind enums.CashFlowKind, from, to time.Time) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CashFlowBucket{}).
		Where("borrower_number = ? AND kind = ?", borrowerNumber, kind)
	if !from.IsZero() {
		query = query.Where("day >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("day <= ?", to)
	}

	var total decimal.NullDecimal
	if err := query.Select("SUM(total)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
