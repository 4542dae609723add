package cashflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	"github.com/lingkar-ai/lingkar-backend/pkg/pagination"
)

// Repository manages persistence for cash flow entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.CashFlowEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CashFlowEntry, error)
	Save(ctx context.Context, entry *models.CashFlowEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]models.CashFlowEntry, error)
}

// ListFilter narrows an entry listing. Limit is the buffered page size.
type ListFilter struct {
	BorrowerNumber string
	Kind           *enums.CashFlowKind
	From           time.Time
	To             time.Time
	Cursor         *pagination.Cursor
	Limit          int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an entry repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.CashFlowEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CashFlowEntry, error) {
	var entry models.CashFlowEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) Save(ctx context.Context, entry *models.CashFlowEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CashFlowEntry{}).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.CashFlowEntry, error) {
	query := r.db.WithContext(ctx).
		Where("borrower_number = ?", filter.BorrowerNumber)

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if !filter.From.IsZero() {
		query = query.Where("occurred_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("occurred_at <= ?", filter.To)
	}
	if filter.Cursor != nil {
		query = query.Where(
			"(occurred_at < ?) OR (occurred_at = ? AND id < ?)",
			filter.Cursor.Timestamp, filter.Cursor.Timestamp, filter.Cursor.ID,
		)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.CashFlowEntry
	if err := query.Order("occurred_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
