package borrowers

import (
	"context"

	"gorm.io/gorm"

	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
)

// Repository manages borrowers, circles, and imported loan snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBorrower(ctx context.Context, borrower *models.Borrower) error
	FindBorrowerByNumber(ctx context.Context, borrowerNumber string) (*models.Borrower, error)
	ListBorrowers(ctx context.Context, limit, offset int) ([]models.Borrower, error)
	ListBorrowerNumbers(ctx context.Context) ([]string, error)
	CreateCircle(ctx context.Context, circle *models.Circle) error
	FindCircleByID(ctx context.Context, circleID string) (*models.Circle, error)
	ListCircleIDs(ctx context.Context) ([]string, error)
	CreateLoanSnapshot(ctx context.Context, snapshot *models.LoanSnapshot) error
	LatestLoanSnapshot(ctx context.Context, borrowerNumber string) (*models.LoanSnapshot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a borrower repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBorrower(ctx context.Context, borrower *models.Borrower) error {
	return r.db.WithContext(ctx).Create(borrower).Error
}

func (r *repository) FindBorrowerByNumber(ctx context.Context, borrowerNumber string) (*models.Borrower, error) {
	var borrower models.Borrower
	err := r.db.WithContext(ctx).
		Where("borrower_number = ?", borrowerNumber).
		First(&borrower).Error
	if err != nil {
		return nil, err
	}
	return &borrower, nil
}

func (r *repository) ListBorrowers(ctx context.Context, limit, offset int) ([]models.Borrower, error) {
	var list []models.Borrower
	query := r.db.WithContext(ctx).Order("borrower_number ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) ListBorrowerNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.Borrower{}).
		Order("borrower_number ASC").
		Pluck("borrower_number", &numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *repository) CreateCircle(ctx context.Context, circle *models.Circle) error {
	return r.db.WithContext(ctx).Create(circle).Error
}

func (r *repository) FindCircleByID(ctx context.Context, circleID string) (*models.Circle, error) {
	var circle models.Circle
	err := r.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		First(&circle).Error
	if err != nil {
		return nil, err
	}
	return &circle, nil
}

func (r *repository) ListCircleIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Circle{}).
		Order("circle_id ASC").
		Pluck("circle_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) CreateLoanSnapshot(ctx context.Context, snapshot *models.LoanSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) LatestLoanSnapshot(ctx context.Context, borrowerNumber string) (*models.LoanSnapshot, error) {
	var snapshot models.LoanSnapshot
	err := r.db.WithContext(ctx).
		Where("borrower_number = ?", borrowerNumber).
		Order("created_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
