package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/pagination"
)

// ListFilter narrows admin request listings.
type ListFilter struct {
	BookID      *uuid.UUID
	OnlyWaiting bool
	Limit       int
	Cursor      *pagination.Cursor
}

// Repository manages persistence for book requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	GetByReference(ctx context.Context, reference string) (*models.Request, error)
	List(ctx context.Context, filter ListFilter) ([]models.Request, error)
	ListWaitingByBook(ctx context.Context, bookID uuid.UUID) ([]models.Request, error)
	HasOpenByPhoneAndBook(ctx context.Context, phone string, bookID uuid.UUID) (bool, error)
	MarkMatched(ctx context.Context, id uuid.UUID, contributionID uuid.UUID) (bool, error)
	GivePool(ctx context.Context, bookID uuid.UUID) (*models.PandhamStock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a requests repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.Request) error {
	return r.db.WithContext(ctx).Omit("TargetGroup", "Contribution").Create(req).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var req models.Request
	if err := r.db.WithContext(ctx).Preload("TargetGroup").
		Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*models.Request, error) {
	var req models.Request
	if err := r.db.WithContext(ctx).Preload("TargetGroup").
		Where("reference_number = ?", reference).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Request, error) {
	q := r.db.WithContext(ctx).Model(&models.Request{}).Preload("TargetGroup")
	if filter.BookID != nil {
		q = q.Where("book_id = ?", *filter.BookID)
	}
	if filter.OnlyWaiting {
		q = q.Where("is_waiting = ?", true)
	}
	if filter.Cursor != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []models.Request
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListWaitingByBook returns waiting requests oldest first, the order they are
// served in when the give pool refills.
func (r *repository) ListWaitingByBook(ctx context.Context, bookID uuid.UUID) ([]models.Request, error) {
	var rows []models.Request
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND is_waiting = ?", bookID, true).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasOpenByPhoneAndBook(ctx context.Context, phone string, bookID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("phone_number = ? AND book_id = ? AND is_completed = ?", phone, bookID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkMatched links a waiting request to a contribution. The guard keeps a
// concurrently matched request from being linked twice.
func (r *repository) MarkMatched(ctx context.Context, id uuid.UUID, contributionID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND contribution_id IS NULL", id).
		Updates(map[string]any{
			"contribution_id": contributionID,
			"is_waiting":      false,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) GivePool(ctx context.Context, bookID uuid.UUID) (*models.PandhamStock, error) {
	var pool models.PandhamStock
	if err := r.db.WithContext(ctx).Where("book_id = ?", bookID).First(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}
