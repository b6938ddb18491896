package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
)

// Repository manages persistence for the public catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListBooks(ctx context.Context, onlyAvailable bool) ([]models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
	UpdateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id uuid.UUID) error
	CountTransactions(ctx context.Context, bookID uuid.UUID) (int64, error)
	ListTargetGroups(ctx context.Context) ([]models.TargetGroup, error)
	GetTargetGroup(ctx context.Context, id uuid.UUID) (*models.TargetGroup, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListBooks(ctx context.Context, onlyAvailable bool) ([]models.Book, error) {
	q := r.db.WithContext(ctx).Preload("PandhamStock")
	if onlyAvailable {
		q = q.Where("is_available = ?", true)
	}
	var books []models.Book
	if err := q.Order("sequence_order ASC").Order("name ASC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Preload("PandhamStock").Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) CreateBook(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *repository) UpdateBook(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Book{}).Error
}

func (r *repository) CountTransactions(ctx context.Context, bookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockTransaction{}).
		Where("book_id = ?", bookID).
		Count(&count).Error
	return count, err
}

func (r *repository) ListTargetGroups(ctx context.Context) ([]models.TargetGroup, error) {
	var groups []models.TargetGroup
	if err := r.db.WithContext(ctx).
		Order("priority ASC").Order("name ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repository) GetTargetGroup(ctx context.Context, id uuid.UUID) (*models.TargetGroup, error) {
	var group models.TargetGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}
