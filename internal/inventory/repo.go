package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/enums"
	"github.com/ptfoundation/pandham-backend/pkg/pagination"
)

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	BookID *uuid.UUID
	Type   *enums.StockTransactionType
	Limit  int
	Cursor *pagination.Cursor
}

// Repository manages persistence for books, stock pools and the ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetPandhamStock(ctx context.Context, bookID uuid.UUID) (*models.PandhamStock, error)
	EnsurePandhamStock(ctx context.Context, bookID uuid.UUID) error
	ApplyMainDelta(ctx context.Context, bookID uuid.UUID, delta int) (bool, error)
	ApplyGiveDelta(ctx context.Context, bookID uuid.UUID, delta int) (bool, error)
	InsertTransaction(ctx context.Context, row *models.StockTransaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.StockTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) GetPandhamStock(ctx context.Context, bookID uuid.UUID) (*models.PandhamStock, error) {
	var row models.PandhamStock
	if err := r.db.WithContext(ctx).Where("book_id = ?", bookID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// EnsurePandhamStock lazily creates the give-pool row for a book. Losing a
// concurrent insert on the unique index is a no-op, not an error, so the
// enclosing transaction stays usable.
func (r *repository) EnsurePandhamStock(ctx context.Context, bookID uuid.UUID) error {
	row := models.PandhamStock{ID: uuid.New(), BookID: bookID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "book_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

// ApplyMainDelta adjusts a book's main stock with a guarded update. It returns
// false when the guard rejects the change, which means either the book is
// missing or the delta would drive the count negative.
func (r *repository) ApplyMainDelta(ctx context.Context, bookID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND current_stock + ? >= 0", bookID, delta).
		Updates(map[string]any{
			"current_stock": gorm.Expr("current_stock + ?", delta),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyGiveDelta adjusts the give pool the same way. A missing pool row counts
// as a rejected change.
func (r *repository) ApplyGiveDelta(ctx context.Context, bookID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PandhamStock{}).
		Where("book_id = ? AND current_stock + ? >= 0", bookID, delta).
		Updates(map[string]any{
			"current_stock": gorm.Expr("current_stock + ?", delta),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertTransaction(ctx context.Context, row *models.StockTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.StockTransaction, error) {
	q := r.db.WithContext(ctx).Model(&models.StockTransaction{})
	if filter.BookID != nil {
		q = q.Where("book_id = ?", *filter.BookID)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
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

	var rows []models.StockTransaction
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
