package contributions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/pagination"
)

// ListFilter narrows admin contribution listings.
type ListFilter struct {
	BookID   *uuid.UUID
	OnlyOpen bool
	Limit    int
	Cursor   *pagination.Cursor
}

// Repository manages persistence for contributions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, c *models.Contribution) error
	AttachTargetGroups(ctx context.Context, c *models.Contribution, groups []models.TargetGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	GetByReference(ctx context.Context, reference string) (*models.Contribution, error)
	List(ctx context.Context, filter ListFilter) ([]models.Contribution, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPaymentNotified(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateNote(ctx context.Context, id uuid.UUID, note string) error
	IncrementFulfilled(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	FindOpenForMatch(ctx context.Context, bookID uuid.UUID, targetGroupID uuid.UUID, quantity int) (*models.Contribution, error)
	GetTargetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TargetGroup, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contributions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, c *models.Contribution) error {
	return r.db.WithContext(ctx).Omit("TargetGroups").Create(c).Error
}

func (r *repository) AttachTargetGroups(ctx context.Context, c *models.Contribution, groups []models.TargetGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(c).Association("TargetGroups").Append(&groups)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	var c models.Contribution
	if err := r.db.WithContext(ctx).Preload("TargetGroups").
		Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*models.Contribution, error) {
	var c models.Contribution
	if err := r.db.WithContext(ctx).Preload("TargetGroups").
		Where("reference_number = ?", reference).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Contribution, error) {
	q := r.db.WithContext(ctx).Model(&models.Contribution{}).Preload("TargetGroups")
	if filter.BookID != nil {
		q = q.Where("book_id = ?", *filter.BookID)
	}
	if filter.OnlyOpen {
		q = q.Where("fulfilled_count < books_given")
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

	var rows []models.Contribution
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Contribution{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]any{
			"is_completed": true,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkPaymentNotified(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Contribution{}).
		Where("id = ? AND payment_notified = ?", id, false).
		Updates(map[string]any{
			"payment_notified": true,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	return r.db.WithContext(ctx).Model(&models.Contribution{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"note":       note,
			"updated_at": time.Now(),
		}).Error
}

// IncrementFulfilled reserves quantity books from the pledge with a guarded
// update so concurrent matchers cannot oversubscribe it.
func (r *repository) IncrementFulfilled(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Contribution{}).
		Where("id = ? AND fulfilled_count + ? <= books_given", id, quantity).
		Updates(map[string]any{
			"fulfilled_count": gorm.Expr("fulfilled_count + ?", quantity),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindOpenForMatch returns the oldest contribution for the book with enough
// spare pledge capacity that either has no target restriction or targets the
// given group.
func (r *repository) FindOpenForMatch(ctx context.Context, bookID uuid.UUID, targetGroupID uuid.UUID, quantity int) (*models.Contribution, error) {
	var c models.Contribution
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Where("fulfilled_count + ? <= books_given", quantity).
		Where(
			`NOT EXISTS (SELECT 1 FROM contribution_target_groups ctg WHERE ctg.contribution_id = contributions.id)
			 OR EXISTS (SELECT 1 FROM contribution_target_groups ctg WHERE ctg.contribution_id = contributions.id AND ctg.target_group_id = ?)`,
			targetGroupID,
		).
		Order("created_at ASC").Order("id ASC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetTargetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TargetGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.TargetGroup
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
