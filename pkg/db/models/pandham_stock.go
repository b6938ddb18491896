package models

import (
	"time"

	"github.com/google/uuid"
)

// PandhamStock is the give pool for a book: copies pledged for free
// distribution, tracked apart from the sellable main stock. The row is created
// lazily the first time a book receives a give-pool contribution.
type PandhamStock struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID       uuid.UUID `gorm:"column:book_id;type:uuid;not null;uniqueIndex:ux_pandham_stocks_book"`
	InitialStock int       `gorm:"column:initial_stock;not null;default:0"`
	CurrentStock int       `gorm:"column:current_stock;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
