package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book is a printed title tracked in the main inventory.
type Book struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	ShortDescription  string          `gorm:"column:short_description"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(6,2);not null;default:0"`
	InitialStock      int             `gorm:"column:initial_stock;not null;default:0"`
	MinimumStockLevel int             `gorm:"column:minimum_stock_level;not null;default:0"`
	CurrentStock      int             `gorm:"column:current_stock;not null;default:0"`
	SequenceOrder     int             `gorm:"column:sequence_order;not null;default:0"`
	IsAvailable       bool            `gorm:"column:is_available;not null;default:true"`
	PandhamStock      *PandhamStock   `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
