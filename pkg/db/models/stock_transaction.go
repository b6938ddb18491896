package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ptfoundation/pandham-backend/pkg/enums"
)

// StockTransaction is an immutable entry in the inventory ledger. Rows are
// append-only: there is no update or delete path anywhere in the codebase.
type StockTransaction struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID    uuid.UUID                  `gorm:"column:book_id;type:uuid;not null;index"`
	Type      enums.StockTransactionType `gorm:"column:type;type:stock_transaction_type_enum;not null"`
	Quantity  int                        `gorm:"column:quantity;not null"`
	Details   string                     `gorm:"column:details"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
