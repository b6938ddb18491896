package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution records a completed pledge: money and/or books toward printing,
// split between books the donor keeps and books donated to the give pool.
//
// Invariants: BooksKept + BooksGiven == TotalBooks and
// FulfilledCount <= BooksGiven. FulfilledCount is the only field mutated after
// creation, by the request matcher.
type Contribution struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferenceNumber   string          `gorm:"column:reference_number;not null;uniqueIndex:ux_contributions_reference"`
	BookID            uuid.UUID       `gorm:"column:book_id;type:uuid;not null;index"`
	AmountContributed decimal.Decimal `gorm:"column:amount_contributed;type:numeric(10,2);not null;default:0"`
	TotalBooks        int             `gorm:"column:total_books;not null;default:0"`
	BooksKept         int             `gorm:"column:books_kept;not null;default:0"`
	BooksGiven        int             `gorm:"column:books_given;not null;default:0"`
	FulfilledCount    int             `gorm:"column:fulfilled_count;not null;default:0"`
	TargetGroups      []TargetGroup   `gorm:"many2many:contribution_target_groups;constraint:OnDelete:CASCADE"`
	DonorName         string          `gorm:"column:donor_name;not null;default:'anonymous'"`
	PhoneNumber       string          `gorm:"column:phone_number;not null"`
	ShippingAddress   *string         `gorm:"column:shipping_address"`
	Note              *string         `gorm:"column:note"`
	PaymentNotified   bool            `gorm:"column:payment_notified;not null;default:false"`
	IsCompleted       bool            `gorm:"column:is_completed;not null;default:false"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// RemainingGiveable returns how many pledged books are still unassigned.
func (c Contribution) RemainingGiveable() int {
	remaining := c.BooksGiven - c.FulfilledCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
