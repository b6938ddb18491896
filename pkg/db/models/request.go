package models

import (
	"time"

	"github.com/google/uuid"
)

// Request is an end-user ask to receive free books from the give pool.
//
// Invariant: IsWaiting implies ContributionID is nil; a matched request is
// never flipped back to waiting automatically.
type Request struct {
	ID              uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferenceNumber string        `gorm:"column:reference_number;not null;uniqueIndex:ux_requests_reference"`
	BookID          uuid.UUID     `gorm:"column:book_id;type:uuid;not null;index"`
	Quantity        int           `gorm:"column:quantity;not null;default:1"`
	TargetGroupID   *uuid.UUID    `gorm:"column:target_group_id;type:uuid"`
	TargetGroup     *TargetGroup  `gorm:"foreignKey:TargetGroupID"`
	ContributionID  *uuid.UUID    `gorm:"column:contribution_id;type:uuid"`
	Contribution    *Contribution `gorm:"foreignKey:ContributionID"`
	RecipientName   string        `gorm:"column:recipient_name;not null"`
	PhoneNumber     string        `gorm:"column:phone_number;not null;index"`
	ShippingAddress *string       `gorm:"column:shipping_address"`
	AcceptTerms     bool          `gorm:"column:accept_terms;not null;default:false"`
	IsWaiting       bool          `gorm:"column:is_waiting;not null;default:false"`
	IsCompleted     bool          `gorm:"column:is_completed;not null;default:false"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
