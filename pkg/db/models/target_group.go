package models

import (
	"time"

	"github.com/google/uuid"
)

// TargetGroup classifies recipients (temples, schools, prisons, ...). It is
// the matching key between a contribution's target set and a request.
type TargetGroup struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	Priority    int       `gorm:"column:priority;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
