// internal/models/review.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	BaseModel
	BookingID         uuid.UUID `json:"booking_id" gorm:"type:uuid;uniqueIndex;not null"`
	CustomerID        uuid.UUID `json:"customer_id" gorm:"type:uuid;not null;index"`
	ProviderAccountID uuid.UUID `json:"provider_id" gorm:"type:uuid;not null;index"`
	Rating            int       `json:"rating" gorm:"not null"`
	Comment           string    `json:"comment" gorm:"type:text"`

	// Relationships
	Customer *Account      `json:"-" gorm:"foreignKey:CustomerID"`
	Images   []ReviewImage `json:"images" gorm:"foreignKey:ReviewID"`
}

type ReviewImage struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ReviewID   uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_review_image_position"`
	Position   int       `json:"position" gorm:"not null;uniqueIndex:idx_review_image_position"`
	URL        string    `json:"url" gorm:"size:500;not null"`
	StorageKey string    `json:"-" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
}

func (i *ReviewImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
