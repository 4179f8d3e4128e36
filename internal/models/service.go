// internal/models/service.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	BaseModel
	ProviderID   uuid.UUID `json:"provider_id" gorm:"type:uuid;not null;index"`
	Name         string    `json:"name" gorm:"size:150;not null"`
	Description  string    `json:"description" gorm:"type:text"`
	Price        float64   `json:"price" gorm:"type:decimal(10,2);not null"`
	DurationDays int       `json:"duration_days" gorm:"not null"`
	IsActive     bool      `json:"is_active" gorm:"not null;index"`

	// Relationships
	Provider *Provider     `json:"-" gorm:"foreignKey:ProviderID"`
	Images   []ServiceImage `json:"images" gorm:"foreignKey:ServiceID"`
}

type ServiceImage struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ServiceID  uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_service_image_position"`
	Position   int       `json:"position" gorm:"not null;uniqueIndex:idx_service_image_position"`
	URL        string    `json:"url" gorm:"size:500;not null"`
	StorageKey string    `json:"-" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
}

func (i *ServiceImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
