// internal/models/provider.go
package models

import (
	"strings"

	"github.com/google/uuid"
)

type Specialization struct {
	BaseModel
	Name string `json:"name" gorm:"uniqueIndex;size:100;not null"`
	Slug string `json:"slug" gorm:"uniqueIndex;size:120;not null"`
}

// Slugify lower-cases a label and joins its words with hyphens.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

type Provider struct {
	BaseModel
	AccountID       uuid.UUID `json:"account_id" gorm:"type:uuid;uniqueIndex;not null"`
	Bio             string    `json:"bio" gorm:"type:text"`
	YearsExperience int       `json:"years_experience" gorm:"not null;default:0"`
	AvgRating       float64   `json:"avg_rating" gorm:"type:decimal(3,2);not null;default:0"`
	TotalReviews    int64     `json:"total_reviews" gorm:"not null;default:0"`
	ProfileImageURL string    `json:"profile_image_url,omitempty" gorm:"size:500"`

	// Relationships
	Account         *Account         `json:"-" gorm:"foreignKey:AccountID"`
	Specializations []Specialization `json:"specializations" gorm:"many2many:provider_specializations"`
	Services        []Service        `json:"-" gorm:"foreignKey:ProviderID"`
}

// Username is read through the owning account when it was preloaded.
func (p *Provider) Username() string {
	if p.Account == nil {
		return ""
	}
	return p.Account.Username
}
