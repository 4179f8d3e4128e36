// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Account mirrors an identity-provider user. The ID is the token subject,
// so rows are upserted rather than created with a fresh key.
type Account struct {
	BaseModel
	Username   string      `json:"username" gorm:"uniqueIndex;size:150;not null"`
	Email      string      `json:"-" gorm:"size:255"`
	Role       AccountRole `json:"role" gorm:"type:varchar(20);not null;index"`
	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
	LastSeenAt *time.Time  `json:"-"`

	// Relationships
	Provider *Provider `json:"-" gorm:"foreignKey:AccountID"`
}

func (a *Account) HasLocation() bool {
	return a.Latitude != nil && a.Longitude != nil
}

func (a *Account) IsTailor() bool {
	return a.Role == AccountRoleTailor
}

// AccountRef is the public projection embedded in bookings and reviews.
type AccountRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

func (a *Account) Ref() *AccountRef {
	if a == nil {
		return nil
	}
	return &AccountRef{ID: a.ID, Username: a.Username}
}
