// internal/models/booking.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Booking struct {
	BaseModel
	CustomerID           uuid.UUID     `json:"customer_id" gorm:"type:uuid;not null;index"`
	ProviderAccountID    uuid.UUID     `json:"provider_id" gorm:"type:uuid;not null;index"`
	ServiceID            uuid.UUID     `json:"service_id" gorm:"type:uuid;not null;index"`
	Status               BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PickupDate           time.Time     `json:"pickup_date" gorm:"not null"`
	DeliveryDate         time.Time     `json:"delivery_date" gorm:"not null"`
	PriceSnapshot        float64       `json:"price_snapshot" gorm:"type:decimal(10,2);not null"`
	DurationDaysSnapshot int           `json:"duration_days" gorm:"not null"`
	PaymentStatus        PaymentStatus `json:"payment_status" gorm:"type:varchar(10);not null;default:'unpaid';index"`
	PaymentSessionID     *string       `json:"payment_session_id,omitempty" gorm:"size:255;index"`

	// Relationships
	Customer        *Account `json:"-" gorm:"foreignKey:CustomerID"`
	ProviderAccount *Account `json:"-" gorm:"foreignKey:ProviderAccountID"`
	Service         *Service `json:"-" gorm:"foreignKey:ServiceID"`
	Review          *Review  `json:"-" gorm:"foreignKey:BookingID"`
}

func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

// BookingStatusEvent is one row of a booking's transition history.
type BookingStatusEvent struct {
	ID         uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID  uuid.UUID     `json:"booking_id" gorm:"type:uuid;not null;index"`
	FromStatus BookingStatus `json:"from_status" gorm:"type:varchar(20);not null"`
	ToStatus   BookingStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	ActorID    uuid.UUID     `json:"actor_id" gorm:"type:uuid;not null"`
	ActorRole  string        `json:"actor_role" gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (e *BookingStatusEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// DeliveryDateFor adds the service duration in whole days to a pickup date.
func DeliveryDateFor(pickup time.Time, durationDays int) time.Time {
	return pickup.AddDate(0, 0, durationDays)
}
