// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key in Go so the same schema works on
// engines without gen_random_uuid().
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type AccountRole string

const (
	AccountRoleCustomer AccountRole = "customer"
	AccountRoleTailor   AccountRole = "tailor"
)

func (r AccountRole) Valid() bool {
	return r == AccountRoleCustomer || r == AccountRoleTailor
}

type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusAccepted    BookingStatus = "accepted"
	BookingStatusRejected    BookingStatus = "rejected"
	BookingStatusPickupReady BookingStatus = "pickup_ready"
	BookingStatusPickedUp    BookingStatus = "picked_up"
	BookingStatusCompleted   BookingStatus = "completed"
	BookingStatusCancelled   BookingStatus = "cancelled"
)

// BookingStatuses lists every status in lifecycle order.
var BookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusRejected,
	BookingStatusPickupReady,
	BookingStatusPickedUp,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	for _, status := range BookingStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)
