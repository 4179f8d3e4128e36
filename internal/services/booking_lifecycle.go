// internal/services/booking_lifecycle.go
package services

import (
	"github.com/google/uuid"

	"github.com/tailorly/marketplace-backend/internal/models"
)

// ActorRole is the relationship of the caller to one booking.
type ActorRole string

const (
	ActorCustomer ActorRole = "customer"
	ActorProvider ActorRole = "provider"
	ActorNone     ActorRole = "none"
)

type paymentGate int

const (
	gateNone paymentGate = iota
	gatePaid
	gateUnpaid
)

type transitionKey struct {
	from models.BookingStatus
	role ActorRole
	to   models.BookingStatus
}

// transitions is the complete set of moves. Anything absent is rejected.
var transitions = map[transitionKey]paymentGate{
	{models.BookingStatusPending, ActorCustomer, models.BookingStatusCancelled}:    gateNone,
	{models.BookingStatusAccepted, ActorCustomer, models.BookingStatusCancelled}:   gateNone,
	{models.BookingStatusPending, ActorProvider, models.BookingStatusAccepted}:     gateNone,
	{models.BookingStatusPending, ActorProvider, models.BookingStatusRejected}:     gateNone,
	{models.BookingStatusAccepted, ActorProvider, models.BookingStatusPickupReady}: gatePaid,
	{models.BookingStatusAccepted, ActorProvider, models.BookingStatusCancelled}:   gateUnpaid,
	{models.BookingStatusPickupReady, ActorProvider, models.BookingStatusPickedUp}: gateNone,
	{models.BookingStatusPickedUp, ActorProvider, models.BookingStatusCompleted}:   gateNone,
}

// Decision is the outcome of EvaluateTransition. A nil Err means allowed;
// RequiredPayment is then the payment status the row must still have.
type Decision struct {
	Err             *ServiceError
	RequiredPayment models.PaymentStatus
}

func (d Decision) Allowed() bool {
	return d.Err == nil
}

// EvaluateTransition decides whether role may move a booking from current
// to requested given its payment status. It performs no I/O.
func EvaluateTransition(current models.BookingStatus, role ActorRole, requested models.BookingStatus, payment models.PaymentStatus) Decision {
	if role != ActorCustomer && role != ActorProvider {
		return Decision{Err: newError(KindPermissionDenied, "booking.not_participant", "not a participant of this booking")}
	}

	gate, ok := transitions[transitionKey{current, role, requested}]
	if !ok {
		return Decision{Err: newError(KindInvalidTransition, "booking.invalid_transition",
			"cannot move booking from "+string(current)+" to "+string(requested)+" as "+string(role))}
	}

	switch gate {
	case gatePaid:
		if payment != models.PaymentStatusPaid {
			return Decision{Err: newError(KindInvalidState, "booking.payment_required", "booking must be paid first")}
		}
		return Decision{RequiredPayment: models.PaymentStatusPaid}
	case gateUnpaid:
		if payment == models.PaymentStatusPaid {
			return Decision{Err: newError(KindInvalidState, "booking.already_paid", "paid bookings cannot be cancelled by the tailor")}
		}
		return Decision{RequiredPayment: models.PaymentStatusUnpaid}
	}
	return Decision{}
}

// RoleFor resolves the caller's role on a booking.
func RoleFor(b *models.Booking, actorID uuid.UUID) ActorRole {
	switch actorID {
	case b.CustomerID:
		return ActorCustomer
	case b.ProviderAccountID:
		return ActorProvider
	}
	return ActorNone
}
