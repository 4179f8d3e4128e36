// internal/services/booking_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/database"
	"github.com/tailorly/marketplace-backend/internal/models"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type BookingService struct {
	db      *gorm.DB
	gateway PaymentGateway
	config  *config.Config
	now     func() time.Time
}

type CreateBookingRequest struct {
	ServiceID  string `json:"service" validate:"required,uuid"`
	PickupDate string `json:"pickup_date" validate:"required,pickup_date"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type MarkPaidRequest struct {
	SessionID string `json:"session_id"`
}

type PaymentSession struct {
	CheckoutURL string  `json:"checkout_url"`
	SessionID   string  `json:"session_id"`
	Amount      float64 `json:"amount"`
}

// BookingView is a booking with the participant names resolved.
type BookingView struct {
	models.Booking
	Customer    *models.AccountRef `json:"customer"`
	Provider    *models.AccountRef `json:"provider"`
	ServiceName string             `json:"service_name"`
	Reviewed    bool               `json:"reviewed"`
}

func NewBookingService(db *gorm.DB, gateway PaymentGateway, config *config.Config) *BookingService {
	return &BookingService{
		db:      db,
		gateway: gateway,
		config:  config,
		now:     time.Now,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, actor *models.Account, req *CreateBookingRequest) (*BookingView, error) {
	if actor.Role != models.AccountRoleCustomer {
		return nil, newError(KindPermissionDenied, "booking.customers_only", "only customers can create bookings")
	}

	pickup, err := s.parsePickupDate(req.PickupDate)
	if err != nil {
		return nil, err
	}

	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		return nil, newError(KindInvalidInput, "service.invalid_id", "invalid service id")
	}

	var service models.Service
	if err := s.db.WithContext(ctx).Preload("Provider").First(&service, "id = ?", serviceID).Error; err != nil {
		return nil, notFoundOr(err, "service.not_found", "service")
	}
	if !service.IsActive {
		return nil, newError(KindInvalidInput, "service.inactive", "service is not active")
	}
	if service.Provider == nil {
		return nil, newError(KindNotFound, "tailor.not_found", "tailor not found")
	}
	if service.Provider.AccountID == actor.ID {
		return nil, newError(KindPermissionDenied, "booking.own_service", "cannot book your own service")
	}

	booking := models.Booking{
		CustomerID:           actor.ID,
		ProviderAccountID:    service.Provider.AccountID,
		ServiceID:            service.ID,
		Status:               models.BookingStatusPending,
		PickupDate:           pickup,
		DeliveryDate:         models.DeliveryDateFor(pickup, service.DurationDays),
		PriceSnapshot:        service.Price,
		DurationDaysSnapshot: service.DurationDays,
		PaymentStatus:        models.PaymentStatusUnpaid,
	}
	if err := s.db.WithContext(ctx).Create(&booking).Error; err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"service_id": service.ID,
		"pickup":     pickup.Format("2006-01-02"),
	}).Info("Booking created")

	return s.loadView(ctx, booking.ID)
}

// parsePickupDate accepts a calendar date or an RFC 3339 timestamp and
// truncates it to midnight UTC. Dates before today are rejected.
func (s *BookingService) parsePickupDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, newError(KindInvalidInput, "booking.invalid_pickup_date", "pickup_date must be YYYY-MM-DD")
		}
	}
	pickup := truncateToDate(t)
	if pickup.Before(truncateToDate(s.now())) {
		return time.Time{}, newError(KindInvalidInput, "booking.pickup_in_past", "pickup date cannot be in the past")
	}
	return pickup, nil
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ListBookings returns the bookings a customer made or a tailor received.
func (s *BookingService) ListBookings(ctx context.Context, actor *models.Account, params utils.PaginationParams) ([]BookingView, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Booking{})
	if actor.IsTailor() {
		query = query.Where("provider_account_id = ?", actor.ID)
	} else {
		query = query.Where("customer_id = ?", actor.ID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var bookings []models.Booking
	err := utils.ApplyPagination(s.withRelations(query), params).
		Order("bookings.created_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch bookings: %w", err)
	}

	views := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, toBookingView(&bookings[i]))
	}
	return views, total, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID) (*BookingView, error) {
	view, err := s.loadView(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if RoleFor(&view.Booking, actorID) == ActorNone {
		return nil, newError(KindPermissionDenied, "booking.not_participant", "not a participant of this booking")
	}
	return view, nil
}

// AttemptTransition moves a booking to requested on behalf of actorID.
func (s *BookingService) AttemptTransition(ctx context.Context, bookingID, actorID uuid.UUID, requested string) (*BookingView, error) {
	status, ok := models.ParseBookingStatus(requested)
	if !ok {
		return nil, newError(KindInvalidInput, "booking.invalid_status", "unknown booking status "+requested)
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFoundOr(err, "booking.not_found", "booking")
		}
		return s.transition(tx, &booking, actorID, status)
	})
	if err != nil {
		return nil, err
	}

	return s.loadView(ctx, bookingID)
}

// transition applies one move against the booking as it was read. The
// update is conditional on that snapshot so a concurrent change yields a
// conflict instead of a lost update.
func (s *BookingService) transition(tx *gorm.DB, booking *models.Booking, actorID uuid.UUID, to models.BookingStatus) error {
	role := RoleFor(booking, actorID)
	decision := EvaluateTransition(booking.Status, role, to, booking.PaymentStatus)
	if !decision.Allowed() {
		return decision.Err
	}

	query := tx.Model(&models.Booking{}).Where("id = ? AND status = ?", booking.ID, booking.Status)
	if decision.RequiredPayment != "" {
		query = query.Where("payment_status = ?", decision.RequiredPayment)
	}
	result := query.Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(KindConflict, "booking.conflict", "booking was modified concurrently")
	}

	event := models.BookingStatusEvent{
		BookingID:  booking.ID,
		FromStatus: booking.Status,
		ToStatus:   to,
		ActorID:    actorID,
		ActorRole:  string(role),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record status event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"from":       booking.Status,
		"to":         to,
		"actor_role": role,
	}).Info("Booking status changed")

	booking.Status = to
	return nil
}

// History lists a booking's transitions oldest first.
func (s *BookingService) History(ctx context.Context, bookingID, actorID uuid.UUID) ([]models.BookingStatusEvent, error) {
	if _, err := s.GetBooking(ctx, bookingID, actorID); err != nil {
		return nil, err
	}

	var events []models.BookingStatusEvent
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).
		Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch booking history: %w", err)
	}
	return events, nil
}

// InitiatePayment opens a hosted checkout for the booking's snapshotted price.
func (s *BookingService) InitiatePayment(ctx context.Context, bookingID, actorID uuid.UUID) (*PaymentSession, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Preload("Service", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&booking, "id = ?", bookingID).Error
	if err != nil {
		return nil, notFoundOr(err, "booking.not_found", "booking")
	}

	if RoleFor(&booking, actorID) != ActorCustomer {
		return nil, newError(KindPermissionDenied, "payment.customer_only", "only the customer can pay for a booking")
	}
	if booking.Status != models.BookingStatusAccepted {
		return nil, newError(KindInvalidState, "payment.not_accepted", "booking must be accepted before payment")
	}
	if booking.IsPaid() {
		return nil, newError(KindInvalidState, "payment.already_paid", "booking is already paid")
	}
	if booking.PriceSnapshot < s.config.Payment.MinimumAmount {
		return nil, newError(KindInvalidInput, "payment.amount_too_small", "amount is below the gateway minimum")
	}

	description := "Tailoring booking"
	if booking.Service != nil {
		description = booking.Service.Name
	}
	id := booking.ID.String()
	req := CheckoutRequest{
		BookingID:   id,
		Amount:      booking.PriceSnapshot,
		Currency:    s.config.Payment.Currency,
		Description: description,
		SuccessURL:  redirectURL(s.config.Payment.SuccessURL, id),
		CancelURL:   redirectURL(s.config.Payment.CancelURL, id),
	}

	session, err := gatewayCall(ctx, s.config.Payment, "create_checkout_session",
		func(ctx context.Context) (*CheckoutSession, error) {
			return s.gateway.CreateCheckoutSession(ctx, req)
		})
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", booking.ID, models.PaymentStatusUnpaid).
		Update("payment_session_id", session.ID)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to store payment session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, newError(KindConflict, "payment.already_paid", "booking was paid concurrently")
	}

	return &PaymentSession{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		Amount:      booking.PriceSnapshot,
	}, nil
}

// ConfirmPayment marks the booking paid once the gateway reports the
// session as paid. Repeating it with the paying session is a no-op.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID, actorID uuid.UUID, sessionID string) (*BookingView, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", bookingID).Error; err != nil {
		return nil, notFoundOr(err, "booking.not_found", "booking")
	}
	if RoleFor(&booking, actorID) != ActorCustomer {
		return nil, newError(KindPermissionDenied, "payment.customer_only", "only the customer can confirm payment")
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, newError(KindInvalidInput, "payment.session_required", "session_id is required")
	}
	if booking.IsPaid() {
		if booking.PaymentSessionID == nil || *booking.PaymentSessionID != sessionID {
			return nil, newError(KindInvalidInput, "payment.session_mismatch", "checkout session belongs to another booking")
		}
		return s.loadView(ctx, booking.ID)
	}

	session, err := gatewayCall(ctx, s.config.Payment, "get_checkout_session",
		func(ctx context.Context) (*CheckoutSession, error) {
			return s.gateway.GetCheckoutSession(ctx, sessionID)
		})
	if err != nil {
		return nil, err
	}

	if err := s.applyPaidSession(ctx, &booking, session); err != nil {
		return nil, err
	}
	return s.loadView(ctx, booking.ID)
}

// HandleWebhook verifies a gateway notification and confirms the booking it
// refers to. Unrelated events are acknowledged and ignored.
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return wrapError(KindInvalidInput, "payment.invalid_webhook", "invalid webhook payload", err)
	}

	entry := logrus.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})
	if event.Session == nil {
		entry.Debug("Ignoring payment webhook")
		return nil
	}

	bookingID, err := uuid.Parse(event.Session.BookingID)
	if err != nil {
		entry.Warn("Payment webhook without booking reference")
		return nil
	}

	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry.WithField("booking_id", bookingID).Warn("Payment webhook for unknown booking")
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}
	if booking.IsPaid() {
		return nil
	}

	if err := s.applyPaidSession(ctx, &booking, event.Session); err != nil {
		if errors.Is(err, ErrPaymentNotConfirmed) {
			entry.Info("Checkout session not yet paid")
			return nil
		}
		return err
	}
	return nil
}

func (s *BookingService) applyPaidSession(ctx context.Context, booking *models.Booking, session *CheckoutSession) error {
	if session.BookingID != booking.ID.String() {
		return newError(KindInvalidInput, "payment.session_mismatch", "checkout session belongs to another booking")
	}
	if !session.Paid {
		return newError(KindPaymentNotConfirmed, "payment.not_confirmed", "payment has not been confirmed")
	}

	sessionID := session.ID
	result := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", booking.ID, models.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status":     models.PaymentStatusPaid,
			"payment_session_id": sessionID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark booking paid: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		logrus.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"session_id": sessionID,
		}).Info("Booking payment confirmed")
	}
	return nil
}

func (s *BookingService) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("ProviderAccount").
		Preload("Service", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Review")
}

func (s *BookingService) loadView(ctx context.Context, bookingID uuid.UUID) (*BookingView, error) {
	var booking models.Booking
	if err := s.withRelations(s.db.WithContext(ctx)).First(&booking, "id = ?", bookingID).Error; err != nil {
		return nil, notFoundOr(err, "booking.not_found", "booking")
	}
	view := toBookingView(&booking)
	return &view, nil
}

func toBookingView(b *models.Booking) BookingView {
	view := BookingView{
		Booking:  *b,
		Customer: b.Customer.Ref(),
		Provider: b.ProviderAccount.Ref(),
		Reviewed: b.Review != nil,
	}
	if b.Service != nil {
		view.ServiceName = b.Service.Name
	}
	return view
}
