// internal/services/payment_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/tailorly/marketplace-backend/internal/config"
)

const bookingMetadataKey = "booking_id"

// Stripe event types that mean a checkout session has been paid.
const (
	eventCheckoutCompleted      = "checkout.session.completed"
	eventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

type CheckoutRequest struct {
	BookingID   string
	Amount      float64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID        string
	URL       string
	BookingID string
	Paid      bool
	// AmountTotal is in the currency's minor unit.
	AmountTotal int64
}

// WebhookEvent is a verified gateway notification. Session is set only for
// events that report a paid checkout session.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// PaymentGateway is the hosted-checkout collaborator used by bookings.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// ToMinorUnits converts a decimal amount to the gateway's integer units.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type StripeGateway struct {
	client        session.Client
	webhookSecret string
}

func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	return &StripeGateway{
		client: session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.StripeSecretKey,
		},
		webhookSecret: cfg.StripeWebhookSecret,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.BookingID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata(bookingMetadataKey, req.BookingID)
	params.Context = ctx

	s, err := g.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.client.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case eventCheckoutCompleted, eventCheckoutAsyncSucceeded:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		out.Session = fromStripeSession(&s)
	}
	return out, nil
}

func fromStripeSession(s *stripe.CheckoutSession) *CheckoutSession {
	bookingID := s.ClientReferenceID
	if bookingID == "" && s.Metadata != nil {
		bookingID = s.Metadata[bookingMetadataKey]
	}
	return &CheckoutSession{
		ID:          s.ID,
		URL:         s.URL,
		BookingID:   bookingID,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: s.AmountTotal,
	}
}

// redirectURL fills the {BOOKING_ID} placeholder of a configured return URL.
// {CHECKOUT_SESSION_ID} is left for the gateway to substitute.
func redirectURL(template, bookingID string) string {
	return strings.ReplaceAll(template, "{BOOKING_ID}", bookingID)
}

// gatewayCall runs fn under the configured payment timeout and maps any
// failure to a GatewayError.
func gatewayCall[T any](ctx context.Context, cfg config.PaymentConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := fn(ctx)
	if err != nil {
		logrus.WithError(err).WithField("operation", op).Warn("Payment gateway call failed")
		var zero T
		return zero, wrapError(KindGatewayError, "payment.gateway_error", "payment gateway unavailable", err)
	}
	return res, nil
}
