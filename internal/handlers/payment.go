// internal/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

// maxWebhookBytes caps webhook bodies; Stripe events are far smaller.
const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	bookingService *services.BookingService
}

func NewPaymentHandler(bookingService *services.BookingService) *PaymentHandler {
	return &PaymentHandler{
		bookingService: bookingService,
	}
}

// POST /bookings/:id/payment
func (h *PaymentHandler) Initiate(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	session, err := h.bookingService.InitiatePayment(c.Request.Context(), pathID(c, "id"), account.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// POST /bookings/:id/mark-paid
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.MarkPaidRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.ConfirmPayment(c.Request.Context(), pathID(c, "id"), account.ID, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, booking)
}

// POST /payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "payload"), nil)
		return
	}

	if err := h.bookingService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"received": true})
}
