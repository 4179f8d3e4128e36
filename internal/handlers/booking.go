// internal/handlers/booking.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type BookingHandler struct {
	bookingService *services.BookingService
}

func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
	}
}

// GET /bookings
func (h *BookingHandler) List(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	bookings, total, err := h.bookingService.ListBookings(c.Request.Context(), account, params)
	if err != nil {
		respondError(c, err)
		return
	}
	paginated(c, bookings, total, params)
}

// POST /bookings
func (h *BookingHandler) Create(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), account, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, booking)
}

// GET /bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	booking, err := h.bookingService.GetBooking(c.Request.Context(), pathID(c, "id"), account.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, booking)
}

// GET /bookings/:id/history
func (h *BookingHandler) History(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	events, err := h.bookingService.History(c.Request.Context(), pathID(c, "id"), account.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, events)
}

// POST /bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.AttemptTransition(c.Request.Context(), pathID(c, "id"), account.ID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, booking)
}
