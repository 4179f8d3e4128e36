// internal/handlers/review.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// GET /reviews
func (h *ReviewHandler) ListMine(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	reviews, total, err := h.reviewService.ListMine(c.Request.Context(), account.ID, params)
	if err != nil {
		respondError(c, err)
		return
	}
	paginated(c, reviews, total, params)
}

// POST /reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), account.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, review)
}

// POST /reviews/:id/images
func (h *ReviewHandler) AddImages(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileMissing), err.Error())
		return
	}

	review, err := h.reviewService.AddImages(c.Request.Context(), pathID(c, "id"), account.ID, form.File["images"])
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, review)
}

// DELETE /reviews/:id/images/:imageID
func (h *ReviewHandler) DeleteImage(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	if err := h.reviewService.DeleteImage(c.Request.Context(), pathID(c, "id"), pathID(c, "imageID"), account.ID); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}
