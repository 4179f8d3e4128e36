// internal/handlers/tailor.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type TailorHandler struct {
	providerService *services.ProviderService
	searchService   *services.SearchService
	reviewService   *services.ReviewService
}

func NewTailorHandler(providerService *services.ProviderService, searchService *services.SearchService, reviewService *services.ReviewService) *TailorHandler {
	return &TailorHandler{
		providerService: providerService,
		searchService:   searchService,
		reviewService:   reviewService,
	}
}

// GET /tailors?specialization=&lat=&lng=&radius_km=
func (h *TailorHandler) Search(c *gin.Context) {
	pagination := utils.GetPaginationParams(c)
	params, err := h.searchService.ParseSearchParams(
		c.Query("specialization"), c.Query("lat"), c.Query("lng"), c.Query("radius_km"), pagination,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.searchService.Search(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(page.Results, page.Total, pagination)
	utils.SetPaginationHeaders(c, result)
	meta := gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	}
	if page.DistanceMode != "" {
		meta["distance_mode"] = page.DistanceMode
	}
	utils.SuccessResponseWithMeta(c, page.Results, meta)
}

// GET /tailors/me
func (h *TailorHandler) GetMyProfile(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	view, err := h.providerService.GetMyProfile(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// PATCH /tailors/me
func (h *TailorHandler) UpdateMyProfile(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.providerService.UpdateMyProfile(c.Request.Context(), account, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// POST /tailors/me/image
func (h *TailorHandler) UploadProfileImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileMissing), err.Error())
		return
	}

	view, err := h.providerService.UploadProfileImage(c.Request.Context(), account, header)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// GET /tailors/:username
func (h *TailorHandler) GetTailor(c *gin.Context) {
	view, err := h.providerService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// GET /tailors/:username/services
func (h *TailorHandler) GetTailorServices(c *gin.Context) {
	list, err := h.providerService.ListPublicServices(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, list)
}

// GET /tailors/:username/reviews
func (h *TailorHandler) GetTailorReviews(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	reviews, total, err := h.reviewService.ListForTailor(c.Request.Context(), c.Param("username"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	paginated(c, reviews, total, params)
}

// GET /specializations
func (h *TailorHandler) GetSpecializations(c *gin.Context) {
	specs, err := h.providerService.ListSpecializations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, specs)
}
