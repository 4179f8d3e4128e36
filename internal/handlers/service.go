// internal/handlers/service.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

// ServiceHandler manages the caller's own tailoring services.
type ServiceHandler struct {
	providerService *services.ProviderService
}

func NewServiceHandler(providerService *services.ProviderService) *ServiceHandler {
	return &ServiceHandler{
		providerService: providerService,
	}
}

// GET /tailors/me/services
func (h *ServiceHandler) ListMine(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	list, err := h.providerService.ListMyServices(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, list)
}

// POST /tailors/me/services
func (h *ServiceHandler) Create(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.ServiceRequest
	if !bindJSON(c, &req) {
		return
	}

	service, err := h.providerService.CreateService(c.Request.Context(), account, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, service)
}

// GET /tailors/me/services/:id
func (h *ServiceHandler) Get(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	service, err := h.providerService.GetMyService(c.Request.Context(), account, pathID(c, "id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, service)
}

// PATCH /tailors/me/services/:id
func (h *ServiceHandler) Update(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.ServiceRequest
	if !bindJSON(c, &req) {
		return
	}

	service, err := h.providerService.UpdateService(c.Request.Context(), account, pathID(c, "id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, service)
}

// DELETE /tailors/me/services/:id
func (h *ServiceHandler) Delete(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	if err := h.providerService.DeleteService(c.Request.Context(), account, pathID(c, "id")); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// POST /tailors/me/services/:id/images
func (h *ServiceHandler) AddImages(c *gin.Context) {
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

	service, err := h.providerService.AddServiceImages(c.Request.Context(), account, pathID(c, "id"), form.File["images"])
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, service)
}

// DELETE /tailors/me/services/:id/images/:imageID
func (h *ServiceHandler) DeleteImage(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	err := h.providerService.DeleteServiceImage(c.Request.Context(), account, pathID(c, "id"), pathID(c, "imageID"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}
