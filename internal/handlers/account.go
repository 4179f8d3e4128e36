// internal/handlers/account.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// GET /me
func (h *AccountHandler) GetMe(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, account)
}

// PATCH /me
func (h *AccountHandler) UpdateMe(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.UpdateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.accountService.UpdateMe(c.Request.Context(), account, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, updated)
}
