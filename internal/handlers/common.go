// internal/handlers/common.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/models"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindInvalidInput:        http.StatusBadRequest,
	services.KindPermissionDenied:    http.StatusForbidden,
	services.KindInvalidState:        http.StatusConflict,
	services.KindInvalidTransition:   http.StatusConflict,
	services.KindNotFound:            http.StatusNotFound,
	services.KindPaymentNotConfirmed: http.StatusPaymentRequired,
	services.KindGatewayError:        http.StatusBadGateway,
	services.KindConflict:            http.StatusConflict,
}

// StatusFor returns the HTTP status for a service error kind.
func StatusFor(kind services.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError renders err in the standard envelope. Service errors keep
// their kind as the code and get a localized message; anything else is
// logged and reported as an internal error.
func respondError(c *gin.Context, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	message := se.Message
	if se.Key != "" {
		if text, ok := i18n.Lookup(utils.GetLangFromContext(c), se.Key); ok {
			message = text
		}
	}
	if se.Kind == services.KindGatewayError {
		logrus.WithError(err).Warn("Payment gateway error")
	}
	utils.ErrorResponse(c, StatusFor(se.Kind), string(se.Kind), message, nil)
}

func currentAccount(c *gin.Context) (*models.Account, bool) {
	account, ok := utils.GetAccountFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return account, ok
}

// pathID parses a uuid path parameter. Malformed ids resolve to uuid.Nil,
// which no row has, so lookups report not found.
func pathID(c *gin.Context, name string) uuid.UUID {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// bindJSON decodes and validates the request body, writing the error
// response itself when it returns false.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func paginated(c *gin.Context, data interface{}, total int64, params utils.PaginationParams) {
	utils.PaginatedResponse(c, utils.CreatePaginationResult(data, total, params))
}
