// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

// AuthRequired verifies the bearer token and mirrors its identity into the
// local accounts table. The synced account is stored in the context.
func AuthRequired(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(strings.TrimSpace(parts[1]))
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidIdentity))
			c.Abort()
			return
		}

		account, err := accounts.Sync(c.Request.Context(), services.Identity{
			ID:       userID,
			Username: claims.Username,
			Email:    claims.Email,
			Role:     claims.Role,
		})
		if err != nil {
			if services.KindOf(err) == services.KindInvalidInput {
				utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidIdentity))
			} else {
				logrus.WithError(err).Error("Failed to sync account")
				utils.InternalErrorResponse(c, "")
			}
			c.Abort()
			return
		}

		c.Set(utils.ContextAccount, account)
		c.Next()
	}
}
