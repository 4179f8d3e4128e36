// internal/i18n/keys.go
package i18n

// Keys used outside the service layer. Service errors carry their own key.
const (
	// Authentication
	KeyAuthRequired        = "auth.required"
	KeyAuthInvalidToken    = "auth.invalid_token"
	KeyAuthTokenExpired    = "auth.token_expired"
	KeyAuthInvalidIdentity = "auth.invalid_identity"

	// Generic
	KeyInternalError = "error.internal"
	KeyRateLimited   = "error.rate_limited"
	KeyNotFound      = "error.not_found"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyInvalidID         = "validation.invalid_id"

	// File Upload
	KeyFileMissing = "upload.no_files"
)
