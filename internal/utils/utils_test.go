package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	defer SetJWTSecret("your-secret-key-change-in-production")

	id := uuid.New()
	token, err := GenerateJWT(id, "meera", "meera@example.com", "tailor", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.UserID)
	assert.Equal(t, "meera", claims.Username)
	assert.Equal(t, "tailor", claims.Role)

	SetJWTSecret("rotated")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredAndForeignIssuer(t *testing.T) {
	SetJWTSecret("test-secret")
	defer SetJWTSecret("your-secret-key-change-in-production")

	expired, err := GenerateJWT(uuid.New(), "ravi", "", "customer", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired)
	assert.Error(t, err)

	token, err := GenerateJWT(uuid.New(), "ravi", "", "customer", time.Hour)
	require.NoError(t, err)
	SetJWTIssuer("https://id.example")
	defer SetJWTIssuer("")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestPickupDateValidator(t *testing.T) {
	type req struct {
		PickupDate string `validate:"required,pickup_date"`
	}
	assert.NoError(t, ValidateStruct(req{"2026-05-01"}))
	assert.NoError(t, ValidateStruct(req{"2026-05-01T10:00:00+05:30"}))

	err := ValidateStruct(req{"01/05/2026"})
	require.Error(t, err)
	details := GetValidationErrors(err)
	require.Len(t, details, 1)
	assert.Equal(t, "pickupdate", details[0].Field)
	assert.Equal(t, "pickup_date", details[0].Tag)
}

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]PaginationParams{
		"/":                  {Page: 1, Limit: 20},
		"/?page=3&limit=5":   {Page: 3, Limit: 5},
		"/?page=0&limit=500": {Page: 1, Limit: 20},
		"/?page=x&limit=-1":  {Page: 1, Limit: 20},
	}
	for url, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", url, nil)
		assert.Equal(t, want, GetPaginationParams(c), url)
	}

	result := CreatePaginationResult([]int{}, 41, PaginationParams{Page: 1, Limit: 20})
	assert.Equal(t, 3, result.TotalPages)
}
