// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

func claimsEcho() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := utils.GetUserIDFromContext(c)
		tier, _ := utils.GetTierFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "tier": tier})
	}
}

func getWithToken(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/claims", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret")

	r := gin.New()
	r.GET("/claims", AuthRequired(), claimsEcho())

	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "pro", 1)
	require.NoError(t, err)

	w := getWithToken(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), "pro")

	// Missing and malformed credentials are both rejected.
	assert.Equal(t, http.StatusUnauthorized, getWithToken(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, getWithToken(r, "not-a-jwt").Code)
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret")

	r := gin.New()
	r.GET("/claims", OptionalAuth(), claimsEcho())

	// Anonymous requests pass through without claims.
	w := getWithToken(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "enterprise", 1)
	require.NoError(t, err)

	w = getWithToken(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())

	// An invalid token degrades to anonymous rather than failing.
	w = getWithToken(r, "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)
}
