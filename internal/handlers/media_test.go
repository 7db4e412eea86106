// internal/handlers/media_test.go
package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewMediaHandler(nil, nil)

	r := gin.New()
	r.POST("/v1/media/upload", func(c *gin.Context) {
		c.Set("user_id", uuid.New().String())
	}, handler.Upload)
	return r
}

func postUploadForm(t *testing.T, r *gin.Engine, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest("POST", "/v1/media/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadRejectsUnknownTier(t *testing.T) {
	w := postUploadForm(t, uploadRouter(), map[string]string{"tier": "platinum"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	assert.Contains(t, w.Body.String(), "free, pro, enterprise")
}

func TestUploadRequiresTier(t *testing.T) {
	// No form field and no tier claim in the context.
	w := postUploadForm(t, uploadRouter(), map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}
