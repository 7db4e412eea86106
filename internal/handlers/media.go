// internal/handlers/media.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediaseal/mediaseal-backend/internal/models"
	"github.com/mediaseal/mediaseal-backend/internal/services"
	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

// maxUploadBytes bounds the multipart read; larger files are rejected
// before any hashing.
const maxUploadBytes = 512 << 20

type MediaHandler struct {
	uploadService *services.UploadService
	statusService *services.StatusService
}

type uploadRequest struct {
	Tier string `form:"tier" validate:"required,tier"`
}

func NewMediaHandler(uploadService *services.UploadService, statusService *services.StatusService) *MediaHandler {
	return &MediaHandler{
		uploadService: uploadService,
		statusService: statusService,
	}
}

// POST /v1/media/upload
func (h *MediaHandler) Upload(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	uploaderID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	req := uploadRequest{Tier: c.PostForm("tier")}
	if req.Tier == "" {
		if t, ok := utils.GetTierFromContext(c); ok {
			req.Tier = t
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(err))
		return
	}
	tier := models.Tier(req.Tier)

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		utils.BadRequestResponse(c, "Video file is required", nil)
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		utils.BadRequestResponse(c, "File exceeds maximum upload size", nil)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to read upload")
		return
	}

	result, err := h.uploadService.Upload(c.Request.Context(), uploaderID, tier, data)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

func (h *MediaHandler) writeUploadError(c *gin.Context, err error) {
	var policyErr *services.PolicyError
	if errors.As(err, &policyErr) {
		utils.ErrorResponse(c, http.StatusForbidden, "UPLOAD_BLOCKED", policyErr.Message, gin.H{
			"status":         policyErr.State,
			"strikes":        policyErr.Strikes,
			"ban_expires_at": policyErr.BanExpiresAt,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuotaExceeded):
		utils.ErrorResponse(c, http.StatusForbidden, "QUOTA_EXCEEDED", err.Error(), nil)
	case errors.Is(err, services.ErrUnreadableMedia):
		// Unreadable input aborts before any record exists; the caller
		// gets a generic failure, not decoder internals.
		utils.UnprocessableResponse(c, "media processing failed")
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// GET /v1/media/:id/status
func (h *MediaHandler) Status(c *gin.Context) {
	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	view, err := h.statusService.Progress(c.Request.Context(), assetID)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			utils.NotFoundResponse(c, "Media asset")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, view)
}
