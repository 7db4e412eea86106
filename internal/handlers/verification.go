// internal/handlers/verification.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/mediaseal/mediaseal-backend/internal/merkle"
	"github.com/mediaseal/mediaseal-backend/internal/services"
	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

type VerificationHandler struct {
	verificationService *services.VerificationService
}

func NewVerificationHandler(verificationService *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
	}
}

// GET /v1/verify/:code
func (h *VerificationHandler) VerifyByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		utils.BadRequestResponse(c, "Verification code is required", nil)
		return
	}

	record, err := h.verificationService.LookupByCode(code)
	if err != nil {
		if errors.Is(err, services.ErrCodeNotFound) {
			utils.NotFoundResponse(c, "Verification record")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"verified": true,
		"record":   record,
	})
}

// GET /v1/verify/:code/proof/:label
func (h *VerificationHandler) GetProof(c *gin.Context) {
	code := c.Param("code")
	label := c.Param("label")
	if code == "" || label == "" {
		utils.BadRequestResponse(c, "Verification code and layer label are required", nil)
		return
	}

	proof, err := h.verificationService.ProofFor(code, label)
	if err != nil {
		if errors.Is(err, services.ErrCodeNotFound) {
			utils.NotFoundResponse(c, "Verification record")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, proof)
}

type verifyProofRequest struct {
	LeafHash string             `json:"leaf_hash" binding:"required"`
	Proof    []merkle.ProofStep `json:"proof" binding:"required"`
	Root     string             `json:"root" binding:"required"`
}

// POST /v1/verify/proof
//
// A failed verification is a result, not an error: the response is 200
// with valid=false.
func (h *VerificationHandler) VerifyProof(c *gin.Context) {
	var req verifyProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid proof payload", err.Error())
		return
	}

	valid := h.verificationService.CheckProof(req.LeafHash, req.Proof, req.Root)

	utils.SuccessResponse(c, gin.H{
		"valid": valid,
	})
}
