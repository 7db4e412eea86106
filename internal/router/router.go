// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/config"
	"github.com/mediaseal/mediaseal-backend/internal/handlers"
	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/jobs"
	"github.com/mediaseal/mediaseal-backend/internal/media"
	"github.com/mediaseal/mediaseal-backend/internal/middleware"
	"github.com/mediaseal/mediaseal-backend/internal/services"
	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, engine *hashing.Engine, decoder media.Decoder,
	storageService *services.StorageService, notificationService *services.NotificationService,
	queue jobs.Queue, statuses jobs.StatusStore) *gin.Engine {
	// Initialize services
	blockchainService := services.NewBlockchainService(db, cfg)
	duplicateService := services.NewDuplicateService(db)
	policyService := services.NewPolicyService(db, time.Duration(cfg.Policy.TempBanHours)*time.Hour)
	quotaService := services.NewQuotaService(db)
	watermarkRenderer := services.NewTagRenderer()

	uploadService := services.NewUploadService(db, cfg, engine, decoder, duplicateService,
		policyService, quotaService, watermarkRenderer, storageService, blockchainService,
		notificationService, queue, statuses)
	statusService := services.NewStatusService(db, statuses)
	verificationService := services.NewVerificationService(db)

	// Initialize handlers
	mediaHandler := handlers.NewMediaHandler(uploadService, statusService)
	verificationHandler := handlers.NewVerificationHandler(verificationService)
	policyHandler := handlers.NewPolicyHandler(policyService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Media routes
		mediaRoutes := v1.Group("/media")
		mediaRoutes.Use(middleware.AuthRequired())
		{
			mediaRoutes.POST("/upload", middleware.UploadRateLimit(), mediaHandler.Upload)
			mediaRoutes.GET("/:id/status", mediaHandler.Status)
		}

		// Verification routes. Public, but an offered bearer token still
		// attributes the lookup in the request log.
		verify := v1.Group("/verify")
		verify.Use(middleware.VerifyRateLimit(), middleware.OptionalAuth())
		{
			verify.GET("/:code", verificationHandler.VerifyByCode)
			verify.GET("/:code/proof/:label", verificationHandler.GetProof)
			verify.POST("/proof", verificationHandler.VerifyProof)
		}

		// Policy routes
		policy := v1.Group("/policy")
		policy.Use(middleware.AuthRequired())
		{
			policy.GET("/status", policyHandler.GetStatus)
		}
	}

	return r
}
