// internal/services/quota_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/models"
)

// QuotaService reports how many active assets an uploader currently holds.
type QuotaService interface {
	ActiveAssetCount(uploaderID uuid.UUID) (int64, error)
}

// Active-asset limits per tier; -1 means unlimited.
var tierQuotas = map[models.Tier]int64{
	models.TierFree:       10,
	models.TierPro:        100,
	models.TierEnterprise: -1,
}

// QuotaFor returns the active-asset limit for a tier.
func QuotaFor(tier models.Tier) int64 {
	if limit, ok := tierQuotas[tier]; ok {
		return limit
	}
	return tierQuotas[models.TierFree]
}

type dbQuotaService struct {
	db *gorm.DB
}

func NewQuotaService(db *gorm.DB) QuotaService {
	return &dbQuotaService{db: db}
}

func (s *dbQuotaService) ActiveAssetCount(uploaderID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.Model(&models.MediaAsset{}).
		Where("owner_id = ?", uploaderID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count active assets: %w", err)
	}
	return count, nil
}
