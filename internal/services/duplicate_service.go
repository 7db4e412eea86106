// internal/services/duplicate_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/models"
)

// Similarity thresholds: at or above the block threshold the upload is a
// duplicate; the advisory band [advisory, block) is logged but never blocks.
const (
	duplicateThreshold = 0.95
	advisoryThreshold  = 0.85
)

// DuplicateMatch describes a corpus hit for a new upload. Ephemeral: it is
// computed per upload and persisted only as a side effect on the uploader's
// violation record.
type DuplicateMatch struct {
	CandidateAssetID uuid.UUID         `json:"candidate_asset_id"`
	OwnerID          uuid.UUID         `json:"owner_id"`
	Score            float64           `json:"similarity_score"`
	Layer            models.MatchLayer `json:"matched_layer"`
}

// DuplicateService compares a new upload's hash bundle, layer by layer,
// against the corpus of previously verified assets. The scan is O(N) over
// the corpus per upload; fine for small corpora, a known bottleneck beyond
// that.
type DuplicateService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewDuplicateService(db *gorm.DB) *DuplicateService {
	return &DuplicateService{
		db:  db,
		log: logrus.WithField("component", "duplicate_detector"),
	}
}

// Evaluate scans the verified corpus for a duplicate of the bundle. A nil
// match with a nil error is the normal "no duplicate" outcome, never an
// error.
func (s *DuplicateService) Evaluate(bundle *hashing.Bundle, tier models.Tier) (*DuplicateMatch, error) {
	var corpus []models.VerificationRecord
	if err := s.db.Preload("Asset").
		Where("status IN ?", []models.VerificationStatus{
			models.VerificationStatusVerified,
			models.VerificationStatusFullyVerified,
		}).
		Find(&corpus).Error; err != nil {
		return nil, fmt.Errorf("failed to load verification corpus: %w", err)
	}

	return evaluateAgainst(bundle, corpus, tier, s.log), nil
}

// evaluateAgainst runs the tiered layer comparison against an in-memory
// corpus. Layer order: exact short-circuits first, then perceptual for
// tier >= pro, then audio equality for enterprise.
func evaluateAgainst(bundle *hashing.Bundle, corpus []models.VerificationRecord, tier models.Tier, log *logrus.Entry) *DuplicateMatch {
	newExact := hashing.CombineHashes(bundle.ExactFrameHashes)

	for i := range corpus {
		candidate := &corpus[i]
		score := hashing.BinarySimilarity(newExact, hashing.CombineHashes(candidate.ExactFrameHashes))
		if score >= duplicateThreshold {
			return matchFor(candidate, score, models.MatchLayerExact)
		}
	}

	if tier.AtLeast(models.TierPro) {
		for i := range corpus {
			candidate := &corpus[i]
			score := hashing.CompositeSimilarity(bundle.PerceptualFrameHashes, candidate.PerceptualFrameHashes)
			switch {
			case score >= duplicateThreshold:
				// Commonly indicates watermark removal or a re-encode.
				return matchFor(candidate, score, models.MatchLayerPerceptual)
			case score >= advisoryThreshold:
				logAdvisory(log, candidate, score, models.MatchLayerPerceptual)
			}
		}
	}

	if tier == models.TierEnterprise &&
		bundle.AudioFingerprint != "" && bundle.AudioFingerprint != hashing.NoAudioFingerprint {
		for i := range corpus {
			candidate := &corpus[i]
			if candidate.AudioFingerprint == hashing.NoAudioFingerprint {
				continue
			}
			if hashing.BinarySimilarity(bundle.AudioFingerprint, candidate.AudioFingerprint) == 1.0 {
				return matchFor(candidate, 1.0, models.MatchLayerAudio)
			}
		}
	}

	return nil
}

func matchFor(candidate *models.VerificationRecord, score float64, layer models.MatchLayer) *DuplicateMatch {
	return &DuplicateMatch{
		CandidateAssetID: candidate.AssetID,
		OwnerID:          candidate.Asset.OwnerID,
		Score:            score,
		Layer:            layer,
	}
}

func logAdvisory(log *logrus.Entry, candidate *models.VerificationRecord, score float64, layer models.MatchLayer) {
	if log == nil {
		return
	}
	log.WithFields(logrus.Fields{
		"candidate_asset_id": candidate.AssetID,
		"similarity":         score,
		"layer":              layer,
	}).Warn("Possible duplicate below blocking threshold")
}
