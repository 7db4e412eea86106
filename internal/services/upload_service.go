// internal/services/upload_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/config"
	"github.com/mediaseal/mediaseal-backend/internal/database"
	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/jobs"
	"github.com/mediaseal/mediaseal-backend/internal/media"
	"github.com/mediaseal/mediaseal-backend/internal/merkle"
	"github.com/mediaseal/mediaseal-backend/internal/models"
	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

var (
	// ErrUnreadableMedia aborts the upload before any record is persisted;
	// the caller surfaces it as a generic processing failure.
	ErrUnreadableMedia = errors.New("media processing failed")

	ErrQuotaExceeded = errors.New("active asset quota exceeded for tier")
)

// Upload pipeline stages, logged as the state machine advances.
type uploadStage string

const (
	stageReceived          uploadStage = "RECEIVED"
	stageQuotaBanCheck     uploadStage = "QUOTA_BAN_CHECK"
	stageHashFast          uploadStage = "HASH_FAST"
	stageDuplicateCheck    uploadStage = "DUPLICATE_CHECK"
	stageDuplicateResolved uploadStage = "DUPLICATE_RESOLVED"
	stageNewAsset          uploadStage = "NEW_ASSET"
	stageWatermarkApplied  uploadStage = "WATERMARK_APPLIED"
	stageRecordPersisted   uploadStage = "RECORD_PERSISTED"
	stageBackgroundQueued  uploadStage = "BACKGROUND_QUEUED"
)

type DuplicateInfo struct {
	MatchedAssetID  uuid.UUID         `json:"matched_asset_id"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	OwnerProfileURL string            `json:"owner_profile_url,omitempty"`
	Confidence      float64           `json:"confidence"`
	MatchedLayer    models.MatchLayer `json:"matched_layer"`
	IsOwner         bool              `json:"is_owner"`
	Advisory        string            `json:"advisory"`
}

type UploadResponse struct {
	AssetID          uuid.UUID           `json:"asset_id"`
	VerificationCode string              `json:"verification_code,omitempty"`
	Status           models.UploadStatus `json:"status"`
	HashSummary      map[string]string   `json:"hash_summary,omitempty"`
	JobID            string              `json:"job_id,omitempty"`
	PendingLayers    []string            `json:"pending_layers"`
	Duplicate        *DuplicateInfo      `json:"duplicate,omitempty"`
}

// Collaborator boundaries of the upload pipeline. PolicyService,
// DuplicateService, and BlockchainService satisfy these; the store is
// gorm-backed in production.
type policyGate interface {
	CheckStatus(uploaderID uuid.UUID) (*PolicyStatus, error)
	RecordDuplicateAttempt(uploaderID uuid.UUID, videoHash string, originalOwner, originalAssetID uuid.UUID) (*models.ViolationRecord, error)
}

type duplicateScanner interface {
	Evaluate(bundle *hashing.Bundle, tier models.Tier) (*DuplicateMatch, error)
}

type recordAnchor interface {
	AnchorRecord(assetID uuid.UUID, masterHash string)
}

// assetStore persists the new asset with its verification record in one
// transaction, and extends retention on owner re-uploads.
type assetStore interface {
	CreateAssetWithRecord(asset *models.MediaAsset, record *models.VerificationRecord) error
	ExtendRetention(assetID uuid.UUID, until time.Time) error
}

type gormAssetStore struct {
	db *gorm.DB
}

func (s *gormAssetStore) CreateAssetWithRecord(asset *models.MediaAsset, record *models.VerificationRecord) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return fmt.Errorf("failed to create media asset: %w", err)
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create verification record: %w", err)
		}
		return nil
	})
}

func (s *gormAssetStore) ExtendRetention(assetID uuid.UUID, until time.Time) error {
	return s.db.Model(&models.MediaAsset{}).
		Where("id = ?", assetID).
		Update("retained_until", until).Error
}

// UploadService is the upload-time state machine: quota/ban check, fast
// hashing, duplicate check, then either duplicate resolution or watermark /
// persist / enqueue for a new asset. Everything here runs synchronously
// within the upload request; only the slow hash layers leave through the
// queue.
type UploadService struct {
	store      assetStore
	config     *config.Config
	engine     *hashing.Engine
	decoder    media.Decoder
	duplicates duplicateScanner
	policy     policyGate
	quota      QuotaService
	watermark  WatermarkRenderer
	storage    *StorageService
	blockchain recordAnchor
	notifier   *NotificationService
	queue      jobs.Queue
	statuses   jobs.StatusStore
	log        *logrus.Entry
}

func NewUploadService(db *gorm.DB, cfg *config.Config, engine *hashing.Engine,
	decoder media.Decoder, duplicates *DuplicateService, policy *PolicyService,
	quota QuotaService, watermark WatermarkRenderer, storage *StorageService,
	blockchain *BlockchainService, notifier *NotificationService,
	queue jobs.Queue, statuses jobs.StatusStore) *UploadService {
	return &UploadService{
		store:      &gormAssetStore{db: db},
		config:     cfg,
		engine:     engine,
		decoder:    decoder,
		duplicates: duplicates,
		policy:     policy,
		quota:      quota,
		watermark:  watermark,
		storage:    storage,
		blockchain: blockchain,
		notifier:   notifier,
		queue:      queue,
		statuses:   statuses,
		log:        logrus.WithField("component", "upload_orchestrator"),
	}
}

func (s *UploadService) Upload(ctx context.Context, uploaderID uuid.UUID, tier models.Tier, data []byte) (*UploadResponse, error) {
	log := s.log.WithFields(logrus.Fields{
		"uploader_id": uploaderID,
		"tier":        tier,
		"size_bytes":  len(data),
	})
	log.WithField("stage", stageReceived).Info("Upload received")

	// Ban and quota checks happen before any hashing.
	log.WithField("stage", stageQuotaBanCheck).Debug("Checking policy and quota")
	policyStatus, err := s.policy.CheckStatus(uploaderID)
	if err != nil {
		return nil, err
	}
	if !policyStatus.CanUpload {
		return nil, &PolicyError{
			State:        policyStatus.State,
			Strikes:      policyStatus.Strikes,
			BanExpiresAt: policyStatus.BanExpiresAt,
			Message:      policyStatus.Message,
		}
	}

	if limit := QuotaFor(tier); limit >= 0 {
		count, err := s.quota.ActiveAssetCount(uploaderID)
		if err != nil {
			return nil, err
		}
		if count >= limit {
			return nil, fmt.Errorf("%w: %d/%d", ErrQuotaExceeded, count, limit)
		}
	}

	// Fast path: exact frame hashes + metadata hash only. An unreadable
	// stream aborts here, before anything is persisted.
	log.WithField("stage", stageHashFast).Debug("Computing fast hash layers")
	video, err := s.decoder.Decode(data)
	if err != nil {
		log.WithError(err).Warn("Media decode failed")
		return nil, fmt.Errorf("%w: %v", ErrUnreadableMedia, err)
	}

	bundle, err := s.engine.FastBundle(data, video)
	if err != nil {
		log.WithError(err).Warn("Fast hashing failed")
		return nil, fmt.Errorf("%w: %v", ErrUnreadableMedia, err)
	}

	log.WithField("stage", stageDuplicateCheck).Debug("Scanning corpus for duplicates")
	match, err := s.duplicates.Evaluate(bundle, tier)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return s.resolveDuplicate(log, uploaderID, bundle, match)
	}

	return s.processNewAsset(ctx, log, uploaderID, tier, data, video, bundle)
}

// resolveDuplicate is terminal: no new asset is created. Owner re-uploads
// extend storage retention; non-owner matches are forwarded to the
// resubmission policy.
func (s *UploadService) resolveDuplicate(log *logrus.Entry, uploaderID uuid.UUID, bundle *hashing.Bundle, match *DuplicateMatch) (*UploadResponse, error) {
	isOwner := match.OwnerID == uploaderID
	log.WithFields(logrus.Fields{
		"stage":            stageDuplicateResolved,
		"matched_asset_id": match.CandidateAssetID,
		"layer":            match.Layer,
		"confidence":       match.Score,
		"is_owner":         isOwner,
	}).Info("Duplicate resolved")

	info := &DuplicateInfo{
		MatchedAssetID: match.CandidateAssetID,
		OwnerID:        match.OwnerID,
		Confidence:     match.Score,
		MatchedLayer:   match.Layer,
		IsOwner:        isOwner,
	}

	if isOwner {
		retained := time.Now().AddDate(0, 0, s.config.Retention.ExtensionDays)
		if err := s.store.ExtendRetention(match.CandidateAssetID, retained); err != nil {
			return nil, fmt.Errorf("failed to extend retention: %w", err)
		}
		info.Advisory = "this content is already verified under your account; storage retention has been extended"
	} else {
		if _, err := s.policy.RecordDuplicateAttempt(uploaderID, bundle.OriginalSHA256, match.OwnerID, match.CandidateAssetID); err != nil {
			return nil, err
		}
		info.OwnerProfileURL = fmt.Sprintf("%s/profiles/%s", s.config.Frontend.BaseURL, match.OwnerID)
		info.Advisory = "this content is already registered to another account; repeated attempts will restrict your uploads"

		go func() {
			if err := s.notifier.DuplicateAttempt(uploaderID, match.CandidateAssetID, string(match.Layer), match.Score); err != nil {
				s.log.WithError(err).Warn("Duplicate notification failed")
			}
		}()
	}

	return &UploadResponse{
		AssetID:       match.CandidateAssetID,
		Status:        models.UploadStatusDuplicate,
		PendingLayers: []string{},
		Duplicate:     info,
	}, nil
}

func (s *UploadService) processNewAsset(ctx context.Context, log *logrus.Entry, uploaderID uuid.UUID,
	tier models.Tier, data []byte, video *media.Video, bundle *hashing.Bundle) (*UploadResponse, error) {
	log.WithField("stage", stageNewAsset).Debug("Creating new asset")

	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	assetID := uuid.New()
	originalRef, err := s.storage.Put(s.storage.ObjectKey(assetID, "original"), data, "video/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("failed to store original media: %w", err)
	}

	// Watermarking is non-fatal: on failure fall back to the unwatermarked
	// bytes with a logged warning.
	rendered := data
	applied, renderedBytes, err := s.watermark.Apply(data, code, tier, "bottom-right")
	if err != nil || !applied {
		log.WithError(err).Warn("Watermark rendering failed, using unwatermarked asset")
	} else {
		rendered = renderedBytes
	}
	log.WithField("stage", stageWatermarkApplied).Debug("Watermark step complete")

	renderedRef, err := s.storage.Put(s.storage.ObjectKey(assetID, "rendered"), rendered, "video/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("failed to store rendered media: %w", err)
	}

	renderedSHA := hashing.SHA256Hex(rendered)

	createdAt := time.Now().UTC().Truncate(time.Second)
	tree, err := merkle.BuildFromSet(merkle.LeafSet{
		VerificationCode: code,
		OriginalSHA256:   bundle.OriginalSHA256,
		RenderedSHA256:   renderedSHA,
		ExactFrames:      hashing.CombineHashes(bundle.ExactFrameHashes),
		MetadataHash:     bundle.MetadataHash,
		Timestamp:        createdAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}

	asset := &models.MediaAsset{
		BaseModel:  models.BaseModel{ID: assetID, CreatedAt: createdAt},
		OwnerID:    uploaderID,
		Tier:       tier,
		StorageRef: originalRef,
	}
	asset.RenderedRef = renderedRef

	record := &models.VerificationRecord{
		BaseModel:        models.BaseModel{CreatedAt: createdAt},
		AssetID:          assetID,
		VerificationCode: code,
		OriginalSHA256:   bundle.OriginalSHA256,
		RenderedSHA256:   renderedSHA,
		ExactFrameHashes: pq.StringArray(bundle.ExactFrameHashes),
		MetadataHash:     bundle.MetadataHash,
		MasterHash:       tree.Root,
		MerkleTree:       models.JSONBFrom(tree),
		SchemaVersion:    tree.SchemaVersion,
		Status:           models.VerificationStatusVerified,
	}

	if err := s.store.CreateAssetWithRecord(asset, record); err != nil {
		// Without a record the stored objects are unreachable; clean
		// them up best-effort.
		s.discardObjects(originalRef, renderedRef)
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":    stageRecordPersisted,
		"asset_id": assetID,
	}).Info("Verification record persisted")

	task := jobs.NewTask(assetID, tier)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue verification job: %w", err)
	}
	if err := s.statuses.Set(ctx, assetID, jobs.Status{
		JobID:     task.JobID,
		State:     models.JobStateQueued,
		Message:   "queued for slow-layer verification",
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		log.WithError(err).Error("Failed to store initial job status")
	}
	log.WithFields(logrus.Fields{
		"stage":  stageBackgroundQueued,
		"job_id": task.JobID,
	}).Info("Background verification queued")

	// Best-effort blockchain timestamping; failures are logged, never
	// surfaced.
	go s.blockchain.AnchorRecord(assetID, tree.Root)

	return &UploadResponse{
		AssetID:          assetID,
		VerificationCode: code,
		Status:           models.UploadStatusSuccess,
		JobID:            task.JobID,
		PendingLayers:    PendingLayers(tier, record),
		HashSummary: map[string]string{
			"original_sha256": bundle.OriginalSHA256,
			"rendered_sha256": renderedSHA,
			"exact_frames":    hashing.CombineHashes(bundle.ExactFrameHashes),
			"metadata_hash":   bundle.MetadataHash,
			"master_hash":     tree.Root,
		},
	}, nil
}

// discardObjects removes stored objects that never got a record. Failures
// are logged only; the upload error already propagates.
func (s *UploadService) discardObjects(refs ...string) {
	for _, ref := range refs {
		if err := s.storage.Delete(ref); err != nil {
			s.log.WithError(err).WithField("ref", ref).
				Warn("Failed to remove orphaned storage object")
		}
	}
}

// PendingLayers lists the tier-applicable layers not yet present on the
// record.
func PendingLayers(tier models.Tier, record *models.VerificationRecord) []string {
	pending := []string{}
	if tier.AtLeast(models.TierPro) && len(record.PerceptualFrameHashes) == 0 {
		pending = append(pending, "perceptual")
	}
	if tier == models.TierEnterprise && record.AudioFingerprint == "" {
		pending = append(pending, "audio")
	}
	return pending
}
