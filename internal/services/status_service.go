// internal/services/status_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/jobs"
	"github.com/mediaseal/mediaseal-backend/internal/models"
)

var ErrAssetNotFound = errors.New("media asset not found")

// ProgressView is the polling response for an asset's verification
// pipeline, merged from the durable record and the live job status.
type ProgressView struct {
	AssetID         uuid.UUID                 `json:"asset_id"`
	Stage           string                    `json:"stage"`
	Status          models.VerificationStatus `json:"status"`
	Progress        int                       `json:"progress"`
	Message         string                    `json:"message,omitempty"`
	CompletedLayers []string                  `json:"completed_layers"`
	PendingLayers   []string                  `json:"pending_layers"`
	ETASeconds      *int                      `json:"eta"`
	MasterHash      string                    `json:"master_hash,omitempty"`
}

// nominalRunSeconds is the coarse full-run estimate the ETA is derived
// from; the slow layers on a typical asset finish well inside it.
const nominalRunSeconds = 120

// etaFor scales the remaining progress against the nominal run time. Nil
// once the pipeline is terminal (complete or failed).
func etaFor(progress int) *int {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	eta := (100 - progress) * nominalRunSeconds / 100
	return &eta
}

type StatusService struct {
	db       *gorm.DB
	statuses jobs.StatusStore
}

func NewStatusService(db *gorm.DB, statuses jobs.StatusStore) *StatusService {
	return &StatusService{db: db, statuses: statuses}
}

func (s *StatusService) Progress(ctx context.Context, assetID uuid.UUID) (*ProgressView, error) {
	var record models.VerificationRecord
	if err := s.db.Preload("Asset").Where("asset_id = ?", assetID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to load verification record: %w", err)
	}

	jobStatus, err := s.statuses.Get(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job status: %w", err)
	}

	return mergeProgress(&record, jobStatus), nil
}

// mergeProgress reconciles the persistent record with the transient job
// status. The record wins on completion: once the record is fully verified
// the view reports complete regardless of any stale queue entry.
func mergeProgress(record *models.VerificationRecord, job *jobs.Status) *ProgressView {
	view := &ProgressView{
		AssetID:         record.AssetID,
		Status:          record.Status,
		CompletedLayers: completedLayers(record),
		PendingLayers:   PendingLayers(record.Asset.Tier, record),
	}

	if record.Status == models.VerificationStatusFullyVerified {
		view.Stage = "complete"
		view.Progress = 100
		view.MasterHash = record.MasterHash
		return view
	}

	switch {
	case job == nil:
		// No live job metadata. Fast layers are verified; slow layers are
		// either inapplicable for the tier or the status entry expired.
		view.Stage = "verified"
		view.Progress = 100
		if len(view.PendingLayers) > 0 {
			view.Stage = "processing"
			view.Progress = 0
			view.ETASeconds = etaFor(0)
		}
	case job.State == models.JobStateFailed:
		view.Stage = "failed"
		view.Progress = job.Progress
		view.Message = job.Message
	case job.State == models.JobStateQueued:
		view.Stage = "queued"
		view.Progress = 0
		view.Message = job.Message
		view.ETASeconds = etaFor(0)
	default:
		view.Stage = "processing"
		view.Progress = job.Progress
		view.Message = job.Message
		view.ETASeconds = etaFor(job.Progress)
	}

	view.MasterHash = record.MasterHash
	return view
}

func completedLayers(record *models.VerificationRecord) []string {
	layers := []string{}
	if record.OriginalSHA256 != "" {
		layers = append(layers, "original_sha256")
	}
	if record.RenderedSHA256 != "" {
		layers = append(layers, "rendered_sha256")
	}
	if len(record.ExactFrameHashes) > 0 {
		layers = append(layers, "exact")
	}
	if len(record.PerceptualFrameHashes) > 0 {
		layers = append(layers, "perceptual")
	}
	if record.AudioFingerprint != "" && record.AudioFingerprint != hashing.NoAudioFingerprint {
		layers = append(layers, "audio")
	}
	if record.MetadataHash != "" {
		layers = append(layers, "metadata")
	}
	return layers
}
