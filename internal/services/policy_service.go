// internal/services/policy_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/models"
	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

// Strike thresholds for the per-uploader state machine:
// ACTIVE -> WARNED -> TEMPORARY_BAN -> PERMANENT_BAN.
const (
	warnThreshold     = 3
	tempBanThreshold  = 5
	permBanThreshold  = 10
	strikeReasonDupes = "unauthorized_reupload"
)

type PolicyState string

const (
	PolicyStateActive       PolicyState = "active"
	PolicyStateWarned       PolicyState = "warned"
	PolicyStateTemporaryBan PolicyState = "temporary_ban"
	PolicyStatePermanentBan PolicyState = "permanent_ban"
)

// PolicyStatus is the single gate consulted before any hashing begins.
type PolicyStatus struct {
	CanUpload    bool             `json:"can_upload"`
	State        PolicyState      `json:"status"`
	Strikes      int              `json:"strikes"`
	BanStatus    models.BanStatus `json:"ban_status"`
	BanExpiresAt *time.Time       `json:"ban_expires_at,omitempty"`
	Message      string           `json:"message"`
}

// PolicyError is the structured domain error returned for ban/strike
// rejections, distinguished from generic authorization failures.
type PolicyError struct {
	State        PolicyState
	Strikes      int
	BanExpiresAt *time.Time
	Message      string
}

func (e *PolicyError) Error() string {
	return e.Message
}

// PolicyService tracks violation strikes per uploader and exposes ban state
// transitions. The ViolationRecord is created lazily on the first violation
// and never deleted; strikes are never reset.
type PolicyService struct {
	db         *gorm.DB
	tempBanFor time.Duration
	now        func() time.Time
}

func NewPolicyService(db *gorm.DB, tempBanFor time.Duration) *PolicyService {
	if tempBanFor <= 0 {
		tempBanFor = 24 * time.Hour
	}
	return &PolicyService{
		db:         db,
		tempBanFor: tempBanFor,
		now:        time.Now,
	}
}

// CheckStatus reports whether the uploader may upload right now.
func (s *PolicyService) CheckStatus(uploaderID uuid.UUID) (*PolicyStatus, error) {
	var record models.ViolationRecord
	err := s.db.Where("uploader_id = ?", uploaderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return statusFor(nil, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load violation record: %w", err)
	}
	return statusFor(&record, s.now()), nil
}

// RecordDuplicateAttempt appends one strike for an unauthorized re-upload,
// unless the exact same content was already recorded for this uploader:
// repeated re-attempts on the same (video, original asset) pair count once.
func (s *PolicyService) RecordDuplicateAttempt(uploaderID uuid.UUID, videoHash string, originalOwner, originalAssetID uuid.UUID) (*models.ViolationRecord, error) {
	fingerprint := AttemptFingerprint(videoHash, originalAssetID)
	now := s.now()

	var record models.ViolationRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.ViolationRecord{UploaderID: uploaderID}).
			FirstOrCreate(&record).Error; err != nil {
			return fmt.Errorf("failed to load violation record: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Strike{}).
			Where("violation_id = ? AND fingerprint = ?", record.ID, fingerprint).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check strike fingerprint: %w", err)
		}
		if existing > 0 {
			return nil
		}

		strike := &models.Strike{
			ViolationID: record.ID,
			Reason:      strikeReasonDupes,
			Detail: fmt.Sprintf("re-upload of asset %s owned by %s",
				originalAssetID, originalOwner),
			Fingerprint: fingerprint,
		}
		if err := tx.Create(strike).Error; err != nil {
			return fmt.Errorf("failed to record strike: %w", err)
		}

		record.StrikeCount++
		applyThresholds(&record, now, s.tempBanFor)

		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to update violation record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AttemptFingerprint identifies one (content, original asset) pair for
// strike deduplication.
func AttemptFingerprint(videoHash string, originalAssetID uuid.UUID) string {
	return utils.HashString(videoHash + "|" + originalAssetID.String())
}

// applyThresholds re-evaluates the ban state after a new strike. Permanent
// bans never downgrade; a temporary ban window restarts on each new strike
// inside the temporary band.
func applyThresholds(record *models.ViolationRecord, now time.Time, tempBanFor time.Duration) {
	switch {
	case record.StrikeCount >= permBanThreshold:
		record.BanStatus = models.BanStatusPermanent
		record.BanExpiresAt = nil
	case record.StrikeCount >= tempBanThreshold:
		expires := now.Add(tempBanFor)
		record.BanStatus = models.BanStatusTemporary
		record.BanExpiresAt = &expires
	default:
		// Records created lazily by FirstOrCreate arrive with the zero
		// value; below the ban thresholds the status is always none.
		record.BanStatus = models.BanStatusNone
	}
}

// statusFor derives the live policy state. A temporary ban auto-expires
// back to ACTIVE/WARNED without touching the strike count.
func statusFor(record *models.ViolationRecord, now time.Time) *PolicyStatus {
	if record == nil {
		return &PolicyStatus{
			CanUpload: true,
			State:     PolicyStateActive,
			BanStatus: models.BanStatusNone,
			Message:   "account in good standing",
		}
	}

	status := &PolicyStatus{
		Strikes:      record.StrikeCount,
		BanStatus:    record.BanStatus,
		BanExpiresAt: record.BanExpiresAt,
	}

	switch {
	case record.BanStatus == models.BanStatusPermanent:
		status.State = PolicyStatePermanentBan
		status.Message = "account permanently banned for repeated unauthorized uploads"
	case record.BanStatus == models.BanStatusTemporary &&
		record.BanExpiresAt != nil && record.BanExpiresAt.After(now):
		status.State = PolicyStateTemporaryBan
		status.Message = fmt.Sprintf("account temporarily banned until %s",
			record.BanExpiresAt.UTC().Format(time.RFC3339))
	case record.StrikeCount >= warnThreshold:
		status.CanUpload = true
		status.State = PolicyStateWarned
		status.Message = fmt.Sprintf("warning: %d strikes recorded", record.StrikeCount)
	default:
		status.CanUpload = true
		status.State = PolicyStateActive
		status.Message = "account in good standing"
	}
	return status
}
