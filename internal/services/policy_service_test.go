// internal/services/policy_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mediaseal/mediaseal-backend/internal/models"
)

func TestAttemptFingerprintDeduplication(t *testing.T) {
	assetA := uuid.New()
	assetB := uuid.New()

	// Same content against the same original collapses to one fingerprint.
	assert.Equal(t,
		AttemptFingerprint("hash1", assetA),
		AttemptFingerprint("hash1", assetA))

	// Distinct originals or distinct content produce distinct fingerprints.
	assert.NotEqual(t,
		AttemptFingerprint("hash1", assetA),
		AttemptFingerprint("hash1", assetB))
	assert.NotEqual(t,
		AttemptFingerprint("hash1", assetA),
		AttemptFingerprint("hash2", assetA))
}

func TestApplyThresholdsTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	banFor := 24 * time.Hour

	// A lazily created record starts with the zero-value ban status; the
	// first strikes must normalize it to none, not leave it empty.
	record := &models.ViolationRecord{StrikeCount: 1}
	applyThresholds(record, now, banFor)
	assert.Equal(t, models.BanStatusNone, record.BanStatus)

	record.StrikeCount = 4
	applyThresholds(record, now, banFor)
	assert.Equal(t, models.BanStatusNone, record.BanStatus)

	record.StrikeCount = 5
	applyThresholds(record, now, banFor)
	assert.Equal(t, models.BanStatusTemporary, record.BanStatus)
	assert.Equal(t, now.Add(24*time.Hour), *record.BanExpiresAt)

	record.StrikeCount = 10
	applyThresholds(record, now, banFor)
	assert.Equal(t, models.BanStatusPermanent, record.BanStatus)
	assert.Nil(t, record.BanExpiresAt)
}

func TestStatusForNoRecord(t *testing.T) {
	status := statusFor(nil, time.Now())
	assert.True(t, status.CanUpload)
	assert.Equal(t, PolicyStateActive, status.State)
	assert.Zero(t, status.Strikes)
}

func TestStatusForWarnedAtThreeStrikes(t *testing.T) {
	record := &models.ViolationRecord{
		StrikeCount: 3,
		BanStatus:   models.BanStatusNone,
	}
	status := statusFor(record, time.Now())
	assert.True(t, status.CanUpload)
	assert.Equal(t, PolicyStateWarned, status.State)
	assert.Equal(t, 3, status.Strikes)
}

func TestStatusForActiveTemporaryBan(t *testing.T) {
	now := time.Now()
	expires := now.Add(12 * time.Hour)
	record := &models.ViolationRecord{
		StrikeCount:  5,
		BanStatus:    models.BanStatusTemporary,
		BanExpiresAt: &expires,
	}

	status := statusFor(record, now)
	assert.False(t, status.CanUpload)
	assert.Equal(t, PolicyStateTemporaryBan, status.State)
	assert.Equal(t, &expires, status.BanExpiresAt)
}

func TestStatusForExpiredTemporaryBan(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Minute)
	record := &models.ViolationRecord{
		StrikeCount:  5,
		BanStatus:    models.BanStatusTemporary,
		BanExpiresAt: &expired,
	}

	// Expiry restores uploads without touching the strike count.
	status := statusFor(record, now)
	assert.True(t, status.CanUpload)
	assert.Equal(t, PolicyStateWarned, status.State)
	assert.Equal(t, 5, status.Strikes)
}

func TestStatusForPermanentBan(t *testing.T) {
	record := &models.ViolationRecord{
		StrikeCount: 10,
		BanStatus:   models.BanStatusPermanent,
	}

	status := statusFor(record, time.Now())
	assert.False(t, status.CanUpload)
	assert.Equal(t, PolicyStatePermanentBan, status.State)
}
