// internal/services/duplicate_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/models"
)

func corpusRecord(owner uuid.UUID, exact []string, perceptual []string, audio string) models.VerificationRecord {
	return models.VerificationRecord{
		AssetID:               uuid.New(),
		ExactFrameHashes:      pq.StringArray(exact),
		PerceptualFrameHashes: pq.StringArray(perceptual),
		AudioFingerprint:      audio,
		Status:                models.VerificationStatusFullyVerified,
		Asset:                 models.MediaAsset{OwnerID: owner},
	}
}

func exactHashes(seed string) []string {
	hashes := make([]string, hashing.ExactFrameSamples)
	for i := range hashes {
		hashes[i] = hashing.SHA256Hex([]byte(seed))
	}
	return hashes
}

func TestEvaluateExactDuplicateShortCircuits(t *testing.T) {
	owner := uuid.New()
	candidate := corpusRecord(owner, exactHashes("v1"), nil, "")

	bundle := &hashing.Bundle{ExactFrameHashes: exactHashes("v1")}
	match := evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierFree, nil)

	require.NotNil(t, match)
	assert.Equal(t, candidate.AssetID, match.CandidateAssetID)
	assert.Equal(t, owner, match.OwnerID)
	assert.Equal(t, models.MatchLayerExact, match.Layer)
	assert.GreaterOrEqual(t, match.Score, 0.95)
}

func TestEvaluateNoMatch(t *testing.T) {
	candidate := corpusRecord(uuid.New(), exactHashes("v1"), nil, "")
	bundle := &hashing.Bundle{ExactFrameHashes: exactHashes("v2")}

	match := evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierFree, nil)
	assert.Nil(t, match)
}

func TestEvaluatePerceptualRequiresProTier(t *testing.T) {
	h := "p:0000000000000000:0000000000000000:0000000000000000"
	perceptual := []string{h, h, h}

	candidate := corpusRecord(uuid.New(), exactHashes("v1"), perceptual, "")
	bundle := &hashing.Bundle{
		ExactFrameHashes:      exactHashes("v2"),
		PerceptualFrameHashes: perceptual,
	}

	// Identical perceptual lists but free tier: the layer is never scored.
	assert.Nil(t, evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierFree, nil))

	match := evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierPro, nil)
	require.NotNil(t, match)
	assert.Equal(t, models.MatchLayerPerceptual, match.Layer)
	assert.GreaterOrEqual(t, match.Score, 0.95)
}

func TestEvaluateAdvisoryBandDoesNotBlock(t *testing.T) {
	// 8 of 64 differing bits per variant scores 0.875: inside [0.85, 0.95).
	base := "p:0000000000000000:0000000000000000:0000000000000000"
	near := "p:00000000000000ff:00000000000000ff:00000000000000ff"

	candidate := corpusRecord(uuid.New(), exactHashes("v1"), []string{base, base}, "")
	bundle := &hashing.Bundle{
		ExactFrameHashes:      exactHashes("v2"),
		PerceptualFrameHashes: []string{near, near},
	}

	score := hashing.CompositeSimilarity(bundle.PerceptualFrameHashes, []string{base, base})
	require.GreaterOrEqual(t, score, 0.85)
	require.Less(t, score, 0.95)

	match := evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierPro, nil)
	assert.Nil(t, match)
}

func TestEvaluateAudioRequiresEnterpriseTier(t *testing.T) {
	fp := hashing.SHA256Hex([]byte("audio waveform"))

	candidate := corpusRecord(uuid.New(), exactHashes("v1"), nil, fp)
	bundle := &hashing.Bundle{
		ExactFrameHashes: exactHashes("v2"),
		AudioFingerprint: fp,
	}

	assert.Nil(t, evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierPro, nil))

	match := evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierEnterprise, nil)
	require.NotNil(t, match)
	assert.Equal(t, models.MatchLayerAudio, match.Layer)
	assert.Equal(t, 1.0, match.Score)
}

func TestEvaluateAudioSentinelNeverMatches(t *testing.T) {
	candidate := corpusRecord(uuid.New(), exactHashes("v1"), nil, hashing.NoAudioFingerprint)
	bundle := &hashing.Bundle{
		ExactFrameHashes: exactHashes("v2"),
		AudioFingerprint: hashing.NoAudioFingerprint,
	}

	assert.Nil(t, evaluateAgainst(bundle, []models.VerificationRecord{candidate}, models.TierEnterprise, nil))
}
