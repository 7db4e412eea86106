// internal/services/watermark_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaseal/mediaseal-backend/internal/models"
)

func TestTagRendererAppendsCode(t *testing.T) {
	r := NewTagRenderer()
	video := []byte("raw video bytes")

	applied, rendered, err := r.Apply(video, "CODE123", models.TierPro, "bottom-right")
	require.NoError(t, err)
	assert.True(t, applied)

	// Original bytes survive as a prefix; the tag carries the code.
	assert.Equal(t, video, rendered[:len(video)])
	assert.Contains(t, string(rendered), "code=CODE123")
	assert.Contains(t, string(rendered), "tier=pro")
}

func TestTagRendererRejectsEmptyInput(t *testing.T) {
	r := NewTagRenderer()

	applied, rendered, err := r.Apply(nil, "CODE123", models.TierFree, "bottom-right")
	assert.Error(t, err)
	assert.False(t, applied)
	assert.Nil(t, rendered)
}

func TestQuotaFor(t *testing.T) {
	assert.Equal(t, int64(10), QuotaFor(models.TierFree))
	assert.Equal(t, int64(100), QuotaFor(models.TierPro))
	assert.Equal(t, int64(-1), QuotaFor(models.TierEnterprise))

	// Unknown tiers fall back to the free limit.
	assert.Equal(t, int64(10), QuotaFor(models.Tier("unknown")))
}
