// internal/jobs/queue_test.go
package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaseal/mediaseal-backend/internal/models"
)

func TestPriorityForTier(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityForTier(models.TierEnterprise))
	assert.Equal(t, PriorityDefault, PriorityForTier(models.TierPro))
	assert.Equal(t, PriorityLow, PriorityForTier(models.TierFree))
}

func TestJobIDForDeterministic(t *testing.T) {
	assetID := uuid.New()

	// Each asset gets at most one logically active job.
	assert.Equal(t, JobIDFor(assetID), JobIDFor(assetID))
	assert.NotEqual(t, JobIDFor(assetID), JobIDFor(uuid.New()))
}

func TestNewTask(t *testing.T) {
	assetID := uuid.New()
	task := NewTask(assetID, models.TierPro)

	assert.Equal(t, JobIDFor(assetID), task.JobID)
	assert.Equal(t, assetID, task.AssetID)
	assert.Equal(t, models.TierPro, task.Tier)
	assert.Zero(t, task.Attempt)
}

func TestMemoryQueueOrdersByPriority(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	low := NewTask(uuid.New(), models.TierFree)
	high := NewTask(uuid.New(), models.TierEnterprise)
	mid := NewTask(uuid.New(), models.TierPro)

	require.NoError(t, q.Enqueue(ctx, low))
	require.NoError(t, q.Enqueue(ctx, high))
	require.NoError(t, q.Enqueue(ctx, mid))

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, high.JobID, first.JobID)

	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, mid.JobID, second.JobID)

	third, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, low.JobID, third.JobID)
}

func TestMemoryQueueDequeueTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue()

	task, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestMemoryStatusStoreRoundTrip(t *testing.T) {
	s := NewMemoryStatusStore()
	ctx := context.Background()
	assetID := uuid.New()

	missing, err := s.Get(ctx, assetID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	status := Status{
		JobID:     JobIDFor(assetID),
		State:     models.JobStateRunning,
		Progress:  60,
		Message:   "perceptual frame hashes complete",
		Attempt:   1,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Set(ctx, assetID, status))

	got, err := s.Get(ctx, assetID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, status.State, got.State)
	assert.Equal(t, status.Progress, got.Progress)
}
