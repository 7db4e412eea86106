// internal/jobs/worker.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/media"
	"github.com/mediaseal/mediaseal-backend/internal/merkle"
	"github.com/mediaseal/mediaseal-backend/internal/models"
	"github.com/mediaseal/mediaseal-backend/internal/utils"
)

// ObjectSource fetches stored original bytes for recomputation.
type ObjectSource interface {
	Fetch(ref string) ([]byte, error)
}

// RecordStore is the worker's persistence boundary: load the record with
// its asset, and persist the finalized slow-layer fields.
type RecordStore interface {
	ByAsset(ctx context.Context, assetID uuid.UUID) (*models.VerificationRecord, error)
	Finalize(ctx context.Context, assetID uuid.UUID, updates map[string]interface{}) error
}

type gormRecordStore struct {
	db *gorm.DB
}

func (s *gormRecordStore) ByAsset(ctx context.Context, assetID uuid.UUID) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	if err := s.db.WithContext(ctx).Preload("Asset").
		Where("asset_id = ?", assetID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *gormRecordStore) Finalize(ctx context.Context, assetID uuid.UUID, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Where("asset_id = ?", assetID).
		Updates(updates).Error
}

// Notifier is invoked fire-and-forget after full verification; its failure
// must never fail the job.
type Notifier interface {
	FullyVerified(assetID, ownerID uuid.UUID, masterHash string) error
}

// Progress milestones reported by the worker.
const (
	milestoneMetadata   = 10
	milestoneSlowStart  = 30
	milestoneSlowDone   = 60
	milestonePersisting = 80
	milestoneComplete   = 100
)

type WorkerOptions struct {
	Timeout     time.Duration // hard per-job timeout, default 10m
	MaxAttempts int           // total attempts before terminal failure, default 3
	BackoffBase time.Duration // first retry delay, doubled per attempt, default 30s
	PollTimeout time.Duration // queue blocking-pop timeout, default 5s
}

func (o *WorkerOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 30 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 5 * time.Second
	}
}

// Worker consumes the queue and computes the slow hash layers: perceptual
// frame hashes (tier >= pro) and the audio fingerprint (enterprise), then
// rebuilds the full Merkle tree and persists the final record. The
// computation is deterministic, so reprocessing the same asset is safe.
type Worker struct {
	records  RecordStore
	queue    Queue
	statuses StatusStore
	engine   *hashing.Engine
	decoder  media.Decoder
	source   ObjectSource
	notifier Notifier
	opts     WorkerOptions
	log      *logrus.Entry
}

func NewWorker(db *gorm.DB, queue Queue, statuses StatusStore, engine *hashing.Engine,
	decoder media.Decoder, source ObjectSource, notifier Notifier, opts WorkerOptions) *Worker {
	opts.defaults()
	return &Worker{
		records:  &gormRecordStore{db: db},
		queue:    queue,
		statuses: statuses,
		engine:   engine,
		decoder:  decoder,
		source:   source,
		notifier: notifier,
		opts:     opts,
		log:      logrus.WithField("component", "verification_worker"),
	}
}

// Start launches n worker goroutines and blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx, w.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.WithError(err).Error("Failed to dequeue verification task")
			continue
		}
		if task == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		w.handle(ctx, *task)
	}
}

func (w *Worker) handle(ctx context.Context, task Task) {
	log := w.log.WithFields(logrus.Fields{
		"job_id":   task.JobID,
		"asset_id": task.AssetID,
		"attempt":  task.Attempt,
	})

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.process(jobCtx, task)
	}()

	var err error
	select {
	case err = <-done:
	case <-jobCtx.Done():
		err = fmt.Errorf("job timed out after %s", w.opts.Timeout)
	}

	if err == nil {
		log.Info("Slow-layer verification completed")
		return
	}

	log.WithError(err).Error("Slow-layer verification failed")
	w.fail(task, err)
}

// fail schedules a bounded exponential-backoff retry, or records the
// terminal failed state once attempts are exhausted. The asset remains at
// verified (partial) either way.
func (w *Worker) fail(task Task, cause error) {
	attempt := task.Attempt + 1
	if attempt < w.opts.MaxAttempts {
		delay := w.opts.BackoffBase << uint(task.Attempt)
		w.setStatus(task, models.JobStateQueued, 0,
			fmt.Sprintf("retrying in %s: %v", delay, cause))

		retry := task
		retry.Attempt = attempt
		time.AfterFunc(delay, func() {
			if err := w.queue.Enqueue(context.Background(), retry); err != nil {
				w.log.WithError(err).WithField("job_id", task.JobID).
					Error("Failed to re-enqueue verification task")
			}
		})
		return
	}

	w.setStatus(task, models.JobStateFailed, 0, cause.Error())
}

func (w *Worker) process(ctx context.Context, task Task) error {
	w.setStatus(task, models.JobStateRunning, milestoneMetadata, "metadata confirmed")

	record, err := w.records.ByAsset(ctx, task.AssetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("verification record not found for asset %s", task.AssetID)
		}
		return fmt.Errorf("database error: %w", err)
	}

	data, err := w.source.Fetch(record.Asset.StorageRef)
	if err != nil {
		return fmt.Errorf("failed to fetch original media: %w", err)
	}
	if !utils.ValidateFileHash(data, record.OriginalSHA256) {
		return fmt.Errorf("stored media does not match recorded hash for asset %s", task.AssetID)
	}

	video, err := w.decoder.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode media: %w", err)
	}

	tier := record.Asset.Tier
	w.setStatus(task, models.JobStateRunning, milestoneSlowStart, "computing slow hash layers")

	var perceptual []string
	if tier.AtLeast(models.TierPro) {
		perceptual = w.engine.PerceptualFrameHashes(video)
	}

	// The sentinel is stored for streams without an audio track and for
	// tiers below enterprise; it never becomes a Merkle leaf.
	audio := hashing.NoAudioFingerprint
	if tier == models.TierEnterprise {
		audio = w.engine.AudioFingerprint(video)
	}
	leafAudio := audio
	if leafAudio == hashing.NoAudioFingerprint {
		leafAudio = ""
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	w.setStatus(task, models.JobStateRunning, milestoneSlowDone, "slow hash layers complete")

	tree, err := merkle.BuildFromSet(merkle.LeafSet{
		VerificationCode: record.VerificationCode,
		OriginalSHA256:   record.OriginalSHA256,
		RenderedSHA256:   record.RenderedSHA256,
		ExactFrames:      hashing.CombineHashes(record.ExactFrameHashes),
		PerceptualFrames: hashing.CombineHashes(perceptual),
		AudioFingerprint: leafAudio,
		MetadataHash:     record.MetadataHash,
		Timestamp:        record.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild merkle tree: %w", err)
	}

	w.setStatus(task, models.JobStateRunning, milestonePersisting, "persisting final record")

	updates := map[string]interface{}{
		"perceptual_frame_hashes": pq.StringArray(perceptual),
		"audio_fingerprint":       audio,
		"merkle_tree":             models.JSONBFrom(tree),
		"master_hash":             tree.Root,
		"schema_version":          tree.SchemaVersion,
		"status":                  models.VerificationStatusFullyVerified,
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.records.Finalize(ctx, task.AssetID, updates); err != nil {
		return fmt.Errorf("failed to persist final record: %w", err)
	}

	// A timed-out job may still be running here while handle has already
	// scheduled a retry; never let its late completion mask that.
	if err := ctx.Err(); err != nil {
		return err
	}
	w.setStatus(task, models.JobStateSucceeded, milestoneComplete, "verification complete")

	if w.notifier != nil {
		go func() {
			if err := w.notifier.FullyVerified(task.AssetID, record.Asset.OwnerID, tree.Root); err != nil {
				w.log.WithError(err).WithField("asset_id", task.AssetID).
					Warn("Verification notification failed")
			}
		}()
	}
	return nil
}

func (w *Worker) setStatus(task Task, state models.JobState, progress int, message string) {
	status := Status{
		JobID:     task.JobID,
		State:     state,
		Progress:  progress,
		Message:   message,
		Attempt:   task.Attempt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := w.statuses.Set(context.Background(), task.AssetID, status); err != nil {
		w.log.WithError(err).WithField("job_id", task.JobID).
			Error("Failed to store job status")
	}
}
