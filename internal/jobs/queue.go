// internal/jobs/queue.go
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mediaseal/mediaseal-backend/internal/models"
)

type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

// PriorityForTier maps the uploader's tier to queue priority.
func PriorityForTier(tier models.Tier) Priority {
	switch tier {
	case models.TierEnterprise:
		return PriorityHigh
	case models.TierPro:
		return PriorityDefault
	default:
		return PriorityLow
	}
}

// jobNamespace makes job identity a pure function of asset identity, so an
// asset has at most one logically active job and re-enqueueing is safe.
var jobNamespace = uuid.MustParse("b6c1a7c2-4c5d-4e8f-9a0b-3d2e1f0c9b8a")

func JobIDFor(assetID uuid.UUID) string {
	return uuid.NewSHA1(jobNamespace, assetID[:]).String()
}

// Task is one unit of slow-layer work.
type Task struct {
	JobID      string      `json:"job_id"`
	AssetID    uuid.UUID   `json:"asset_id"`
	Tier       models.Tier `json:"tier"`
	Attempt    int         `json:"attempt"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

func NewTask(assetID uuid.UUID, tier models.Tier) Task {
	return Task{
		JobID:      JobIDFor(assetID),
		AssetID:    assetID,
		Tier:       tier,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Status is the externally visible job progress, kept in the queue's own
// metadata store so every service instance observes the same view.
type Status struct {
	JobID     string          `json:"job_id"`
	State     models.JobState `json:"state"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message"`
	Attempt   int             `json:"attempt"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks up to timeout for the next task, highest priority
	// first. Returns (nil, nil) when the timeout elapses empty.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
}

type StatusStore interface {
	Set(ctx context.Context, assetID uuid.UUID, status Status) error
	// Get returns (nil, nil) when no job metadata exists for the asset.
	Get(ctx context.Context, assetID uuid.UUID) (*Status, error)
}

const (
	queueKeyPrefix  = "mediaseal:jobs:"
	statusKeyPrefix = "mediaseal:job:"
	statusTTL       = 7 * 24 * time.Hour
)

// RedisQueue is the durable queue: one list per priority, consumed with a
// blocking pop across the three lists in priority order.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) key(p Priority) string {
	return queueKeyPrefix + string(p)
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	if err := q.client.LPush(ctx, q.key(PriorityForTier(task.Tier)), payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout,
		q.key(PriorityHigh), q.key(PriorityDefault), q.key(PriorityLow)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}

	// BRPOP returns [key, value].
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// RedisStatusStore keeps job metadata in a redis hash per asset.
type RedisStatusStore struct {
	client *redis.Client
}

func NewRedisStatusStore(client *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{client: client}
}

func statusKey(assetID uuid.UUID) string {
	return statusKeyPrefix + assetID.String()
}

func (s *RedisStatusStore) Set(ctx context.Context, assetID uuid.UUID, status Status) error {
	key := statusKey(assetID)
	fields := map[string]interface{}{
		"job_id":     status.JobID,
		"state":      string(status.State),
		"progress":   status.Progress,
		"message":    status.Message,
		"attempt":    status.Attempt,
		"updated_at": status.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}
	return s.client.Expire(ctx, key, statusTTL).Err()
}

func (s *RedisStatusStore) Get(ctx context.Context, assetID uuid.UUID) (*Status, error) {
	values, err := s.client.HGetAll(ctx, statusKey(assetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	progress, _ := strconv.Atoi(values["progress"])
	attempt, _ := strconv.Atoi(values["attempt"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, values["updated_at"])

	return &Status{
		JobID:     values["job_id"],
		State:     models.JobState(values["state"]),
		Progress:  progress,
		Message:   values["message"],
		Attempt:   attempt,
		UpdatedAt: updatedAt,
	}, nil
}

// MemoryQueue is the in-process fallback used when redis is not configured
// (local development) and by tests. Same priority semantics as RedisQueue.
type MemoryQueue struct {
	mu     sync.Mutex
	tasks  map[Priority][]Task
	notify chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		tasks:  make(map[Priority][]Task),
		notify: make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	p := PriorityForTier(task.Tier)
	q.tasks[p] = append(q.tasks[p], task)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) pop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range []Priority{PriorityHigh, PriorityDefault, PriorityLow} {
		if len(q.tasks[p]) > 0 {
			task := q.tasks[p][0]
			q.tasks[p] = q.tasks[p][1:]
			return &task
		}
	}
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if task := q.pop(); task != nil {
			return task, nil
		}
		select {
		case <-q.notify:
		case <-deadline.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// MemoryStatusStore is the in-process counterpart of RedisStatusStore.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[uuid.UUID]Status
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[uuid.UUID]Status)}
}

func (s *MemoryStatusStore) Set(ctx context.Context, assetID uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[assetID] = status
	return nil
}

func (s *MemoryStatusStore) Get(ctx context.Context, assetID uuid.UUID) (*Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.statuses[assetID]; ok {
		return &status, nil
	}
	return nil, nil
}
