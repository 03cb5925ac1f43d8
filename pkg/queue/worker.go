package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
	"github.com/revops-ai/relay/pkg/store"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes work items.
type Worker struct {
	id       string
	podID    string
	store    *store.Store
	config   *config.QueueConfig
	executor Executor
	pool     ItemRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu             sync.RWMutex
	status         WorkerStatus
	currentItemID  string
	itemsProcessed int
	lastActivity   time.Time
}

// ItemRegistry is the subset of WorkerPool used by Worker for item registration.
type ItemRegistry interface {
	RegisterItem(itemID string, cancel context.CancelFunc)
	UnregisterItem(itemID string)
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, st *store.Store, cfg *config.QueueConfig, executor Executor, pool ItemRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        st,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentItemID:  w.currentItemID,
		ItemsProcessed: w.itemsProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoItemsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing work item", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a work item, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// 1. Check global capacity (best-effort; racy with concurrent workers but
	//    bounded by WorkerCount and mitigated by poll jitter).
	activeCount, err := w.store.CountInProgressWorkItems(ctx)
	if err != nil {
		return fmt.Errorf("checking active work items: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentSessions {
		return ErrAtCapacity
	}

	// 2. Claim next item
	item, err := w.store.ClaimNextWorkItem(ctx, w.podID)
	if err != nil {
		if errors.Is(err, store.ErrNoWorkAvailable) {
			return ErrNoItemsAvailable
		}
		return err
	}

	log := slog.With("item_id", item.ID, "kind", item.Kind, "worker_id", w.id)
	log.Info("Work item claimed")

	w.setStatus(WorkerStatusWorking, item.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	// 3. Create item context with timeout
	itemCtx, cancelItem := context.WithTimeout(ctx, w.config.SessionTimeout)
	defer cancelItem()

	// 4. Register cancel function for externally-triggered cancellation
	w.pool.RegisterItem(item.ID, cancelItem)
	defer w.pool.UnregisterItem(item.ID)

	// 5. Start heartbeat
	heartbeatCtx, cancelHeartbeat := context.WithCancel(itemCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, item.ID)

	// 6. Execute
	result := w.executor.Execute(itemCtx, item)

	// 6a. Nil-guard: synthesize a safe result if executor returned nil
	if result == nil {
		switch {
		case errors.Is(itemCtx.Err(), context.DeadlineExceeded):
			result = &ExecutionResult{
				Status: models.WorkItemFailed,
				Error:  fmt.Errorf("work item timed out after %v", w.config.SessionTimeout),
			}
		case errors.Is(itemCtx.Err(), context.Canceled):
			result = &ExecutionResult{
				Status: models.WorkItemFailed,
				Error:  context.Canceled,
			}
		default:
			result = &ExecutionResult{
				Status: models.WorkItemFailed,
				Error:  fmt.Errorf("executor returned nil result"),
			}
		}
	}

	// 7. Handle timeout and cancellation that raced the executor's own result
	if result.Status == "" {
		switch {
		case errors.Is(itemCtx.Err(), context.DeadlineExceeded):
			result.Status = models.WorkItemFailed
			result.Error = fmt.Errorf("work item timed out after %v", w.config.SessionTimeout)
		case errors.Is(itemCtx.Err(), context.Canceled):
			result.Status = models.WorkItemFailed
			result.Error = context.Canceled
		default:
			result.Status = models.WorkItemCompleted
		}
	}

	// 8. Stop heartbeat
	cancelHeartbeat()

	// 9. Update terminal status (use background context - item ctx may be cancelled)
	var errMsg string
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	if err := w.store.CompleteWorkItem(context.Background(), item.ID, result.Status, errMsg); err != nil {
		log.Error("Failed to update work item terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.itemsProcessed++
	w.mu.Unlock()

	log.Info("Work item processing complete", "status", result.Status)
	return nil
}

// runHeartbeat periodically refreshes the claim heartbeat for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, itemID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.TouchWorkItem(ctx, itemID); err != nil {
				slog.Warn("Heartbeat update failed", "item_id", itemID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, itemID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentItemID = itemID
	w.lastActivity = time.Now()
}
