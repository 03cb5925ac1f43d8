package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/store"
)

// WorkerPool manages a pool of queue workers.
type WorkerPool struct {
	podID    string
	store    *store.Store
	config   *config.QueueConfig
	executor Executor
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Item cancel registry: item_id -> cancel function
	activeItems map[string]context.CancelFunc
	mu          sync.RWMutex
	started     bool

	// Orphan detection state
	orphans orphanState
}

type orphanState struct {
	mu              sync.Mutex
	lastOrphanScan  time.Time
	orphansRequeued int
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, st *store.Store, cfg *config.QueueConfig, executor Executor) *WorkerPool {
	return &WorkerPool{
		podID:       podID,
		store:       st,
		config:      cfg,
		executor:    executor,
		workers:     make([]*Worker, 0, cfg.WorkerCount),
		stopCh:      make(chan struct{}),
		activeItems: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.config, p.executor, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	// Start orphan detection
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current items before exiting (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	active := p.getActiveItemIDs()
	if len(active) > 0 {
		slog.Info("Waiting for active work items to complete",
			"count", len(active),
			"item_ids", active)
	}

	// Signal all workers to stop (they finish current items)
	for _, worker := range p.workers {
		worker.Stop()
	}

	// Signal orphan detection to stop
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// RegisterItem stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterItem(itemID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeItems[itemID] = cancel
}

// UnregisterItem removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterItem(itemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeItems, itemID)
}

// CancelItem triggers context cancellation for an item on this pod.
// Returns true if the item was found and cancelled on this pod.
func (p *WorkerPool) CancelItem(itemID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeItems[itemID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.store.CountPendingWorkItems(ctx)
	if errQ != nil {
		slog.Error("Failed to query queue depth for health check",
			"pod_id", p.podID,
			"error", errQ)
	}

	activeItems, errA := p.store.CountInProgressForPod(ctx, p.podID)
	if errA != nil {
		slog.Error("Failed to query active work items for health check",
			"pod_id", p.podID,
			"error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	// DB errors affect health status - if we can't reach the DB, we're not healthy
	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeItems <= p.config.MaxConcurrentSessions && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRequeued := p.orphans.orphansRequeued
	p.orphans.mu.Unlock()

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else if errA != nil {
			dbError = fmt.Sprintf("active items query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:       isHealthy,
		DBReachable:     dbHealthy,
		DBError:         dbError,
		PodID:           p.podID,
		ActiveWorkers:   activeWorkers,
		TotalWorkers:    len(p.workers),
		ActiveItems:     activeItems,
		MaxConcurrent:   p.config.MaxConcurrentSessions,
		QueueDepth:      queueDepth,
		WorkerStats:     workerStats,
		LastOrphanScan:  lastOrphanScan,
		OrphansRequeued: orphansRequeued,
	}
}

// runOrphanDetection periodically requeues orphaned work items.
// All pods run this independently - the requeue is idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.store.RequeueOrphanedWorkItems(ctx, p.config.OrphanThreshold)
			if err != nil {
				slog.Error("Orphan detection failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("Requeued orphaned work items", "count", n)
			}
			p.orphans.mu.Lock()
			p.orphans.lastOrphanScan = time.Now()
			p.orphans.orphansRequeued += int(n)
			p.orphans.mu.Unlock()
		}
	}
}

// CleanupStartupOrphans performs a one-time requeue of work items still
// claimed by this pod from a previous run. Called once during startup,
// before the worker pool begins processing.
func CleanupStartupOrphans(ctx context.Context, st *store.Store, podID string) error {
	n, err := st.RecoverPodWorkItems(ctx, podID)
	if err != nil {
		return fmt.Errorf("failed to recover startup orphans: %w", err)
	}
	if n > 0 {
		slog.Warn("Requeued work items from previous run",
			"pod_id", podID,
			"count", n)
	}
	return nil
}

// getActiveItemIDs returns IDs of currently processing items (for logging).
func (p *WorkerPool) getActiveItemIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	items := make([]string, 0, len(p.activeItems))
	for id := range p.activeItems {
		items = append(items, id)
	}
	return items
}
