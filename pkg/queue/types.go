// Package queue provides work item queue management and processing
// infrastructure: a polling worker pool over the durable store, with
// heartbeats and orphan recovery.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoItemsAvailable indicates no pending work items are in the queue.
	ErrNoItemsAvailable = errors.New("no work items available")

	// ErrAtCapacity indicates the global concurrent item limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// Executor is the interface for work item processing.
//
// The executor owns the entire item lifecycle internally: invoking the
// agent, posting progress, classification, delivery enqueue, and record
// export all happen during Execute. The worker only handles claiming,
// heartbeat, and the terminal status update.
type Executor interface {
	Execute(ctx context.Context, item *models.WorkItem) *ExecutionResult
}

// ExecutionResult is lightweight - just the terminal state. All intermediate
// state was already persisted by the executor during processing.
type ExecutionResult struct {
	Status models.WorkItemStatus // completed or failed
	Error  error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy       bool           `json:"is_healthy"`
	DBReachable     bool           `json:"db_reachable"`
	DBError         string         `json:"db_error,omitempty"`
	PodID           string         `json:"pod_id"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalWorkers    int            `json:"total_workers"`
	ActiveItems     int            `json:"active_items"`
	MaxConcurrent   int            `json:"max_concurrent"`
	QueueDepth      int            `json:"queue_depth"`
	WorkerStats     []WorkerHealth `json:"worker_stats"`
	LastOrphanScan  time.Time      `json:"last_orphan_scan"`
	OrphansRequeued int            `json:"orphans_requeued"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"` // "idle" or "working"
	CurrentItemID  string    `json:"current_item_id,omitempty"`
	ItemsProcessed int       `json:"items_processed"`
	LastActivity   time.Time `json:"last_activity"`
}
