package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

type workItemRow struct {
	ID            string         `db:"id"`
	Kind          string         `db:"kind"`
	Status        string         `db:"status"`
	Query         string         `db:"query"`
	ChatOrigin    []byte         `db:"chat_origin"`
	WebhookOrigin []byte         `db:"webhook_origin"`
	PodID         sql.NullString `db:"pod_id"`
	StartedAt     sql.NullTime   `db:"started_at"`
	LastHeartbeat sql.NullTime   `db:"last_heartbeat"`
	RequeueCount  int            `db:"requeue_count"`
	Error         sql.NullString `db:"error"`
	ReceivedAt    time.Time      `db:"received_at"`
	CompletedAt   sql.NullTime   `db:"completed_at"`
}

func (r *workItemRow) toModel() (*models.WorkItem, error) {
	item := &models.WorkItem{
		ID:         r.ID,
		Kind:       models.WorkItemKind(r.Kind),
		Status:     models.WorkItemStatus(r.Status),
		Query:      r.Query,
		PodID:      r.PodID.String,
		Error:      r.Error.String,
		ReceivedAt: r.ReceivedAt,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		item.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		item.CompletedAt = &t
	}
	if len(r.ChatOrigin) > 0 {
		item.Chat = &models.ChatOrigin{}
		if err := json.Unmarshal(r.ChatOrigin, item.Chat); err != nil {
			return nil, fmt.Errorf("failed to decode chat origin: %w", err)
		}
	}
	if len(r.WebhookOrigin) > 0 {
		item.Webhook = &models.WebhookOrigin{}
		if err := json.Unmarshal(r.WebhookOrigin, item.Webhook); err != nil {
			return nil, fmt.Errorf("failed to decode webhook origin: %w", err)
		}
	}
	return item, nil
}

// EnqueueWorkItem persists a new pending work item. The item becomes visible
// to workers as soon as the insert commits.
func (s *Store) EnqueueWorkItem(ctx context.Context, item *models.WorkItem) error {
	var chatOrigin, webhookOrigin []byte
	var err error
	if item.Chat != nil {
		if chatOrigin, err = json.Marshal(item.Chat); err != nil {
			return fmt.Errorf("failed to encode chat origin: %w", err)
		}
	}
	if item.Webhook != nil {
		if webhookOrigin, err = json.Marshal(item.Webhook); err != nil {
			return fmt.Errorf("failed to encode webhook origin: %w", err)
		}
	}

	receivedAt := item.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO work_items (id, kind, status, query, chat_origin, webhook_origin, received_at)
		VALUES ($1, $2, 'pending', $3, $4, $5, $6)`,
		item.ID, string(item.Kind), item.Query, chatOrigin, webhookOrigin, receivedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue work item: %w", err)
	}
	return nil
}

// ClaimNextWorkItem atomically claims the oldest pending work item using
// FOR UPDATE SKIP LOCKED, stamping pod_id, started_at, and last_heartbeat.
// Returns ErrNoWorkAvailable when the queue is empty.
func (s *Store) ClaimNextWorkItem(ctx context.Context, podID string) (*models.WorkItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row workItemRow
	err = tx.GetContext(ctx, &row, `
		SELECT * FROM work_items
		WHERE status = 'pending'
		ORDER BY received_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoWorkAvailable
		}
		return nil, fmt.Errorf("failed to query pending work item: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE work_items
		SET status = 'in_progress', pod_id = $2, started_at = $3, last_heartbeat = $3
		WHERE id = $1`,
		row.ID, podID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim work item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	row.Status = string(models.WorkItemInProgress)
	row.PodID = sql.NullString{String: podID, Valid: true}
	row.StartedAt = sql.NullTime{Time: now, Valid: true}
	row.LastHeartbeat = sql.NullTime{Time: now, Valid: true}

	return row.toModel()
}

// CountInProgressWorkItems returns the number of items currently claimed
// across all pods.
func (s *Store) CountInProgressWorkItems(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM work_items WHERE status = 'in_progress'`)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-progress work items: %w", err)
	}
	return count, nil
}

// CountPendingWorkItems returns the current queue depth.
func (s *Store) CountPendingWorkItems(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM work_items WHERE status = 'pending'`)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending work items: %w", err)
	}
	return count, nil
}

// CountInProgressForPod returns the number of items claimed by one pod.
func (s *Store) CountInProgressForPod(ctx context.Context, podID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM work_items WHERE status = 'in_progress' AND pod_id = $1`, podID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pod work items: %w", err)
	}
	return count, nil
}

// TouchWorkItem updates the heartbeat timestamp for orphan detection.
func (s *Store) TouchWorkItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_items SET last_heartbeat = now() WHERE id = $1 AND status = 'in_progress'`,
		id)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteWorkItem writes the terminal status for a work item.
func (s *Store) CompleteWorkItem(ctx context.Context, id string, status models.WorkItemStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE work_items
		SET status = $2, error = NULLIF($3, ''), completed_at = now()
		WHERE id = $1`,
		id, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("failed to complete work item: %w", err)
	}
	return nil
}

// RequeueOrphanedWorkItems returns in-progress items with stale heartbeats to
// pending so another worker can pick them up. Called periodically by the pool.
func (s *Store) RequeueOrphanedWorkItems(ctx context.Context, threshold time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_items
		SET status = 'pending', pod_id = NULL, started_at = NULL, last_heartbeat = NULL,
		    requeue_count = requeue_count + 1
		WHERE status = 'in_progress' AND last_heartbeat < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(threshold.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to requeue orphaned work items: %w", err)
	}
	return res.RowsAffected()
}

// RecoverPodWorkItems requeues items still claimed by this pod id. Called once
// on startup to recover work interrupted by a crash or restart of the same pod.
func (s *Store) RecoverPodWorkItems(ctx context.Context, podID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_items
		SET status = 'pending', pod_id = NULL, started_at = NULL, last_heartbeat = NULL,
		    requeue_count = requeue_count + 1
		WHERE status = 'in_progress' AND pod_id = $1`,
		podID)
	if err != nil {
		return 0, fmt.Errorf("failed to recover pod work items: %w", err)
	}
	return res.RowsAffected()
}

// MarkEventProcessed records a chat event key for deduplication. Returns true
// when the key was newly inserted, false when it was already seen inside the
// retention window. Stale keys are purged opportunistically.
func (s *Store) MarkEventProcessed(ctx context.Context, eventKey string, window time.Duration) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE seen_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(window.Seconds())))
	if err != nil {
		return false, fmt.Errorf("failed to purge processed events: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_key) VALUES ($1) ON CONFLICT (event_key) DO NOTHING`,
		eventKey)
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}
