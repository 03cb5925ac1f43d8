package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/revops-ai/relay/pkg/models"
)

// claimLease is how long a claimed delivery job stays invisible to other
// workers. Must exceed the worst-case HTTP attempt duration; the claiming
// worker always resolves the job (delivered, rescheduled, or dead-lettered)
// well before the lease expires.
const claimLease = 2 * time.Minute

type deliveryJobRow struct {
	ID             string         `db:"id"`
	ConversationID string         `db:"conversation_id"`
	IntentClass    string         `db:"intent_class"`
	TargetURL      string         `db:"target_url"`
	Payload        []byte         `db:"payload"`
	Attempt        int            `db:"attempt"`
	MaxAttempts    int            `db:"max_attempts"`
	NextReadyAt    time.Time      `db:"next_ready_at"`
	Status         string         `db:"status"`
	LastError      sql.NullString `db:"last_error"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *deliveryJobRow) toModel() *models.DeliveryJob {
	return &models.DeliveryJob{
		DeliveryID:     r.ID,
		ConversationID: r.ConversationID,
		IntentClass:    models.IntentClass(r.IntentClass),
		TargetURL:      r.TargetURL,
		Payload:        r.Payload,
		Attempt:        r.Attempt,
		MaxAttempts:    r.MaxAttempts,
		NextReadyAt:    r.NextReadyAt,
		Status:         models.DeliveryStatus(r.Status),
		LastError:      r.LastError.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// EnqueueDeliveryJob persists a new pending delivery job, ready immediately.
func (s *Store) EnqueueDeliveryJob(ctx context.Context, job *models.DeliveryJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_jobs
			(id, conversation_id, intent_class, target_url, payload, attempt, max_attempts, next_ready_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), 'pending')`,
		job.DeliveryID, job.ConversationID, string(job.IntentClass), job.TargetURL,
		[]byte(job.Payload), job.Attempt, job.MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to enqueue delivery job: %w", err)
	}
	return nil
}

// ClaimNextDeliveryJob atomically claims the next ready delivery job using
// FOR UPDATE SKIP LOCKED. Claiming pushes next_ready_at forward by a short
// lease so a crashed worker's job becomes claimable again on its own.
// Returns ErrNoJobsAvailable when nothing is ready.
func (s *Store) ClaimNextDeliveryJob(ctx context.Context) (*models.DeliveryJob, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row deliveryJobRow
	err = tx.GetContext(ctx, &row, `
		SELECT * FROM delivery_jobs
		WHERE status IN ('pending', 'retry_scheduled') AND next_ready_at <= now()
		ORDER BY next_ready_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("failed to query ready delivery job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE delivery_jobs
		SET next_ready_at = now() + $2::interval, updated_at = now()
		WHERE id = $1`,
		row.ID, fmt.Sprintf("%d seconds", int(claimLease.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to lease delivery job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return row.toModel(), nil
}

// MarkDelivered records successful delivery. Terminal statuses are write-once:
// a job already delivered or failed permanently is never modified again.
func (s *Store) MarkDelivered(ctx context.Context, deliveryID string, attempt int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_jobs
		SET status = 'delivered', attempt = $2, last_error = NULL, updated_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'failed_permanent')`,
		deliveryID, attempt)
	if err != nil {
		return fmt.Errorf("failed to mark delivery succeeded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RescheduleDelivery records a failed attempt and schedules the next one.
func (s *Store) RescheduleDelivery(ctx context.Context, deliveryID string, attempt int, nextReadyAt time.Time, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_jobs
		SET status = 'retry_scheduled', attempt = $2, next_ready_at = $3, last_error = $4, updated_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'failed_permanent')`,
		deliveryID, attempt, nextReadyAt, lastError)
	if err != nil {
		return fmt.Errorf("failed to reschedule delivery: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeliveryFailed records permanent failure. Write-once like MarkDelivered.
func (s *Store) MarkDeliveryFailed(ctx context.Context, deliveryID string, attempt int, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_jobs
		SET status = 'failed_permanent', attempt = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'failed_permanent')`,
		deliveryID, attempt, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark delivery failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertDeadLetter records a delivery that will never be retried, preserving
// the full payload for manual inspection or replay.
func (s *Store) InsertDeadLetter(ctx context.Context, dl *models.DeadLetter) error {
	id := dl.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters
			(id, delivery_id, conversation_id, intent_class, target_url, payload, reason, attempts)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8)`,
		id, dl.DeliveryID, dl.ConversationID, string(dl.IntentClass), dl.TargetURL,
		[]byte(dl.Payload), dl.Reason, dl.Attempts)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}
