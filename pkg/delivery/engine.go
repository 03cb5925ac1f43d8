package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
	"github.com/revops-ai/relay/pkg/retry"
	"github.com/revops-ai/relay/pkg/store"
	"github.com/revops-ai/relay/pkg/version"
)

// Attempt outcomes, used in logs and metric labels.
const (
	outcomeSuccess          = "success"
	outcomeRetryableFailure = "retryable_failure"
	outcomeTerminalFailure  = "terminal_failure"
)

// Engine is the delivery consumer pool. Workers claim ready jobs, POST the
// payload to the target endpoint, and resolve each job to delivered,
// retry_scheduled, or failed_permanent. The pool is sized independently of
// the agent-invoker pool so egress capacity never competes with agent calls.
type Engine struct {
	store      *store.Store
	cfg        *config.DeliveryConfig
	httpClient *http.Client
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine wires a delivery engine. metrics may be nil to disable recording.
func NewEngine(st *store.Store, cfg *config.DeliveryConfig, metrics *Metrics) *Engine {
	return &Engine{
		store:      st,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		metrics:    metrics,
		logger:     slog.Default().With("component", "delivery-engine"),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the delivery workers.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting delivery engine", "worker_count", e.cfg.WorkerCount)
	for i := 0; i < e.cfg.WorkerCount; i++ {
		e.wg.Add(1)
		go e.run(ctx, i)
	}
}

// Stop signals all workers and waits for in-flight deliveries to resolve.
// Safe to call multiple times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	e.logger.Info("Delivery engine stopped")
}

func (e *Engine) run(ctx context.Context, workerNum int) {
	defer e.wg.Done()

	log := e.logger.With("delivery_worker", workerNum)
	log.Info("Delivery worker started")

	for {
		select {
		case <-e.stopCh:
			log.Info("Delivery worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, delivery worker shutting down")
			return
		default:
			if err := e.processNext(ctx); err != nil {
				if errors.Is(err, store.ErrNoJobsAvailable) {
					e.sleep(e.pollInterval())
					continue
				}
				log.Error("Error processing delivery job", "error", err)
				e.sleep(time.Second)
			}
		}
	}
}

func (e *Engine) sleep(d time.Duration) {
	select {
	case <-e.stopCh:
	case <-time.After(d):
	}
}

func (e *Engine) pollInterval() time.Duration {
	base := e.cfg.PollInterval
	// Small jitter desynchronizes workers polling the same table.
	offset := time.Duration(rand.Int64N(int64(base / 2)))
	return base + offset
}

func (e *Engine) processNext(ctx context.Context) error {
	job, err := e.store.ClaimNextDeliveryJob(ctx)
	if err != nil {
		return err
	}
	return e.deliver(ctx, job)
}

// deliver performs one attempt against the job's target and resolves the
// job. Status updates use a background context so a shutdown mid-attempt
// cannot leave an already-posted delivery unresolved.
func (e *Engine) deliver(ctx context.Context, job *models.DeliveryJob) error {
	attempt := job.Attempt + 1
	log := e.logger.With(
		"delivery_id", job.DeliveryID,
		"conversation_id", job.ConversationID,
		"intent_class", job.IntentClass,
		"attempt", attempt,
		"max_attempts", job.MaxAttempts)

	start := e.now()
	statusCode, postErr := e.post(ctx, job)
	duration := e.now().Sub(start)

	outcome := classifyOutcome(statusCode, postErr)
	if e.metrics != nil {
		e.metrics.RecordAttempt(string(job.IntentClass), attempt, outcome, duration)
	}

	resolveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch outcome {
	case outcomeSuccess:
		log.Info("Delivery succeeded", "status_code", statusCode, "duration_ms", duration.Milliseconds())
		return e.store.MarkDelivered(resolveCtx, job.DeliveryID, attempt)

	case outcomeRetryableFailure:
		lastErr := attemptError(statusCode, postErr)
		if attempt >= job.MaxAttempts {
			log.Error("Delivery attempts exhausted, dead-lettering", "error", lastErr)
			return e.deadLetter(resolveCtx, job, attempt, ReasonAttemptsExhausted, lastErr)
		}
		delay := retry.Delay(attempt, e.cfg.Retry.BaseDelay, e.cfg.Retry.Cap,
			e.cfg.Retry.Multiplier, e.cfg.Retry.JitterFraction)
		nextReadyAt := e.now().Add(delay)
		log.Warn("Delivery attempt failed, retry scheduled",
			"error", lastErr, "next_ready_at", nextReadyAt, "delay_ms", delay.Milliseconds())
		return e.store.RescheduleDelivery(resolveCtx, job.DeliveryID, attempt, nextReadyAt, lastErr)

	default:
		lastErr := attemptError(statusCode, postErr)
		log.Error("Delivery failed permanently", "status_code", statusCode, "error", lastErr)
		return e.deadLetter(resolveCtx, job, attempt, fmt.Sprintf("http_%d", statusCode), lastErr)
	}
}

// post sends the payload. The X-Delivery-Id header carries the idempotency
// key so consumers can recognize duplicate posts of the same job.
func (e *Engine) post(ctx context.Context, job *models.DeliveryJob) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, job.TargetURL, bytes.NewReader(job.Payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())
	req.Header.Set("X-Delivery-Id", job.DeliveryID)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	return resp.StatusCode, nil
}

// deadLetter marks the job failed_permanent and preserves the payload.
func (e *Engine) deadLetter(ctx context.Context, job *models.DeliveryJob, attempt int, reason, lastErr string) error {
	if err := e.store.MarkDeliveryFailed(ctx, job.DeliveryID, attempt, lastErr); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.RecordDeadLetter(string(job.IntentClass), reason)
	}
	return e.store.InsertDeadLetter(ctx, &models.DeadLetter{
		DeliveryID:     job.DeliveryID,
		ConversationID: job.ConversationID,
		IntentClass:    job.IntentClass,
		TargetURL:      job.TargetURL,
		Payload:        job.Payload,
		Reason:         reason,
		Attempts:       attempt,
	})
}

// classifyOutcome maps an attempt result to its outcome class: any 2xx is
// success; network errors, 5xx, and 429 are retryable; every other HTTP
// status is terminal.
func classifyOutcome(statusCode int, err error) string {
	switch {
	case err != nil:
		return outcomeRetryableFailure
	case statusCode >= 200 && statusCode < 300:
		return outcomeSuccess
	case statusCode >= 500 || statusCode == http.StatusTooManyRequests:
		return outcomeRetryableFailure
	default:
		return outcomeTerminalFailure
	}
}

func attemptError(statusCode int, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unexpected status %d", statusCode)
}
