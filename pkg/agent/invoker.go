package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
	"github.com/revops-ai/relay/pkg/queue"
	"github.com/revops-ai/relay/pkg/retry"
	"github.com/revops-ai/relay/pkg/slack"
)

// Backoff bounds between invocation attempts. Throttling responses need real
// pauses; anything longer than the cap just burns the caller's patience.
const (
	invokeRetryBaseDelay = 2 * time.Second
	invokeRetryMaxDelay  = 15 * time.Second
)

// Exporter persists the conversation record assembled from a session
// result. Export runs for every item, successful or not.
type Exporter interface {
	Export(ctx context.Context, result *models.SessionResult) error
}

// Dispatcher routes a classified webhook-origin result to its downstream
// delivery queue (or dead-letters it when no target is configured).
type Dispatcher interface {
	Dispatch(ctx context.Context, result *models.SessionResult, class models.IntentClass) error
}

// Classifier assigns the intent class for delivery routing.
type Classifier func(responseText, originalQuery string) models.IntentClass

// Invoker consumes work items: it drives the streamed agent invocation,
// surfaces chat progress, classifies and dispatches webhook results, and
// always hands the session to the exporter. Implements queue.Executor.
type Invoker struct {
	runtime    Runtime
	cfg        *config.AgentConfig
	slackCfg   *config.SlackConfig
	chat       *slack.Client // nil disables chat replies (webhook-only deployments)
	classify   Classifier
	dispatcher Dispatcher
	exporter   Exporter
	now        func() time.Time
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewInvoker wires an invoker. chat may be nil.
func NewInvoker(runtime Runtime, cfg *config.AgentConfig, slackCfg *config.SlackConfig,
	chat *slack.Client, classify Classifier, dispatcher Dispatcher, exporter Exporter) *Invoker {
	return &Invoker{
		runtime:    runtime,
		cfg:        cfg,
		slackCfg:   slackCfg,
		chat:       chat,
		classify:   classify,
		dispatcher: dispatcher,
		exporter:   exporter,
		now:        time.Now,
		retryDelay: invokeRetryBaseDelay,
		logger:     slog.Default().With("component", "agent-invoker"),
	}
}

// Execute processes one work item end to end.
func (inv *Invoker) Execute(ctx context.Context, item *models.WorkItem) *queue.ExecutionResult {
	startedAt := inv.now()
	log := inv.logger.With("item_id", item.ID, "kind", item.Kind, "conversation_id", item.ConversationID())

	result := &models.SessionResult{
		Item:       item,
		SessionKey: SessionKey(item, startedAt),
		Prompt:     PrependTemporalContext(item.Query, startedAt),
		StartedAt:  startedAt,
	}

	var reporter *slack.ProgressReporter
	if item.Chat != nil && inv.chat != nil {
		reporter = slack.NewProgressReporter(inv.chat, item.Chat.ChannelID, item.Chat.ThreadTS,
			item.Chat.PlaceholderTS, inv.slackCfg.ProgressThrottle)
	}

	response, traces, err := inv.invokeWithRetry(ctx, result.SessionKey, result.Prompt, reporter, log)
	result.TraceEvents = traces
	result.CompletedAt = inv.now()

	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		log.Error("Agent invocation failed", "error", err)

		if reporter != nil {
			if ferr := reporter.Finalize(ctx, slack.ApologyText); ferr != nil {
				log.Error("Failed to deliver apology", "error", ferr)
			}
		}

		inv.export(result, log)
		return &queue.ExecutionResult{Status: models.WorkItemFailed, Error: err}
	}

	result.Success = true
	result.FinalResponse = response
	log.Info("Agent invocation complete",
		"response_chars", len(response),
		"trace_events", len(traces),
		"duration_ms", result.ProcessingTime().Milliseconds())

	if reporter != nil {
		if ferr := reporter.Finalize(ctx, response); ferr != nil {
			log.Error("Failed to post final response", "error", ferr)
		}
	}

	if item.Webhook != nil {
		class := inv.classify(response, item.Query)
		log.Info("Response classified", "intent_class", class)
		if derr := inv.dispatcher.Dispatch(ctx, result, class); derr != nil {
			// Dispatch failure loses the downstream callback; the record
			// still exports, so the conversation itself is not lost.
			log.Error("Delivery dispatch failed", "intent_class", class, "error", derr)
		}
	}

	inv.export(result, log)
	return &queue.ExecutionResult{Status: models.WorkItemCompleted}
}

// invokeWithRetry runs streaming attempts until success, a permanent error,
// or the retry budget is spent. Only transport and throttling failures are
// retried; each attempt restarts the stream from scratch.
func (inv *Invoker) invokeWithRetry(ctx context.Context, sessionKey, prompt string,
	reporter *slack.ProgressReporter, log *slog.Logger) (string, []*models.TraceEvent, error) {

	type attemptOutcome struct {
		response string
		traces   []*models.TraceEvent
	}

	maxAttempts := inv.cfg.MaxAttempts + 1 // first attempt plus retries
	attempt := 0
	var lastTraces []*models.TraceEvent

	out, res := retry.DoWithValue(ctx, retry.Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: inv.retryDelay,
		MaxDelay:     invokeRetryMaxDelay,
		Factor:       2.0,
	}, func() (attemptOutcome, error) {
		attempt++
		response, traces, err := inv.attempt(ctx, sessionKey, prompt, reporter)
		if err == nil {
			return attemptOutcome{response: response, traces: traces}, nil
		}
		lastTraces = traces
		if !IsRetryableInvokeError(err) {
			log.Warn("Non-retryable agent error", "attempt", attempt, "error", err)
			return attemptOutcome{}, retry.Permanent(err)
		}
		if attempt < maxAttempts {
			log.Warn("Retryable agent error, retrying", "attempt", attempt, "error", err)
		}
		return attemptOutcome{}, err
	})

	if res.Err == nil {
		return out.response, out.traces, nil
	}

	// Permanent errors surface as-is; the wrapper only exists to stop the loop.
	var perm *retry.PermanentError
	if errors.As(res.Err, &perm) {
		return "", lastTraces, perm.Err
	}
	if ctx.Err() != nil {
		return "", lastTraces, res.Err
	}
	return "", lastTraces, fmt.Errorf("agent invocation failed after %d attempts: %w", res.Attempts, res.Err)
}

// attempt runs one complete streamed invocation under the read deadline.
func (inv *Invoker) attempt(ctx context.Context, sessionKey, prompt string,
	reporter *slack.ProgressReporter) (string, []*models.TraceEvent, error) {

	attemptCtx, cancel := context.WithTimeout(ctx, inv.cfg.ReadTimeout)
	defer cancel()

	stream, err := inv.runtime.Invoke(attemptCtx, InvokeInput{
		SessionID: sessionKey,
		InputText: prompt,
	})
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = stream.Close() }()

	var buf strings.Builder
	var traces []*models.TraceEvent

	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf.String(), traces, nil
			}
			return "", traces, err
		}

		traces = append(traces, ev)

		switch ev.Type {
		case models.TraceChunk:
			buf.WriteString(ev.Text)
		case models.TraceLifecycle:
			inv.logger.Debug("Stream lifecycle event", "detail", ev.Text)
		default:
			if reporter != nil {
				reporter.Observe(ctx, ev)
			}
		}
	}
}

// export hands the finished session to the recorder. Export failures are
// alert-level: the conversation artifact is lost but the item outcome
// already reached the user.
func (inv *Invoker) export(result *models.SessionResult, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := inv.exporter.Export(ctx, result); err != nil {
		log.Error("ALERT: conversation record export failed",
			"conversation_id", result.Item.ConversationID(),
			"error", err)
	}
}
