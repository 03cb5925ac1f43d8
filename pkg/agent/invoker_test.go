package agent

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
)

// fakeStream replays a fixed event sequence, then terminates with err
// (io.EOF for a clean stream).
type fakeStream struct {
	events []*models.TraceEvent
	err    error
	closed bool
}

func (s *fakeStream) Recv() (*models.TraceEvent, error) {
	if len(s.events) == 0 {
		return nil, s.err
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeRuntime hands out one scripted attempt per Invoke call.
type fakeRuntime struct {
	attempts []attemptScript
	calls    int
	inputs   []InvokeInput
}

type attemptScript struct {
	invokeErr error
	stream    *fakeStream
}

func (r *fakeRuntime) Invoke(_ context.Context, in InvokeInput) (Stream, error) {
	r.inputs = append(r.inputs, in)
	if r.calls >= len(r.attempts) {
		return nil, errors.New("unexpected extra invocation")
	}
	script := r.attempts[r.calls]
	r.calls++
	if script.invokeErr != nil {
		return nil, script.invokeErr
	}
	return script.stream, nil
}

type fakeExporter struct {
	results []*models.SessionResult
	err     error
}

func (e *fakeExporter) Export(_ context.Context, result *models.SessionResult) error {
	e.results = append(e.results, result)
	return e.err
}

type fakeDispatcher struct {
	results []*models.SessionResult
	classes []models.IntentClass
	err     error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, result *models.SessionResult, class models.IntentClass) error {
	d.results = append(d.results, result)
	d.classes = append(d.classes, class)
	return d.err
}

func chunk(text string) *models.TraceEvent {
	return &models.TraceEvent{Type: models.TraceChunk, Text: text}
}

func cleanStream(events ...*models.TraceEvent) *fakeStream {
	return &fakeStream{events: events, err: io.EOF}
}

func newTestInvoker(t *testing.T, runtime Runtime, exporter Exporter, dispatcher Dispatcher) *Invoker {
	t.Helper()
	cfg := &config.AgentConfig{
		AgentID:      "AGENT1",
		AgentAliasID: "ALIAS1",
		Region:       "us-east-1",
		ReadTimeout:  5 * time.Second,
		MaxAttempts:  2,
	}
	slackCfg := &config.SlackConfig{ProgressThrottle: time.Second}
	classify := func(response, query string) models.IntentClass {
		return models.IntentDealAnalysis
	}
	inv := NewInvoker(runtime, cfg, slackCfg, nil, classify, dispatcher, exporter)
	inv.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	inv.retryDelay = time.Millisecond
	return inv
}

func chatItem() *models.WorkItem {
	return &models.WorkItem{
		ID:    "item-1",
		Kind:  models.KindChatMention,
		Query: "how is the pipeline looking",
		Chat: &models.ChatOrigin{
			ChannelID: "C123",
			UserID:    "U456",
			ThreadTS:  "1700000000.000100",
		},
	}
}

func webhookItem() *models.WorkItem {
	return &models.WorkItem{
		ID:    "item-2",
		Kind:  models.KindWebhookQuery,
		Query: "score this deal",
		Webhook: &models.WebhookOrigin{
			SourceSystem:  "salesforce",
			SourceProcess: "deal_review",
			CorrelationID: "corr-42",
		},
	}
}

func TestExecuteAssemblesChunks(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: cleanStream(
			&models.TraceEvent{Type: models.TraceRationale, Text: "thinking"},
			chunk("Hello, "),
			chunk("world."),
		)},
	}}
	exporter := &fakeExporter{}
	inv := newTestInvoker(t, runtime, exporter, &fakeDispatcher{})

	res := inv.Execute(context.Background(), chatItem())

	require.NotNil(t, res)
	assert.Equal(t, models.WorkItemCompleted, res.Status)
	assert.NoError(t, res.Error)

	require.Len(t, exporter.results, 1)
	exported := exporter.results[0]
	assert.True(t, exported.Success)
	assert.Equal(t, "Hello, world.", exported.FinalResponse)
	assert.Len(t, exported.TraceEvents, 3)
	assert.Equal(t, "U456:C123:1700000000.000100", exported.SessionKey)
	assert.Contains(t, exported.Prompt, "Current context: today is 2026-03-10")
	assert.Contains(t, exported.Prompt, "how is the pipeline looking")
}

func TestExecuteDispatchesWebhookResults(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: cleanStream(chunk("The deal looks strong."))},
	}}
	exporter := &fakeExporter{}
	dispatcher := &fakeDispatcher{}
	inv := newTestInvoker(t, runtime, exporter, dispatcher)

	res := inv.Execute(context.Background(), webhookItem())

	assert.Equal(t, models.WorkItemCompleted, res.Status)
	require.Len(t, dispatcher.results, 1)
	assert.Equal(t, models.IntentDealAnalysis, dispatcher.classes[0])
	assert.Equal(t, "The deal looks strong.", dispatcher.results[0].FinalResponse)
	assert.Len(t, exporter.results, 1)
}

func TestExecuteChatItemsAreNotDispatched(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: cleanStream(chunk("hi"))},
	}}
	dispatcher := &fakeDispatcher{}
	inv := newTestInvoker(t, runtime, &fakeExporter{}, dispatcher)

	inv.Execute(context.Background(), chatItem())

	assert.Empty(t, dispatcher.results)
}

func TestExecuteDispatchFailureIsNotFatal(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: cleanStream(chunk("ok"))},
	}}
	dispatcher := &fakeDispatcher{err: errors.New("queue down")}
	exporter := &fakeExporter{}
	inv := newTestInvoker(t, runtime, exporter, dispatcher)

	res := inv.Execute(context.Background(), webhookItem())

	assert.Equal(t, models.WorkItemCompleted, res.Status)
	assert.Len(t, exporter.results, 1)
}

func TestExecuteRetriesThrottling(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "throttlingException", Message: "slow down"}
	runtime := &fakeRuntime{attempts: []attemptScript{
		{invokeErr: throttled},
		{stream: cleanStream(chunk("second time lucky"))},
	}}
	exporter := &fakeExporter{}
	inv := newTestInvoker(t, runtime, exporter, &fakeDispatcher{})

	res := inv.Execute(context.Background(), chatItem())

	assert.Equal(t, models.WorkItemCompleted, res.Status)
	assert.Equal(t, 2, runtime.calls)
	require.Len(t, exporter.results, 1)
	assert.Equal(t, "second time lucky", exporter.results[0].FinalResponse)
}

func TestExecuteRetriesMidStreamTransportError(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: &fakeStream{
			events: []*models.TraceEvent{chunk("partial ")},
			err:    errors.New("connection reset by peer"),
		}},
		{stream: cleanStream(chunk("full response"))},
	}}
	exporter := &fakeExporter{}
	inv := newTestInvoker(t, runtime, exporter, &fakeDispatcher{})

	res := inv.Execute(context.Background(), chatItem())

	assert.Equal(t, models.WorkItemCompleted, res.Status)
	assert.Equal(t, 2, runtime.calls)
	// The retried attempt starts fresh; partial text from the broken stream
	// must not leak into the response.
	assert.Equal(t, "full response", exporter.results[0].FinalResponse)
}

func TestExecutePermanentErrorFailsImmediately(t *testing.T) {
	denied := &smithy.GenericAPIError{Code: "accessDeniedException", Message: "no"}
	runtime := &fakeRuntime{attempts: []attemptScript{
		{invokeErr: denied},
		{stream: cleanStream(chunk("should never run"))},
	}}
	exporter := &fakeExporter{}
	inv := newTestInvoker(t, runtime, exporter, &fakeDispatcher{})

	res := inv.Execute(context.Background(), chatItem())

	assert.Equal(t, models.WorkItemFailed, res.Status)
	// The original API error surfaces unwrapped, not behind retry plumbing.
	assert.ErrorIs(t, res.Error, denied)
	assert.Equal(t, 1, runtime.calls)

	// Failed sessions still export.
	require.Len(t, exporter.results, 1)
	assert.False(t, exporter.results[0].Success)
	assert.NotEmpty(t, exporter.results[0].ErrorMessage)
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "throttlingException"}
	runtime := &fakeRuntime{attempts: []attemptScript{
		{invokeErr: throttled},
		{invokeErr: throttled},
		{invokeErr: throttled},
	}}
	exporter := &fakeExporter{}
	dispatcher := &fakeDispatcher{}
	inv := newTestInvoker(t, runtime, exporter, dispatcher)

	res := inv.Execute(context.Background(), webhookItem())

	assert.Equal(t, models.WorkItemFailed, res.Status)
	assert.Equal(t, 3, runtime.calls)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "after 3 attempts")
	assert.ErrorIs(t, res.Error, throttled)
	assert.Empty(t, dispatcher.results)
	require.Len(t, exporter.results, 1)
	assert.False(t, exporter.results[0].Success)
}

func TestExecuteExportFailureDoesNotChangeOutcome(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: cleanStream(chunk("fine"))},
	}}
	exporter := &fakeExporter{err: errors.New("bucket unreachable")}
	inv := newTestInvoker(t, runtime, exporter, &fakeDispatcher{})

	res := inv.Execute(context.Background(), chatItem())

	assert.Equal(t, models.WorkItemCompleted, res.Status)
	assert.Len(t, exporter.results, 1)
}

func TestExecuteSendsTemporalPromptToRuntime(t *testing.T) {
	runtime := &fakeRuntime{attempts: []attemptScript{
		{stream: cleanStream(chunk("ok"))},
	}}
	inv := newTestInvoker(t, runtime, &fakeExporter{}, &fakeDispatcher{})

	inv.Execute(context.Background(), webhookItem())

	require.Len(t, runtime.inputs, 1)
	in := runtime.inputs[0]
	assert.Contains(t, in.InputText, "Current quarter: Q1 2026")
	assert.Contains(t, in.InputText, "score this deal")
	assert.Equal(t, "corr-42:1773144000", in.SessionID)
}
