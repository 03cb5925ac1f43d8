package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postSlackEvent(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.slackEventsHandler(c))
	return rec
}

const mentionEnvelope = `{
	"type": "event_callback",
	"event": {
		"type": "app_mention",
		"user": "U456",
		"channel": "C123",
		"text": "<@BOT123> Q4 revenue?",
		"ts": "1700000000.000100"
	}
}`

func TestSlackURLVerification(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeVerifier{}, nil)

	rec := postSlackEvent(t, s, `{"type":"url_verification","challenge":"abc123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.Challenge)
}

func TestSlackSignatureFailure(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeVerifier{err: errors.New("bad signature")}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(mentionEnvelope))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.slackEventsHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected echo.HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestSlackMentionEnqueues(t *testing.T) {
	store := &fakeStore{}
	chat := &fakeChat{ts: "1700000000.000200"}
	s := newTestServer(store, &fakeVerifier{}, chat)

	rec := postSlackEvent(t, s, mentionEnvelope)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.items, 1)
	item := store.items[0]
	assert.Equal(t, "Q4 revenue?", item.Query)
	require.NotNil(t, item.Chat)
	assert.Equal(t, "C123", item.Chat.ChannelID)
	assert.Equal(t, "U456", item.Chat.UserID)
	assert.Equal(t, "1700000000.000100", item.Chat.ThreadTS)
	assert.Equal(t, "1700000000.000100", item.Chat.EventTS)
	assert.Equal(t, "1700000000.000200", item.Chat.PlaceholderTS)
	assert.Equal(t, 1, chat.calls)
}

func TestSlackThreadedMentionRepliesInThread(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, &fakeVerifier{}, nil)

	body := `{
		"type": "event_callback",
		"event": {
			"type": "app_mention",
			"user": "U456",
			"channel": "C123",
			"text": "<@BOT123> follow up",
			"ts": "1700000001.000300",
			"thread_ts": "1700000000.000100"
		}
	}`
	postSlackEvent(t, s, body)

	require.Len(t, store.items, 1)
	assert.Equal(t, "1700000000.000100", store.items[0].Chat.ThreadTS)
	assert.Equal(t, "1700000001.000300", store.items[0].Chat.EventTS)
}

func TestSlackBareMentionIgnored(t *testing.T) {
	store := &fakeStore{}
	chat := &fakeChat{ts: "1700000000.000200"}
	s := newTestServer(store, &fakeVerifier{}, chat)

	// Nothing left after the bot tag is stripped: ack without enqueueing.
	body := `{
		"type": "event_callback",
		"event": {
			"type": "app_mention",
			"user": "U456",
			"channel": "C123",
			"text": "<@BOT123>  ",
			"ts": "1700000000.000100"
		}
	}`
	rec := postSlackEvent(t, s, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.items)
	assert.Equal(t, 0, chat.calls)
}

func TestSlackDuplicateEventIgnored(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, &fakeVerifier{}, nil)

	postSlackEvent(t, s, mentionEnvelope)
	rec := postSlackEvent(t, s, mentionEnvelope)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.items, 1)
}

func TestSlackEnqueueFailureStillAcks(t *testing.T) {
	store := &fakeStore{enqueueErr: errors.New("queue down")}
	s := newTestServer(store, &fakeVerifier{}, nil)

	rec := postSlackEvent(t, s, mentionEnvelope)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.items)
}

func TestSlackPlaceholderFailureStillEnqueues(t *testing.T) {
	store := &fakeStore{}
	chat := &fakeChat{err: errors.New("api down")}
	s := newTestServer(store, &fakeVerifier{}, chat)

	postSlackEvent(t, s, mentionEnvelope)

	require.Len(t, store.items, 1)
	assert.Empty(t, store.items[0].Chat.PlaceholderTS)
}

func TestSlackIgnoresOtherEventTypes(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, &fakeVerifier{}, nil)

	body := `{"type":"event_callback","event":{"type":"message","channel":"C123","ts":"1.2"}}`
	rec := postSlackEvent(t, s, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.items)
}

func TestSlackMalformedEnvelope(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeVerifier{}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.slackEventsHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
