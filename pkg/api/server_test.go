package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
)

type fakeStore struct {
	items      []*models.WorkItem
	enqueueErr error
	seen       map[string]bool
	dedupErr   error
}

func (f *fakeStore) EnqueueWorkItem(_ context.Context, item *models.WorkItem) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.dedupErr != nil {
		return false, f.dedupErr
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify(http.Header, []byte) error {
	return f.err
}

type fakeChat struct {
	ts    string
	err   error
	calls int
}

func (f *fakeChat) PostPlaceholder(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.ts, f.err
}

func newTestServer(store *fakeStore, verifier *fakeVerifier, chat *fakeChat) *Server {
	slackCfg := config.DefaultSlackConfig()
	slackCfg.DedupWindow = time.Hour

	var chatClient ChatClient
	if chat != nil {
		chatClient = chat
	}

	s := NewServer(store, nil, nil, verifier, chatClient, slackCfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	ids := 0
	s.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	return s
}
