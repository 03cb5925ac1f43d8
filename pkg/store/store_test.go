package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revops-ai/relay/pkg/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFromDB(sqlx.NewDb(db, "pgx")), mock
}

func workItemColumns() []string {
	return []string{
		"id", "kind", "status", "query", "chat_origin", "webhook_origin",
		"pod_id", "started_at", "last_heartbeat", "requeue_count", "error",
		"received_at", "completed_at",
	}
}

func TestEnqueueWorkItem(t *testing.T) {
	s, mock := newMockStore(t)

	item := &models.WorkItem{
		ID:    uuid.NewString(),
		Kind:  models.KindChatMention,
		Query: "what is the pipeline for Q3",
		Chat: &models.ChatOrigin{
			ChannelID: "C123",
			UserID:    "U456",
			ThreadTS:  "1724500000.000100",
			EventTS:   "1724500000.000100",
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_items")).
		WithArgs(item.ID, "chat_mention", item.Query, sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.EnqueueWorkItem(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextWorkItem(t *testing.T) {
	t.Run("claims oldest pending item", func(t *testing.T) {
		s, mock := newMockStore(t)

		id := uuid.NewString()
		received := time.Now().Add(-time.Minute)
		rows := sqlmock.NewRows(workItemColumns()).AddRow(
			id, "webhook_query", "pending", "forecast risk for acme deal",
			nil, []byte(`{"source_system":"crm","source_process":"deal_review","correlation_id":"corr-1"}`),
			nil, nil, nil, 0, nil, received, nil,
		)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).WillReturnRows(rows)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE work_items")).
			WithArgs(id, "pod-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		item, err := s.ClaimNextWorkItem(context.Background(), "pod-1")
		require.NoError(t, err)

		assert.Equal(t, id, item.ID)
		assert.Equal(t, models.WorkItemInProgress, item.Status)
		assert.Equal(t, "pod-1", item.PodID)
		require.NotNil(t, item.Webhook)
		assert.Equal(t, "corr-1", item.Webhook.CorrelationID)
		assert.Equal(t, "corr-1", item.ConversationID())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue returns sentinel", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
			WillReturnRows(sqlmock.NewRows(workItemColumns()))
		mock.ExpectRollback()

		_, err := s.ClaimNextWorkItem(context.Background(), "pod-1")
		assert.ErrorIs(t, err, ErrNoWorkAvailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTouchWorkItem(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET last_heartbeat = now()")).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.TouchWorkItem(context.Background(), "item-1"))

	// Heartbeat for an item no longer in progress reports not found.
	mock.ExpectExec(regexp.QuoteMeta("SET last_heartbeat = now()")).
		WithArgs("item-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.TouchWorkItem(context.Background(), "item-2"), ErrNotFound)
}

func TestMarkEventProcessed(t *testing.T) {
	s, mock := newMockStore(t)
	window := 10 * time.Minute

	t.Run("first sighting", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM processed_events")).
			WithArgs("600 seconds").
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (event_key) DO NOTHING")).
			WithArgs("C123:1724500000.000100").
			WillReturnResult(sqlmock.NewResult(0, 1))

		fresh, err := s.MarkEventProcessed(context.Background(), "C123:1724500000.000100", window)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("duplicate inside window", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM processed_events")).
			WithArgs("600 seconds").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (event_key) DO NOTHING")).
			WithArgs("C123:1724500000.000100").
			WillReturnResult(sqlmock.NewResult(0, 0))

		fresh, err := s.MarkEventProcessed(context.Background(), "C123:1724500000.000100", window)
		require.NoError(t, err)
		assert.False(t, fresh)
	})
}

func TestDeliveryTerminalStatusesAreWriteOnce(t *testing.T) {
	s, mock := newMockStore(t)

	// Job already delivered: the guard clause matches no rows.
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'failed_permanent'")).
		WithArgs("d-1", 5, "endpoint gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkDeliveryFailed(context.Background(), "d-1", 5, "endpoint gone")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'delivered'")).
		WithArgs("d-2", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.MarkDelivered(context.Background(), "d-2", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleDelivery(t *testing.T) {
	s, mock := newMockStore(t)

	next := time.Now().Add(4 * time.Second)
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'retry_scheduled'")).
		WithArgs("d-3", 3, sqlmock.AnyArg(), "connection reset").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RescheduleDelivery(context.Background(), "d-3", 3, next, "connection reset"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
