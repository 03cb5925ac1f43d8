package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/revops-ai/relay/pkg/models"
)

func TestSessionKey(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item *models.WorkItem
		want string
	}{
		{
			name: "chat with thread",
			item: &models.WorkItem{
				Kind: models.KindChatMention,
				Chat: &models.ChatOrigin{UserID: "U1", ChannelID: "C1", ThreadTS: "123.456"},
			},
			want: "U1:C1:123.456",
		},
		{
			name: "chat without thread",
			item: &models.WorkItem{
				Kind: models.KindChatMention,
				Chat: &models.ChatOrigin{UserID: "U1", ChannelID: "C1"},
			},
			want: "U1:C1",
		},
		{
			name: "webhook uses correlation id and start epoch",
			item: &models.WorkItem{
				ID:      "item-9",
				Kind:    models.KindWebhookQuery,
				Webhook: &models.WebhookOrigin{CorrelationID: "corr-7"},
			},
			want: "corr-7:1773144000",
		},
		{
			name: "webhook without correlation id falls back to item id",
			item: &models.WorkItem{
				ID:      "item-9",
				Kind:    models.KindWebhookQuery,
				Webhook: &models.WebhookOrigin{},
			},
			want: "item-9:1773144000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionKey(tt.item, now))
		})
	}
}

func TestSessionKeyDistinctUsersInSharedThread(t *testing.T) {
	now := time.Now()
	a := &models.WorkItem{Chat: &models.ChatOrigin{UserID: "U1", ChannelID: "C1", ThreadTS: "t"}}
	b := &models.WorkItem{Chat: &models.ChatOrigin{UserID: "U2", ChannelID: "C1", ThreadTS: "t"}}
	assert.NotEqual(t, SessionKey(a, now), SessionKey(b, now))
}

func TestTemporalContext(t *testing.T) {
	tests := []struct {
		now     time.Time
		quarter string
	}{
		{time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "Q1 2026"},
		{time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), "Q1 2026"},
		{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "Q2 2026"},
		{time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), "Q3 2026"},
		{time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), "Q4 2026"},
	}

	for _, tt := range tests {
		got := TemporalContext(tt.now)
		assert.Contains(t, got, "Current quarter: "+tt.quarter)
		assert.Contains(t, got, "today is "+tt.now.Format("2006-01-02"))
		assert.Contains(t, got, tt.now.Weekday().String())
	}
}

func TestPrependTemporalContext(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	got := PrependTemporalContext("show me last week's closed deals", now)

	assert.True(t, len(got) > len("show me last week's closed deals"))
	assert.Contains(t, got, "\n\nshow me last week's closed deals")
	assert.Contains(t, got, "Tuesday")
}
