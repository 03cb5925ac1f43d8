// Package agent invokes the foundation-model agent runtime with streaming
// response assembly, trace normalization, and retry semantics, and drives
// per-item progress reporting for chat-originated work.
package agent

import (
	"fmt"
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// SessionKey derives the stable agent session identifier for a work item.
//
// Chat items are thread-scoped ({user}:{channel}:{thread}) so follow-on
// messages in the same thread continue the same agent context, and each
// user inside a shared thread keeps a distinct session. Without thread
// context the scope falls back to the channel. Webhook items get a fresh
// session per invocation: correlation id plus start epoch.
func SessionKey(item *models.WorkItem, now time.Time) string {
	switch {
	case item.Chat != nil && item.Chat.ThreadTS != "":
		return fmt.Sprintf("%s:%s:%s", item.Chat.UserID, item.Chat.ChannelID, item.Chat.ThreadTS)
	case item.Chat != nil:
		return fmt.Sprintf("%s:%s", item.Chat.UserID, item.Chat.ChannelID)
	default:
		return fmt.Sprintf("%s:%d", item.ConversationID(), now.Unix())
	}
}
