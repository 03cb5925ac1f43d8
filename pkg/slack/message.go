package slack

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// StripMention removes bot-mention tokens from a message and normalizes
// whitespace, producing the standardized user query.
func StripMention(text string) string {
	stripped := mentionPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

// EventKey builds the deduplication key for an inbound event. The platform
// may redeliver the same event; channel plus event ts uniquely identify it.
func EventKey(channelID, eventTS string) string {
	return channelID + ":" + eventTS
}

// ThreadTS resolves the reply thread for a mention: an in-thread mention
// replies to its thread, a top-level mention starts a thread on itself.
func ThreadTS(eventThreadTS, eventTS string) string {
	if eventThreadTS != "" {
		return eventThreadTS
	}
	return eventTS
}
