// Package slack provides the chat edge: request signature verification,
// a thin client over the Slack Web API, and progress reporting for
// in-flight work items.
package slack

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	goslack "github.com/slack-go/slack"
)

// ErrUnauthorized is returned for every verification failure. The cause is
// deliberately not distinguished: missing header, stale timestamp, and bad
// digest all look identical to the caller.
var ErrUnauthorized = errors.New("request verification failed")

// Verifier validates inbound request signatures using the platform's
// v0 HMAC-SHA256 scheme over "v0:{timestamp}:{body}".
type Verifier struct {
	signingSecret string
	replayWindow  time.Duration
	now           func() time.Time
}

// NewVerifier creates a Verifier with the given signing secret and replay
// window. Requests whose timestamp differs from the current time by more
// than the window are rejected regardless of digest validity.
func NewVerifier(signingSecret string, replayWindow time.Duration) *Verifier {
	return &Verifier{
		signingSecret: signingSecret,
		replayWindow:  replayWindow,
		now:           time.Now,
	}
}

// Verify checks the signature headers against the raw request body. The body
// must be the exact bytes received on the wire, before any JSON decoding.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	ts := header.Get("X-Slack-Request-Timestamp")
	if ts == "" {
		return ErrUnauthorized
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrUnauthorized
	}

	age := v.now().Sub(time.Unix(unix, 0))
	if age > v.replayWindow || age < -v.replayWindow {
		return ErrUnauthorized
	}

	sv, err := goslack.NewSecretsVerifier(header, v.signingSecret)
	if err != nil {
		return ErrUnauthorized
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("failed to hash request body: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return ErrUnauthorized
	}
	return nil
}
