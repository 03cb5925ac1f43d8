package config

import (
	"fmt"
	"net/url"

	"github.com/revops-ai/relay/pkg/models"
)

// validate performs validation on loaded configuration. Secrets are checked
// for presence only; their values are never logged.
func validate(cfg *Config) error {
	if cfg.Slack.SigningSecret == "" {
		return NewValidationError("slack", "signing_secret", ErrMissingRequiredField)
	}
	if cfg.Slack.BotToken == "" {
		return NewValidationError("slack", "bot_token", ErrMissingRequiredField)
	}
	if cfg.Slack.ReplayWindow <= 0 {
		return NewValidationError("slack", "replay_window", ErrInvalidValue)
	}

	if cfg.Agent.AgentID == "" {
		return NewValidationError("agent", "agent_id", ErrMissingRequiredField)
	}
	if cfg.Agent.AgentAliasID == "" {
		return NewValidationError("agent", "agent_alias_id", ErrMissingRequiredField)
	}
	if cfg.Agent.MaxAttempts < 1 {
		return NewValidationError("agent", "max_attempts", ErrInvalidValue)
	}

	if cfg.ObjectStore.Bucket == "" {
		return NewValidationError("object_store", "bucket", ErrMissingRequiredField)
	}

	if err := validateDelivery(cfg.Delivery); err != nil {
		return err
	}

	if cfg.Queue.WorkerCount < 1 {
		return NewValidationError("queue", "worker_count", ErrInvalidValue)
	}
	if cfg.Queue.SessionTimeout <= 0 {
		return NewValidationError("queue", "session_timeout", ErrInvalidValue)
	}

	if cfg.Masking.PatternGroup == "" {
		return NewValidationError("masking", "pattern_group", ErrMissingRequiredField)
	}

	return nil
}

func validateDelivery(d *DeliveryConfig) error {
	// Targets are optional per class (missing classes dead-letter), but any
	// configured URL must parse as absolute http(s).
	for class, target := range d.Targets {
		if !models.IntentClass(class).Valid() {
			return NewValidationError("delivery", "targets",
				fmt.Errorf("%w: unknown intent class %q", ErrInvalidValue, class))
		}
		u, err := url.Parse(target)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return NewValidationError("delivery", "targets",
				fmt.Errorf("%w: target for %q must be an absolute http(s) URL", ErrInvalidValue, class))
		}
	}

	r := d.Retry
	if r.BaseDelay <= 0 {
		return NewValidationError("delivery", "retry.base_delay", ErrInvalidValue)
	}
	if r.Multiplier < 1 {
		return NewValidationError("delivery", "retry.multiplier", ErrInvalidValue)
	}
	if r.Cap < r.BaseDelay {
		return NewValidationError("delivery", "retry.cap", ErrInvalidValue)
	}
	if r.MaxAttempts < 1 {
		return NewValidationError("delivery", "retry.max_attempts", ErrInvalidValue)
	}
	if r.JitterFraction < 0 || r.JitterFraction >= 1 {
		return NewValidationError("delivery", "retry.jitter_fraction", ErrInvalidValue)
	}

	return nil
}
