// Package config loads and validates relay configuration from YAML with
// environment expansion, merging user values over built-in defaults.
package config

import (
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// Config is the umbrella configuration object returned by Initialize and
// handed to the composition root.
type Config struct {
	configDir string

	Slack       *SlackConfig       `yaml:"slack"`
	Agent       *AgentConfig       `yaml:"agent"`
	ObjectStore *ObjectStoreConfig `yaml:"object_store"`
	Delivery    *DeliveryConfig    `yaml:"delivery"`
	Queue       *QueueConfig       `yaml:"queue"`
	Masking     *MaskingConfig     `yaml:"masking"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// SlackConfig holds chat-edge settings. SigningSecret and BotToken arrive
// through {{.VAR}} env expansion in relay.yaml, never as literals.
type SlackConfig struct {
	SigningSecret string `yaml:"signing_secret"`
	BotToken      string `yaml:"bot_token"`

	// DedupWindow bounds how long a redelivered event id is recognized as a
	// duplicate.
	DedupWindow time.Duration `yaml:"dedup_window"`

	// ProgressThrottle is the minimum interval between progress updates on
	// the placeholder message.
	ProgressThrottle time.Duration `yaml:"progress_throttle"`

	// ReplayWindow bounds the accepted age of a signed request timestamp.
	ReplayWindow time.Duration `yaml:"replay_window"`

	// APITimeout bounds individual chat-platform API calls.
	APITimeout time.Duration `yaml:"api_timeout"`
}

// AgentConfig addresses the managed agent runtime.
type AgentConfig struct {
	AgentID      string `yaml:"agent_id"`
	AgentAliasID string `yaml:"agent_alias_id"`
	Region       string `yaml:"region"`

	// ReadTimeout bounds one streamed invocation end to end.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// MaxAttempts is the invocation attempt budget; only transport and
	// throttling failures consume retries.
	MaxAttempts int `yaml:"max_attempts"`
}

// ObjectStoreConfig is the artifact destination for conversation records.
// Credentials are optional; when unset the ambient AWS credential chain is
// used. Endpoint and path-style addressing support S3-compatible stores.
type ObjectStoreConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// WriteTimeout bounds a single object write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetryPolicyConfig parameterizes the delivery backoff law
// delay(n) = min(base · multiplier^(n−1), cap) with ± jitter_fraction jitter.
type RetryPolicyConfig struct {
	BaseDelay      time.Duration `yaml:"base_delay"`
	Multiplier     float64       `yaml:"multiplier"`
	Cap            time.Duration `yaml:"cap"`
	MaxAttempts    int           `yaml:"max_attempts"`
	JitterFraction float64       `yaml:"jitter_fraction"`
}

// DeliveryConfig configures the outbound delivery engine.
type DeliveryConfig struct {
	// Targets maps intent class → endpoint URL. A missing class routes the
	// job to the dead letter with reason no_target_configured.
	Targets map[string]string `yaml:"targets"`

	Retry *RetryPolicyConfig `yaml:"retry"`

	// RequestTimeout bounds one delivery POST attempt.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// WorkerCount sizes the delivery consumer pool, independent of the
	// agent-invoker pool.
	WorkerCount int `yaml:"worker_count"`

	// PollInterval is the base interval for checking ready delivery jobs.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MaskingConfig selects the pattern group applied to exported conversation
// artifacts. The group "none" disables masking.
type MaskingConfig struct {
	PatternGroup string `yaml:"pattern_group"`
}

// TargetFor returns the configured endpoint for an intent class, or "" when
// no target is configured.
func (d *DeliveryConfig) TargetFor(class models.IntentClass) string {
	if d == nil || d.Targets == nil {
		return ""
	}
	return d.Targets[string(class)]
}
