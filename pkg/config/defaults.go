package config

import "time"

// QueueConfig contains queue and worker pool configuration for the
// agent-invoker consumer pool. Work items are polled, claimed, and processed
// one at a time per worker.
type QueueConfig struct {
	// WorkerCount is the number of invoker goroutines per replica/pod.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentSessions is the global limit of concurrently processing
	// work items across all replicas, enforced by a database count check.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`

	// PollInterval is the base interval for checking pending work items.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// SessionTimeout is the end-to-end budget for one work item: agent call,
	// classification, and delivery enqueue.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active sessions
	// to complete during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// HeartbeatInterval is how often a worker refreshes the claim heartbeat
	// of the item it is processing.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// OrphanDetectionInterval is how often to scan for orphaned work items.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a claimed item can go without a heartbeat
	// before it is requeued.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentSessions:   5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		SessionTimeout:          5 * time.Minute,
		GracefulShutdownTimeout: 5 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
	}
}

// DefaultSlackConfig returns the built-in chat-edge defaults.
func DefaultSlackConfig() *SlackConfig {
	return &SlackConfig{
		DedupWindow:      10 * time.Minute,
		ProgressThrottle: 2 * time.Second,
		ReplayWindow:     5 * time.Minute,
		APITimeout:       10 * time.Second,
	}
}

// DefaultAgentConfig returns the built-in agent runtime defaults.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		Region:      "us-east-1",
		ReadTimeout: 240 * time.Second,
		MaxAttempts: 2,
	}
}

// DefaultObjectStoreConfig returns the built-in artifact store defaults.
func DefaultObjectStoreConfig() *ObjectStoreConfig {
	return &ObjectStoreConfig{
		Region:       "us-east-1",
		Prefix:       "conversation-history",
		WriteTimeout: 30 * time.Second,
	}
}

// DefaultRetryPolicyConfig returns the built-in delivery backoff defaults.
func DefaultRetryPolicyConfig() *RetryPolicyConfig {
	return &RetryPolicyConfig{
		BaseDelay:      1 * time.Second,
		Multiplier:     2.0,
		Cap:            300 * time.Second,
		MaxAttempts:    5,
		JitterFraction: 0.1,
	}
}

// DefaultMaskingConfig returns the built-in artifact masking defaults.
func DefaultMaskingConfig() *MaskingConfig {
	return &MaskingConfig{
		PatternGroup: "secrets",
	}
}

// DefaultDeliveryConfig returns the built-in delivery engine defaults.
func DefaultDeliveryConfig() *DeliveryConfig {
	return &DeliveryConfig{
		Retry:          DefaultRetryPolicyConfig(),
		RequestTimeout: 30 * time.Second,
		WorkerCount:    3,
		PollInterval:   1 * time.Second,
	}
}
