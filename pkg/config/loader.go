package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// relayYAML is the on-disk shape of relay.yaml.
type relayYAML struct {
	Slack       *SlackConfig       `yaml:"slack"`
	Agent       *AgentConfig       `yaml:"agent"`
	ObjectStore *ObjectStoreConfig `yaml:"object_store"`
	Delivery    *DeliveryConfig    `yaml:"delivery"`
	Queue       *QueueConfig       `yaml:"queue"`
	Masking     *MaskingConfig     `yaml:"masking"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Read relay.yaml from configDir
//  2. Expand environment variables ({{.VAR}} template syntax)
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Validate the result
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"delivery_targets", len(cfg.Delivery.Targets),
		"invoker_workers", cfg.Queue.WorkerCount,
		"delivery_workers", cfg.Delivery.WorkerCount)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	var userCfg relayYAML
	if err := loadYAML(filepath.Join(configDir, "relay.yaml"), &userCfg); err != nil {
		return nil, NewLoadError("relay.yaml", err)
	}

	cfg := &Config{
		configDir:   configDir,
		Slack:       DefaultSlackConfig(),
		Agent:       DefaultAgentConfig(),
		ObjectStore: DefaultObjectStoreConfig(),
		Delivery:    DefaultDeliveryConfig(),
		Queue:       DefaultQueueConfig(),
		Masking:     DefaultMaskingConfig(),
	}

	// Merge user-provided sections into defaults (non-zero values override).
	if userCfg.Slack != nil {
		if err := mergo.Merge(cfg.Slack, userCfg.Slack, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge slack config: %w", err)
		}
	}
	if userCfg.Agent != nil {
		if err := mergo.Merge(cfg.Agent, userCfg.Agent, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge agent config: %w", err)
		}
	}
	if userCfg.ObjectStore != nil {
		if err := mergo.Merge(cfg.ObjectStore, userCfg.ObjectStore, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge object_store config: %w", err)
		}
	}
	if userCfg.Delivery != nil {
		if err := mergo.Merge(cfg.Delivery, userCfg.Delivery, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge delivery config: %w", err)
		}
	}
	if userCfg.Queue != nil {
		if err := mergo.Merge(cfg.Queue, userCfg.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}
	if userCfg.Masking != nil {
		if err := mergo.Merge(cfg.Masking, userCfg.Masking, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge masking config: %w", err)
		}
	}

	return cfg, nil
}

func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}
