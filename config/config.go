// Package config loads the daemon configuration from an optional YAML file
// with environment variable overrides. Environment always wins so deployments
// can keep one file and vary per instance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config aggregates every configurable knob of the service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig describes the HTTP gateway.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WorkflowConfig tunes the coordinator's gates.
type WorkflowConfig struct {
	// SentimentEscalationLabels lists sentiment labels that bypass intent
	// classification and escalate immediately.
	SentimentEscalationLabels []string `yaml:"sentiment_escalation_labels"`

	// IntentConfidenceThreshold is the gate 2 cutoff. Confidence below the
	// threshold escalates; the threshold itself routes.
	IntentConfidenceThreshold float64 `yaml:"intent_confidence_threshold"`
}

// ClassifierConfig selects the classification backend.
type ClassifierConfig struct {
	// Provider is "rule" (default), "openai" or "anthropic".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// TranscriptConfig describes transcript persistence. An empty DSN keeps
// transcripts in memory.
type TranscriptConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LogConfig describes structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Workflow: WorkflowConfig{
			SentimentEscalationLabels: []string{"NEGATIVE", "ANGRY"},
			IntentConfidenceThreshold: 0.7,
		},
		Classifier: ClassifierConfig{Provider: "rule"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result. A missing file at an explicitly given path is an
// error; path == "" skips the file step entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_ADDR")); v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_INTENT_CONFIDENCE_THRESHOLD")); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SUPPORTMESH_INTENT_CONFIDENCE_THRESHOLD: %w", err)
		}
		c.Workflow.IntentConfidenceThreshold = threshold
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_SENTIMENT_ESCALATION_LABELS")); v != "" {
		labels := []string{}
		for _, label := range strings.Split(v, ",") {
			if label = strings.TrimSpace(label); label != "" {
				labels = append(labels, strings.ToUpper(label))
			}
		}
		c.Workflow.SentimentEscalationLabels = labels
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_CLASSIFIER_PROVIDER")); v != "" {
		c.Classifier.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_CLASSIFIER_MODEL")); v != "" {
		c.Classifier.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_POSTGRES_DSN")); v != "" {
		c.Transcript.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTMESH_LOG_FORMAT")); v != "" {
		c.Log.Format = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Workflow.IntentConfidenceThreshold < 0 || c.Workflow.IntentConfidenceThreshold > 1 {
		return fmt.Errorf("intent_confidence_threshold must be in [0,1], got %v",
			c.Workflow.IntentConfidenceThreshold)
	}
	switch c.Classifier.Provider {
	case "", "rule", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
