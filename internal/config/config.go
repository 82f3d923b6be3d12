// Copyright 2026 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the recall service configuration from a
// YAML file, with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree.
type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	ContentStore ContentStoreConfig `yaml:"content_store"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Queue        QueueConfig        `yaml:"queue"`
	Embeddings   EmbeddingsConfig   `yaml:"embeddings"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Moderation   ModerationConfig   `yaml:"moderation"`
	Search       SearchConfig       `yaml:"search"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServiceConfig covers the HTTP surface.
type ServiceConfig struct {
	Host        string     `yaml:"host"`
	Port        int        `yaml:"port"`
	Environment string     `yaml:"environment"`
	Auth        AuthConfig `yaml:"auth"`
}

// AuthConfig holds the optional access-key gate. Two keys allow rotation
// without downtime.
type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Header     string `yaml:"header"`
	AccessKey1 string `yaml:"access_key1"`
	AccessKey2 string `yaml:"access_key2"`
}

// ContentStoreConfig locates the document file store.
type ContentStoreConfig struct {
	Root string `yaml:"root"`
}

// VectorStoreConfig selects the vector backend.
type VectorStoreConfig struct {
	// Type is one of "memory", "qdrant", "postgres".
	Type     string         `yaml:"type"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// QdrantConfig connects to a Qdrant instance over gRPC.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// PostgresConfig connects to a pgvector-enabled Postgres.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// QueueConfig selects the step-queue backend.
type QueueConfig struct {
	// Type is one of "memory", "pulsar". Memory queues confine the
	// distributed orchestrator to a single process.
	Type        string        `yaml:"type"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Pulsar      PulsarConfig  `yaml:"pulsar"`
}

// PulsarConfig connects to an Apache Pulsar cluster.
type PulsarConfig struct {
	URL          string `yaml:"url"`
	Subscription string `yaml:"subscription"`
	TopicPrefix  string `yaml:"topic_prefix"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Type is one of "mock", "openai", "ollama".
	Type       string `yaml:"type"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Workers    int    `yaml:"workers"`
}

// GeneratorConfig selects the text generation provider.
type GeneratorConfig struct {
	// Type is one of "mock", "openai", "ollama".
	Type           string        `yaml:"type"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	MaxInputTokens int           `yaml:"max_input_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ModerationConfig gates generated answers.
type ModerationConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// SearchConfig bounds retrieval and answering.
type SearchConfig struct {
	MaxMatchesCount int     `yaml:"max_matches_count"`
	AnswerTokens    int     `yaml:"answer_tokens"`
	MinRelevance    float64 `yaml:"min_relevance"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
}

// PipelineConfig bounds ingestion.
type PipelineConfig struct {
	// Orchestration is "inprocess" or "distributed".
	Orchestration string `yaml:"orchestration"`

	// Steps overrides the default ingestion plan.
	Steps []string `yaml:"steps"`

	MaxTokensPerLine      int `yaml:"max_tokens_per_line"`
	MaxTokensPerParagraph int `yaml:"max_tokens_per_paragraph"`
	OverlapTokens         int `yaml:"overlap_tokens"`
	SummaryMaxTokens      int `yaml:"summary_max_tokens"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: a fully
// local single-process setup.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults, env-overrides, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Host == "" {
		c.Service.Host = "0.0.0.0"
	}
	if c.Service.Port == 0 {
		c.Service.Port = 9001
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}
	if c.Service.Auth.Header == "" {
		c.Service.Auth.Header = "Authorization"
	}
	if c.ContentStore.Root == "" {
		c.ContentStore.Root = "./data/content"
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "memory"
	}
	if c.VectorStore.Qdrant.Port == 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 5 * time.Second
	}
	if c.Queue.Pulsar.Subscription == "" {
		c.Queue.Pulsar.Subscription = "recall-workers"
	}
	if c.Embeddings.Type == "" {
		c.Embeddings.Type = "mock"
	}
	if c.Embeddings.Workers == 0 {
		c.Embeddings.Workers = 4
	}
	if c.Generator.Type == "" {
		c.Generator.Type = "mock"
	}
	if c.Search.MaxMatchesCount == 0 {
		c.Search.MaxMatchesCount = 100
	}
	if c.Search.AnswerTokens == 0 {
		c.Search.AnswerTokens = 300
	}
	if c.Pipeline.Orchestration == "" {
		c.Pipeline.Orchestration = "inprocess"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnv overrides secrets from the environment, so keys never need to
// live in the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("RECALL_OPENAI_API_KEY"); v != "" {
		if c.Embeddings.APIKey == "" {
			c.Embeddings.APIKey = v
		}
		if c.Generator.APIKey == "" {
			c.Generator.APIKey = v
		}
		if c.Moderation.APIKey == "" {
			c.Moderation.APIKey = v
		}
	}
	if v := os.Getenv("RECALL_ACCESS_KEY1"); v != "" {
		c.Service.Auth.AccessKey1 = v
	}
	if v := os.Getenv("RECALL_ACCESS_KEY2"); v != "" {
		c.Service.Auth.AccessKey2 = v
	}
	if v := os.Getenv("RECALL_POSTGRES_DSN"); v != "" {
		c.VectorStore.Postgres.DSN = v
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	switch c.VectorStore.Type {
	case "memory", "qdrant", "postgres":
	default:
		return fmt.Errorf("vector_store.type %q: must be memory, qdrant, or postgres", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "postgres" && c.VectorStore.Postgres.DSN == "" {
		return fmt.Errorf("vector_store.postgres.dsn is required for the postgres backend")
	}

	switch c.Queue.Type {
	case "memory", "pulsar":
	default:
		return fmt.Errorf("queue.type %q: must be memory or pulsar", c.Queue.Type)
	}
	if c.Queue.Type == "pulsar" && c.Queue.Pulsar.URL == "" {
		return fmt.Errorf("queue.pulsar.url is required for the pulsar backend")
	}

	switch c.Pipeline.Orchestration {
	case "inprocess", "distributed":
	default:
		return fmt.Errorf("pipeline.orchestration %q: must be inprocess or distributed", c.Pipeline.Orchestration)
	}

	if c.Service.Auth.Enabled {
		if c.Service.Auth.AccessKey1 == "" || c.Service.Auth.AccessKey2 == "" {
			return fmt.Errorf("auth is enabled but both access keys are not set")
		}
		if c.IsProduction() && c.Service.Auth.AccessKey1 == c.Service.Auth.AccessKey2 {
			return fmt.Errorf("access keys must be distinct in production")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn, or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: must be text or json", c.Logging.Format)
	}
	return nil
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Service.Environment, "production")
}

// ListenAddr returns the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}
