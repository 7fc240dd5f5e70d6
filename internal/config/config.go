// Package config provides configuration loading for llmsearch.
//
// Values come from four layers, later layers winning:
//
//  1. Built-in defaults (see Defaults)
//  2. An optional YAML file passed to Load
//  3. The env file, .env unless ENV_FILE names another (see DotEnvPath)
//  4. Environment variables (see EnvKeys)
//
// EXPECTED_POST_TOKEN and MODEL_NAME keep their historical names, and the
// ASTRA_DB_* variables of older deployments are read as aliases of the
// VECTORDB_* ones (see LegacyEnvKeys).
//
// The default model is the English BAAI/bge-base-en-v1.5 run locally by
// fastembed. The fr_site collection of earlier deployments was indexed with
// dangvantuan/sentence-camembert-base; querying it needs that model, served
// through the tei provider (EMBEDDING_PROVIDER=tei,
// MODEL_NAME=dangvantuan/sentence-camembert-base, VECTORDB_DIMENSION=768),
// since vectors from different models are not comparable.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/sanitize"
)

// Supported embedding providers.
const (
	EmbeddingProviderFastEmbed = "fastembed"
	EmbeddingProviderTEI       = "tei"
	EmbeddingProviderOpenAI    = "openai"
)

// Supported vector database providers.
const (
	VectorDBProviderQdrant   = "qdrant"
	VectorDBProviderPinecone = "pinecone"
	VectorDBProviderChromem  = "chromem"
)

// Supported similarity metrics.
const (
	MetricCosine     = "cosine"
	MetricDotProduct = "dot_product"
	MetricEuclidean  = "euclidean"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete daemon configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Auth       AuthConfig       `koanf:"auth"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	VectorDB   VectorDBConfig   `koanf:"vectordb"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds the shared secret that unlocks unmasked search results.
// An empty token is a legitimate value.
type AuthConfig struct {
	ExpectedToken Secret `koanf:"expected_token"`
}

// EmbeddingsConfig selects and configures the embedding model.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	CacheDir  string `koanf:"cache_dir"`
	BatchSize int    `koanf:"batch_size"`
	// RateLimit caps calls per second to remote providers; 0 is unlimited.
	RateLimit float64 `koanf:"rate_limit"`
}

// VectorDBConfig selects and configures the vector database.
type VectorDBConfig struct {
	Provider         string        `koanf:"provider"`
	Endpoint         string        `koanf:"endpoint"`
	Token            Secret        `koanf:"token"`
	Keyspace         string        `koanf:"keyspace"`
	Collection       string        `koanf:"collection"`
	Dimension        int           `koanf:"dimension"`
	Metric           string        `koanf:"metric"`
	DefaultLimit     int           `koanf:"default_limit"`
	CreateCollection bool          `koanf:"create_collection"`
	ChromemPath      string        `koanf:"chromem_path"`
	Timeout          time.Duration `koanf:"timeout"`
}

// LoggingConfig is the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed to operators.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Embeddings.Provider {
	case EmbeddingProviderFastEmbed:
	case EmbeddingProviderTEI, EmbeddingProviderOpenAI:
		if _, err := url.ParseRequestURI(c.Embeddings.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("embeddings.base_url is not a valid URL: %q", c.Embeddings.BaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings.provider %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Model == "" {
		errs = append(errs, errors.New("embeddings.model is required"))
	}
	if c.Embeddings.BatchSize <= 0 {
		errs = append(errs, errors.New("embeddings.batch_size must be positive"))
	}
	if c.Embeddings.RateLimit < 0 {
		errs = append(errs, errors.New("embeddings.rate_limit must not be negative"))
	}

	switch c.VectorDB.Provider {
	case VectorDBProviderQdrant, VectorDBProviderPinecone:
		if c.VectorDB.Endpoint == "" {
			errs = append(errs, fmt.Errorf("vectordb.endpoint is required for %s", c.VectorDB.Provider))
		}
	case VectorDBProviderChromem:
	default:
		errs = append(errs, fmt.Errorf("unknown vectordb.provider %q", c.VectorDB.Provider))
	}
	if err := sanitize.ValidateName(c.VectorDB.Collection, "vectordb.collection"); err != nil {
		errs = append(errs, err)
	}
	if c.VectorDB.Keyspace != "" {
		if err := sanitize.ValidateName(c.VectorDB.Keyspace, "vectordb.keyspace"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.VectorDB.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("vectordb.dimension must be positive, got %d", c.VectorDB.Dimension))
	}
	if c.VectorDB.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("vectordb.default_limit must be positive, got %d", c.VectorDB.DefaultLimit))
	}
	switch c.VectorDB.Metric {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
	default:
		errs = append(errs, fmt.Errorf("unknown vectordb.metric %q", c.VectorDB.Metric))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol))
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
