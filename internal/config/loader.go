package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Defaults returns the built-in configuration values keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"server.host":             "0.0.0.0",
		"server.port":             8000,
		"server.shutdown_timeout": 10 * time.Second,

		"auth.expected_token": "test",

		"embeddings.provider":   EmbeddingProviderFastEmbed,
		"embeddings.model":      "BAAI/bge-base-en-v1.5",
		"embeddings.base_url":   "http://localhost:8080",
		"embeddings.cache_dir":  "local_cache",
		"embeddings.batch_size": 256,
		"embeddings.rate_limit": 0.0,

		"vectordb.provider":          VectorDBProviderQdrant,
		"vectordb.endpoint":          "http://localhost:6334",
		"vectordb.keyspace":          "vector",
		"vectordb.collection":        "fr_site",
		"vectordb.dimension":         768,
		"vectordb.metric":            MetricCosine,
		"vectordb.default_limit":     10,
		"vectordb.create_collection": false,
		"vectordb.timeout":           10 * time.Second,

		"logging.level":  "info",
		"logging.format": "json",

		"telemetry.enabled":      false,
		"telemetry.endpoint":     "localhost:4317",
		"telemetry.protocol":     "grpc",
		"telemetry.insecure":     true,
		"telemetry.service_name": "llmsearch",
		"telemetry.sample_rate":  1.0,
	}
}

// EnvKeys maps environment variable names to configuration keys.
// Variables not listed here are ignored.
var EnvKeys = map[string]string{
	"SERVER_HOST":             "server.host",
	"SERVER_PORT":             "server.port",
	"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"EXPECTED_POST_TOKEN": "auth.expected_token",

	"EMBEDDING_PROVIDER":   "embeddings.provider",
	"MODEL_NAME":           "embeddings.model",
	"EMBEDDING_BASE_URL":   "embeddings.base_url",
	"EMBEDDING_API_KEY":    "embeddings.api_key",
	"EMBEDDING_CACHE_DIR":  "embeddings.cache_dir",
	"EMBEDDING_BATCH_SIZE": "embeddings.batch_size",
	"EMBEDDING_RATE_LIMIT": "embeddings.rate_limit",

	"VECTORDB_PROVIDER":          "vectordb.provider",
	"VECTORDB_API_ENDPOINT":      "vectordb.endpoint",
	"VECTORDB_APPLICATION_TOKEN": "vectordb.token",
	"VECTORDB_KEYSPACE":          "vectordb.keyspace",
	"VECTORDB_COLLECTION":        "vectordb.collection",
	"VECTORDB_DIMENSION":         "vectordb.dimension",
	"VECTORDB_METRIC":            "vectordb.metric",
	"VECTORDB_LIMIT":             "vectordb.default_limit",
	"VECTORDB_CREATE_COLLECTION": "vectordb.create_collection",
	"VECTORDB_CHROMEM_PATH":      "vectordb.chromem_path",
	"VECTORDB_TIMEOUT":           "vectordb.timeout",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",

	"OTEL_ENABLE":                 "telemetry.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL": "telemetry.protocol",
	"OTEL_EXPORTER_OTLP_INSECURE": "telemetry.insecure",
	"OTEL_SERVICE_NAME":           "telemetry.service_name",
	"OTEL_TRACES_SAMPLER_ARG":     "telemetry.sample_rate",
}

// LegacyEnvKeys maps the Astra DB variable names of earlier deployments
// onto the vectordb keys. The VECTORDB_* name wins when both are set.
var LegacyEnvKeys = map[string]string{
	"ASTRA_DB_API_ENDPOINT":      "vectordb.endpoint",
	"ASTRA_DB_APPLICATION_TOKEN": "vectordb.token",
	"ASTRA_DB_KEYSPACE":          "vectordb.keyspace",
	"ASTRA_DB_COLLECTION":        "vectordb.collection",
	"ASTRA_DB_DIMENSION":         "vectordb.dimension",
	"ASTRA_DB_METRIC":            "vectordb.metric",
	"ASTRA_DB_LIMIT":             "vectordb.default_limit",
}

// DotEnvPath is the env file Load reads: $ENV_FILE, or .env in the working
// directory.
func DotEnvPath() string {
	if p := os.Getenv("ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// readDotEnv returns the variables of the env file at path. A missing file
// yields nil.
func readDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return vars, nil
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, the env file (see DotEnvPath) and the environment, then
// validates it. Real environment variables override the env file, and
// names in EnvKeys override their LegacyEnvKeys aliases.
//
// An environment variable that is set to the empty string still overrides
// the default; EXPECTED_POST_TOKEN="" configures an empty token.
//
// The YAML file must be owner-only (0600 or 0400) and at most 1MB.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	dotenv, err := readDotEnv(DotEnvPath())
	if err != nil {
		return nil, err
	}
	layers := []map[string]string{LegacyEnvKeys, EnvKeys}
	for _, names := range layers {
		for name, key := range names {
			if val, ok := dotenv[name]; ok {
				if err := k.Set(key, val); err != nil {
					return nil, fmt.Errorf("failed to set %s from env file: %w", name, err)
				}
			}
		}
	}
	for _, names := range layers {
		if err := k.Load(env.Provider("", ".", func(s string) string {
			return names[s]
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a stat/open race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	// Windows has a different permission model.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
