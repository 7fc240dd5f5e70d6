package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so ambient values cannot leak
// in, and points ENV_FILE at a file that does not exist.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range []map[string]string{EnvKeys, LegacyEnvKeys} {
		for name := range names {
			if val, ok := os.LookupEnv(name); ok {
				t.Setenv(name, val)
				require.NoError(t, os.Unsetenv(name))
			}
		}
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
}

func writeDotEnv(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "test", cfg.Auth.ExpectedToken.Value())
	assert.Equal(t, EmbeddingProviderFastEmbed, cfg.Embeddings.Provider)
	assert.Equal(t, "BAAI/bge-base-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, VectorDBProviderQdrant, cfg.VectorDB.Provider)
	assert.Equal(t, "vector", cfg.VectorDB.Keyspace)
	assert.Equal(t, "fr_site", cfg.VectorDB.Collection)
	assert.Equal(t, 768, cfg.VectorDB.Dimension)
	assert.Equal(t, MetricCosine, cfg.VectorDB.Metric)
	assert.Equal(t, 10, cfg.VectorDB.DefaultLimit)
	assert.False(t, cfg.VectorDB.Token.IsSet())
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VECTORDB_API_ENDPOINT", "https://db.example.com:6334")
	t.Setenv("VECTORDB_APPLICATION_TOKEN", "db-secret")
	t.Setenv("VECTORDB_COLLECTION", "en_site")
	t.Setenv("VECTORDB_DIMENSION", "384")
	t.Setenv("VECTORDB_METRIC", "dot_product")
	t.Setenv("VECTORDB_LIMIT", "25")
	t.Setenv("VECTORDB_TIMEOUT", "3s")
	t.Setenv("EXPECTED_POST_TOKEN", "s3cret")
	t.Setenv("MODEL_NAME", "BAAI/bge-small-en-v1.5")
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("EMBEDDING_RATE_LIMIT", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://db.example.com:6334", cfg.VectorDB.Endpoint)
	assert.Equal(t, "db-secret", cfg.VectorDB.Token.Value())
	assert.Equal(t, "en_site", cfg.VectorDB.Collection)
	assert.Equal(t, 384, cfg.VectorDB.Dimension)
	assert.Equal(t, MetricDotProduct, cfg.VectorDB.Metric)
	assert.Equal(t, 25, cfg.VectorDB.DefaultLimit)
	assert.Equal(t, 3*time.Second, cfg.VectorDB.Timeout)
	assert.Equal(t, "s3cret", cfg.Auth.ExpectedToken.Value())
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2.5, cfg.Embeddings.RateLimit)
}

func TestLoad_EmptyTokenOverridesDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPECTED_POST_TOKEN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Auth.ExpectedToken.Value())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 8100
vectordb:
  provider: chromem
  collection: from_file
  default_limit: 5
`, 0600)

	t.Run("file values apply", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8100, cfg.Server.Port)
		assert.Equal(t, VectorDBProviderChromem, cfg.VectorDB.Provider)
		assert.Equal(t, "from_file", cfg.VectorDB.Collection)
		assert.Equal(t, 5, cfg.VectorDB.DefaultLimit)
		// untouched keys keep their defaults
		assert.Equal(t, 768, cfg.VectorDB.Dimension)
	})

	t.Run("env beats file", func(t *testing.T) {
		t.Setenv("VECTORDB_COLLECTION", "from_env")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from_env", cfg.VectorDB.Collection)
	})
}

func TestLoad_FileRejected(t *testing.T) {
	clearEnv(t)

	t.Run("world readable", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 8100\n", 0644)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insecure config file permissions")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "vectordb:\n  metric: manhattan\n", 0600)
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoad_DotEnvInWorkingDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", "")
	dir := t.TempDir()
	writeDotEnv(t, dir, "EXPECTED_POST_TOKEN=fromdotenv\nVECTORDB_LIMIT=7\n")
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Auth.ExpectedToken.Value())
	assert.Equal(t, 7, cfg.VectorDB.DefaultLimit)
}

func TestLoad_DotEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeDotEnv(t, t.TempDir(), "EXPECTED_POST_TOKEN=fromdotenv\nMODEL_NAME=BAAI/bge-small-en-v1.5\nVECTORDB_COLLECTION=en_site\n")
	t.Setenv("ENV_FILE", path)
	t.Setenv("EXPECTED_POST_TOKEN", "fromenv")
	t.Setenv("ASTRA_DB_COLLECTION", "legacy_site")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Auth.ExpectedToken.Value())
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	// A real variable beats the env file even under its legacy name.
	assert.Equal(t, "legacy_site", cfg.VectorDB.Collection)
}

func TestLoad_DotEnvMissingIsIgnored(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Auth.ExpectedToken.Value())
}

func TestLoad_DotEnvUnreadable(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", t.TempDir())

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env file")
}

func TestLoad_LegacyAstraNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASTRA_DB_API_ENDPOINT", "https://astra.example.com:6334")
	t.Setenv("ASTRA_DB_APPLICATION_TOKEN", "astra-secret")
	t.Setenv("ASTRA_DB_KEYSPACE", "search")
	t.Setenv("ASTRA_DB_COLLECTION", "en_site")
	t.Setenv("ASTRA_DB_DIMENSION", "384")
	t.Setenv("ASTRA_DB_METRIC", "euclidean")
	t.Setenv("ASTRA_DB_LIMIT", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://astra.example.com:6334", cfg.VectorDB.Endpoint)
	assert.Equal(t, "astra-secret", cfg.VectorDB.Token.Value())
	assert.Equal(t, "search", cfg.VectorDB.Keyspace)
	assert.Equal(t, "en_site", cfg.VectorDB.Collection)
	assert.Equal(t, 384, cfg.VectorDB.Dimension)
	assert.Equal(t, MetricEuclidean, cfg.VectorDB.Metric)
	assert.Equal(t, 25, cfg.VectorDB.DefaultLimit)
}

func TestLoad_CurrentNamesBeatLegacy(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASTRA_DB_LIMIT", "25")
	t.Setenv("VECTORDB_LIMIT", "40")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.VectorDB.DefaultLimit)
}
