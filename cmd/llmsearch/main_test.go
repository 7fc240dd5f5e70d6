package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// teiServer answers /embed with constant 4-dimensional vectors.
func teiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req.Inputs))
		for i := range out {
			out[i] = []float32{1, 2, 2, 0}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, teiURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: freePort(t), ShutdownTimeout: 5 * time.Second},
		Auth:   config.AuthConfig{ExpectedToken: "test"},
		Embeddings: config.EmbeddingsConfig{
			Provider:  config.EmbeddingProviderTEI,
			Model:     "dangvantuan/sentence-camembert-base",
			BaseURL:   teiURL,
			BatchSize: 32,
		},
		VectorDB: config.VectorDBConfig{
			Provider:     config.VectorDBProviderChromem,
			Keyspace:     "vector",
			Collection:   "fr_site",
			Dimension:    4,
			Metric:       config.MetricCosine,
			DefaultLimit: 10,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func waitForServer(t *testing.T, base string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/test/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRun(t *testing.T) {
	cfg := testConfig(t, teiServer(t).URL)
	base := fmt.Sprintf("http://%s", cfg.Server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()
	waitForServer(t, base)

	resp, err := http.Post(base+"/test/embed", "application/json", strings.NewReader(`{"texts": ["bonjour"]}`))
	require.NoError(t, err)
	var embedded struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&embedded))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, embedded.Embeddings, 1)
	assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3, 0}, embedded.Embeddings[0], 1e-6)

	resp, err = http.Post(base+"/search/cosine_score?post_token=test", "application/json", bytes.NewReader([]byte(`{"texts": ["mairie"]}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found struct {
		Results []map[string]string `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	resp.Body.Close()
	assert.Empty(t, found.Results)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, body.String(), "llmsearch_search_requests_total")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestRun_ModelUnavailable(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	base := fmt.Sprintf("http://%s", cfg.Server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()
	waitForServer(t, base)

	resp, err := http.Post(base+"/test/embed", "application/json", strings.NewReader(`{"texts": ["bonjour"]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig(t, teiServer(t).URL)
	cfg.Server.Port = l.Addr().(*net.TCPAddr).Port

	err = run(context.Background(), cfg)
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version:    dev")
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}
