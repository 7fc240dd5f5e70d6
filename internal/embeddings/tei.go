package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
)

// TEIConfig configures a text-embeddings-inference backend.
type TEIConfig struct {
	BaseURL string
	Model   string
	// APIKey is sent as a bearer token when set (Inference Endpoints).
	APIKey  config.Secret
	Timeout time.Duration
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: tei base URL required", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider calls POST {BaseURL}/embed on a HuggingFace
// text-embeddings-inference server. It serves any model TEI can load,
// including the camembert sentence models.
type TEIProvider struct {
	config    TEIConfig
	client    *http.Client
	dimension int
}

type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// NewTEIProvider creates a TEI provider.
func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	dim, _ := KnownDimension(cfg.Model)
	return &TEIProvider{
		config:    cfg,
		client:    &http.Client{Timeout: timeout},
		dimension: dim,
	}, nil
}

// Embed sends the whole batch in one request.
func (p *TEIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey.Value())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: tei status %d: %s", ErrModelUnavailable, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding tei response: %v", ErrModelUnavailable, err)
	}
	return vectors, nil
}

func (p *TEIProvider) Dimension() int { return p.dimension }

func (p *TEIProvider) Model() string { return p.config.Model }

// Close drops idle keep-alive connections.
func (p *TEIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
