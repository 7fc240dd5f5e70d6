// Package embeddings turns text into L2-normalized dense vectors.
//
// A Provider wraps one model backend (local ONNX via fastembed, a
// text-embeddings-inference server, or an OpenAI-compatible API). Service
// sits in front of the provider and owns normalization, validation and
// metrics; HTTP handlers only ever talk to Service.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrModelUnavailable wraps every failure to produce embeddings:
	// model not loaded, backend unreachable, or a malformed result.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")
)

// Provider produces one raw vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the model's native vector size, 0 if unknown.
	Dimension() int
	Model() string
	Close() error
}

// ProviderConfig holds configuration for creating a Provider.
type ProviderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    config.Secret
	CacheDir  string
	BatchSize int
	Timeout   time.Duration
	// RateLimit caps remote calls per second; 0 disables the limit.
	RateLimit float64
}

// ProviderConfigFrom maps the daemon configuration onto a ProviderConfig.
func ProviderConfigFrom(cfg config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		CacheDir:  cfg.CacheDir,
		BatchSize: cfg.BatchSize,
		RateLimit: cfg.RateLimit,
	}
}

// NewProvider creates the provider named by cfg.Provider.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case config.EmbeddingProviderFastEmbed, "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:     cfg.Model,
			CacheDir:  cfg.CacheDir,
			BatchSize: cfg.BatchSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.EmbeddingProviderTEI:
		p, err := NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return RateLimited(p, cfg.RateLimit), nil
	case config.EmbeddingProviderOpenAI:
		p, err := NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return RateLimited(p, cfg.RateLimit), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// knownDimensions lists native sizes of models commonly served here.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"dangvantuan/sentence-camembert-base":    768,
	"dangvantuan/sentence-camembert-large":   1024,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
}

// KnownDimension returns the native dimension of a well-known model.
func KnownDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

// Unavailable returns a Provider whose every call fails with
// ErrModelUnavailable. The daemon installs it when the real model cannot
// be loaded so the rest of the API keeps serving.
func Unavailable(model string, cause error) Provider {
	return &unavailableProvider{model: model, cause: cause}
}

type unavailableProvider struct {
	model string
	cause error
}

func (p *unavailableProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, p.cause)
}

func (p *unavailableProvider) Dimension() int { return 0 }
func (p *unavailableProvider) Model() string  { return p.model }
func (p *unavailableProvider) Close() error   { return nil }
