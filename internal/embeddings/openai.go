package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIConfig configures an OpenAI-compatible /embeddings backend
// (OpenAI itself, vLLM, Ollama, LiteLLM and similar gateways).
type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  config.Secret
	Timeout time.Duration
}

// OpenAIProvider embeds through the official openai-go client.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates an OpenAI-compatible provider. The SDK's own
// retries are disabled; a failed call surfaces immediately.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: openai model required", ErrInvalidConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey.IsSet() {
		opts = append(opts, option.WithAPIKey(cfg.APIKey.Value()))
	}

	dim, _ := KnownDimension(cfg.Model)
	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: dim,
	}, nil
}

// Embed sends the batch in one request and reorders the response by index.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(p.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrModelUnavailable, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad embedding index %d", ErrModelUnavailable, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

func (p *OpenAIProvider) Dimension() int { return p.dimension }

func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Close() error { return nil }
