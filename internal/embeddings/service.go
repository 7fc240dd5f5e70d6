package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"go.uber.org/zap"
)

// Service is the only entry point handlers use to embed text. It is
// immutable after construction and safe for concurrent use.
type Service struct {
	provider  Provider
	dimension int
	metrics   *Metrics
	logger    *zap.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService wraps provider. dimension is the vector size every result
// must have; it comes from configuration, not from the model.
func NewService(provider Provider, dimension int, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	s := &Service{provider: provider, dimension: dimension}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if native := provider.Dimension(); native != 0 && native != dimension {
		s.logger.Warn("model dimension does not match configured dimension; every embedding call will fail",
			zap.String("model", provider.Model()),
			zap.Int("model_dimension", native),
			zap.Int("configured_dimension", dimension),
		)
	}
	return s, nil
}

// Embed returns one unit-length vector per text, in input order. An empty
// batch returns an empty result without touching the model.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors, err := s.embed(ctx, texts)
	elapsed := time.Since(start)
	s.metrics.RecordGeneration(ctx, s.provider.Model(), elapsed, len(texts), err)

	logger := logging.ForContext(ctx, s.logger)
	if err != nil {
		logger.Error("embedding failed",
			zap.String("model", s.provider.Model()),
			zap.Int("texts", len(texts)),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Debug("embedded texts",
		zap.Int("texts", len(texts)),
		zap.Duration("duration", elapsed),
	)
	return vectors, nil
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.provider.Embed(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: model returned %d vectors for %d texts", ErrModelUnavailable, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrModelUnavailable, i, len(v), s.dimension)
		}
		Normalize(v)
	}
	return vectors, nil
}

// Dimension returns the configured vector size.
func (s *Service) Dimension() int { return s.dimension }

// Model returns the backing model name.
func (s *Service) Model() string { return s.provider.Model() }

// Close releases the provider.
func (s *Service) Close() error { return s.provider.Close() }
