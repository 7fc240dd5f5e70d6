// Package search runs the embed-then-query pipeline behind the search
// endpoints.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/anonymize"
	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"github.com/fyrsmithlabs/llmsearch/internal/vectorstore"
	"go.uber.org/zap"
)

// ErrNoQuery is returned when a request carries no text to search for.
var ErrNoQuery = errors.New("no query text")

// Search modes, one per endpoint. Both run the same pipeline.
const (
	ModeCosine  = "cosine_score"
	ModeKeyword = "like_by_keyword_score"
)

// Embedder turns texts into unit vectors. *embeddings.Service satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Request is one search call.
type Request struct {
	Texts []string
	// Limit has already been resolved with ResolveLimit.
	Limit      int
	Authorized bool
	Mode       string
}

// Service embeds the first query text, queries the store and masks the
// results for unauthorized callers.
type Service struct {
	embedder Embedder
	store    vectorstore.Store
	fields   []string
	metrics  *Metrics
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics sets the Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithFields overrides the returned payload fields.
func WithFields(fields ...string) Option {
	return func(s *Service) { s.fields = fields }
}

// NewService creates a search service.
func NewService(embedder Embedder, store vectorstore.Store, opts ...Option) *Service {
	s := &Service{
		embedder: embedder,
		store:    store,
		fields:   vectorstore.DefaultFields,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Search returns at most req.Limit records in store order. Values are
// masked unless req.Authorized. The whole batch is embedded but only the
// first vector is searched.
func (s *Service) Search(ctx context.Context, req Request) ([]vectorstore.Record, error) {
	if len(req.Texts) == 0 {
		return nil, ErrNoQuery
	}
	if req.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", req.Limit)
	}
	start := time.Now()

	vectors, err := s.embedder.Embed(ctx, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, ErrNoQuery
	}

	logger := logging.ForContext(ctx, s.logger)
	records, err := s.store.Search(ctx, vectorstore.Query{
		Vector: vectors[0],
		Limit:  req.Limit,
		Fields: s.fields,
	})
	if err != nil {
		logger.Error("vector search failed", zap.String("mode", req.Mode), zap.Error(err))
		return nil, fmt.Errorf("searching: %w", err)
	}

	out := make([]vectorstore.Record, len(records))
	for i, rec := range records {
		out[i] = anonymize.Record(rec, req.Authorized)
	}

	s.metrics.record(req.Mode, req.Authorized, len(out))
	logger.Info("search completed",
		zap.String("mode", req.Mode),
		zap.Int("results", len(out)),
		zap.Int("limit", req.Limit),
		zap.Bool("authorized", req.Authorized),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}
