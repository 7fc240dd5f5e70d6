package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// PineconeConfig configures a Pinecone index connection.
type PineconeConfig struct {
	// Host is the index host shown in the Pinecone console.
	Host string
	// APIKey authenticates every call.
	APIKey config.Secret
	// Namespace partitions the index. Empty is the default namespace.
	Namespace string
	Timeout   time.Duration
}

// Validate validates the configuration.
func (c PineconeConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: pinecone index host required", ErrInvalidConfig)
	}
	if !c.APIKey.IsSet() {
		return fmt.Errorf("%w: pinecone api key required", ErrInvalidConfig)
	}
	return nil
}

// pineconeIndex is the subset of *pinecone.IndexConnection the store uses.
type pineconeIndex interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// PineconeStore implements Store over a Pinecone serverless or pod index.
// Metadata cannot be projected server side, so fields are filtered here.
type PineconeStore struct {
	index  pineconeIndex
	config PineconeConfig
	logger *zap.Logger
}

// NewPineconeStore connects to the index named by cfg.Host.
func NewPineconeStore(cfg PineconeConfig, logger *zap.Logger) (*PineconeStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey.Value()})
	if err != nil {
		return nil, unavailable("creating pinecone client", err)
	}
	idx, err := client.Index(pinecone.NewIndexConnParams{Host: cfg.Host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, unavailable("connecting to pinecone index", err)
	}

	logger.Info("pinecone store initialized",
		zap.String("host", cfg.Host),
		zap.String("namespace", cfg.Namespace),
	)
	return newPineconeStore(idx, cfg, logger), nil
}

func newPineconeStore(idx pineconeIndex, cfg PineconeConfig, logger *zap.Logger) *PineconeStore {
	return &PineconeStore{index: idx, config: cfg, logger: logger}
}

func (s *PineconeStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// maxPineconeTopK is the largest top_k a Pinecone query accepts.
const maxPineconeTopK = 10000

// Search queries by vector values with metadata included. Limits above
// maxPineconeTopK are clamped.
func (s *PineconeStore) Search(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "PineconeStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("namespace", s.config.Namespace),
		attribute.Int("limit", q.Limit),
	)

	if err := q.validate(); err != nil {
		return nil, err
	}
	fields := q.fields()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          q.Vector,
		TopK:            uint32(min(q.Limit, maxPineconeTopK)),
		IncludeMetadata: true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, unavailable("querying pinecone", err)
	}
	if resp == nil {
		return nil, unavailable("querying pinecone", fmt.Errorf("empty response"))
	}

	records := make([]Record, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		var payload map[string]any
		if m.Vector.Metadata != nil {
			payload = m.Vector.Metadata.AsMap()
		}
		records = append(records, project(payload, fields))
		if len(records) == q.Limit {
			break
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(records)))
	span.SetStatus(codes.Ok, "success")
	return records, nil
}

// Health fetches index statistics.
func (s *PineconeStore) Health(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.index.DescribeIndexStats(ctx); err != nil {
		return unavailable("pinecone index stats", err)
	}
	return nil
}

// Close closes the index connection.
func (s *PineconeStore) Close() error {
	return s.index.Close()
}
