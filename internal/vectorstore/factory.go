package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// StoreOption configures NewStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger  *zap.Logger
	metrics *Metrics
	breaker *BreakerConfig
}

// WithLogger sets the logger handed to the store.
func WithLogger(l *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = l }
}

// WithMetrics records searches and breaker transitions on m.
func WithMetrics(m *Metrics) StoreOption {
	return func(o *storeOptions) { o.metrics = m }
}

// WithBreakerConfig overrides DefaultBreakerConfig for remote stores.
func WithBreakerConfig(cfg BreakerConfig) StoreOption {
	return func(o *storeOptions) { o.breaker = &cfg }
}

// NewStore creates the store named by cfg.Provider:
//   - "qdrant" (default): QdrantStore over gRPC
//   - "pinecone": PineconeStore on the index host in cfg.Endpoint
//   - "chromem": embedded ChromemStore, in memory unless ChromemPath is set
//
// Remote stores are wrapped in a circuit breaker. Every store is
// instrumented when WithMetrics is given.
func NewStore(ctx context.Context, cfg config.VectorDBConfig, opts ...StoreOption) (Store, error) {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger.With(zap.String("provider", providerName(cfg.Provider)))

	var (
		store  Store
		remote bool
	)
	switch cfg.Provider {
	case config.VectorDBProviderQdrant, "":
		distance, err := QdrantDistance(cfg.Metric)
		if err != nil {
			return nil, err
		}
		s, err := NewQdrantStore(ctx, QdrantConfig{
			Endpoint:         cfg.Endpoint,
			APIKey:           cfg.Token,
			CollectionName:   cfg.Collection,
			VectorSize:       uint64(cfg.Dimension),
			Distance:         distance,
			CreateCollection: cfg.CreateCollection,
			Timeout:          cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		store, remote = s, true

	case config.VectorDBProviderPinecone:
		s, err := NewPineconeStore(PineconeConfig{
			Host:      cfg.Endpoint,
			APIKey:    cfg.Token,
			Namespace: cfg.Keyspace,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		store, remote = s, true

	case config.VectorDBProviderChromem:
		if cfg.Metric != "" && cfg.Metric != config.MetricCosine {
			logger.Warn("chromem only supports cosine similarity, ignoring metric", zap.String("metric", cfg.Metric))
		}
		s, err := NewChromemStore(ChromemConfig{
			Path:       cfg.ChromemPath,
			Keyspace:   cfg.Keyspace,
			Collection: cfg.Collection,
			Dimension:  cfg.Dimension,
		}, logger)
		if err != nil {
			return nil, err
		}
		store = s

	default:
		return nil, fmt.Errorf("%w: unsupported vector store provider %q (supported: qdrant, pinecone, chromem)", ErrInvalidConfig, cfg.Provider)
	}

	if remote {
		bc := DefaultBreakerConfig("vectorstore-" + providerName(cfg.Provider))
		if o.breaker != nil {
			bc = *o.breaker
		}
		var onChange func(string, gobreaker.State)
		if o.metrics != nil {
			onChange = o.metrics.BreakerStateChanged
		}
		store = WithBreaker(store, bc, logger, onChange)
	}
	return Instrument(store, providerName(cfg.Provider), o.metrics), nil
}

func providerName(p string) string {
	if p == "" {
		return config.VectorDBProviderQdrant
	}
	return p
}
