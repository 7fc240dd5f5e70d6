package vectorstore

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const defaultQdrantPort = 6334

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Endpoint is the gRPC endpoint, e.g. http://localhost:6334 or
	// https://xyz.cloud.qdrant.io:6334. https enables TLS.
	Endpoint string

	// APIKey is sent with every call when set.
	APIKey config.Secret

	CollectionName string

	// VectorSize and Distance are used only when creating the collection.
	VectorSize uint64
	Distance   qdrant.Distance

	// CreateCollection creates the collection on startup when missing.
	CreateCollection bool

	// Timeout bounds each call. Zero means no extra deadline.
	Timeout time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.Distance == qdrant.Distance_UnknownDistance {
		c.Distance = qdrant.Distance_Cosine
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: qdrant endpoint required", ErrInvalidConfig)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.CreateCollection && c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required to create a collection", ErrInvalidConfig)
	}
	return nil
}

// qdrantTarget is an endpoint split into what qdrant.Config wants.
type qdrantTarget struct {
	Host   string
	Port   int
	UseTLS bool
}

// parseQdrantEndpoint accepts scheme://host[:port] or bare host[:port].
// The port defaults to 6334; https selects TLS.
func parseQdrantEndpoint(endpoint string) (qdrantTarget, error) {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return qdrantTarget{}, fmt.Errorf("%w: qdrant endpoint %q: %v", ErrInvalidConfig, endpoint, err)
	}

	t := qdrantTarget{Host: u.Hostname(), Port: defaultQdrantPort}
	switch u.Scheme {
	case "https", "grpcs":
		t.UseTLS = true
	case "http", "grpc":
	default:
		return qdrantTarget{}, fmt.Errorf("%w: qdrant endpoint scheme %q", ErrInvalidConfig, u.Scheme)
	}
	if t.Host == "" {
		return qdrantTarget{}, fmt.Errorf("%w: qdrant endpoint %q has no host", ErrInvalidConfig, endpoint)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return qdrantTarget{}, fmt.Errorf("%w: qdrant endpoint port %q", ErrInvalidConfig, p)
		}
		t.Port = port
	}
	return t, nil
}

func (t qdrantTarget) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// QdrantStore implements Store over the official Qdrant gRPC client.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore creates the client and, when configured, the collection.
// The gRPC connection is lazy; an unreachable server surfaces on the
// first call, not here, unless the collection has to be created.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := parseQdrantEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if !target.UseTLS && cfg.APIKey.IsSet() {
		logger.Warn("qdrant api key sent over plaintext grpc", zap.String("endpoint", target.String()))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   target.Host,
		Port:   target.Port,
		APIKey: cfg.APIKey.Value(),
		UseTLS: target.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, unavailable("connecting to qdrant", err)
	}

	s := &QdrantStore{client: client, config: cfg, logger: logger}
	if cfg.CreateCollection {
		if err := s.ensureCollection(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	logger.Info("qdrant store initialized",
		zap.String("endpoint", target.String()),
		zap.Bool("tls", target.UseTLS),
		zap.String("collection", cfg.CollectionName),
	)
	return s, nil
}

func (s *QdrantStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	name := s.config.CollectionName
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return unavailable("checking collection "+name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: s.config.Distance,
		}),
	})
	if err != nil {
		return unavailable("creating collection "+name, err)
	}
	s.logger.Info("created qdrant collection",
		zap.String("collection", name),
		zap.Uint64("vector_size", s.config.VectorSize),
		zap.String("distance", s.config.Distance.String()),
	)
	return nil
}

// Search runs a nearest-neighbor query with a payload include-selector for
// the requested fields.
func (s *QdrantStore) Search(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("limit", q.Limit),
	)

	if err := q.validate(); err != nil {
		return nil, err
	}
	fields := q.fields()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.CollectionName,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          qdrant.PtrOf(uint64(q.Limit)),
		WithPayload:    qdrant.NewWithPayloadInclude(fields...),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, unavailable("querying collection "+s.config.CollectionName, err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		records = append(records, project(qdrantPayload(p.GetPayload()), fields))
	}
	if len(records) > q.Limit {
		records = records[:q.Limit]
	}

	span.SetAttributes(attribute.Int("results_count", len(records)))
	span.SetStatus(codes.Ok, "success")
	return records, nil
}

// Health calls the Qdrant health RPC.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return unavailable("qdrant health check", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// QdrantDistance maps a configured metric name to a Qdrant distance.
func QdrantDistance(metric string) (qdrant.Distance, error) {
	switch metric {
	case config.MetricCosine, "":
		return qdrant.Distance_Cosine, nil
	case config.MetricDotProduct:
		return qdrant.Distance_Dot, nil
	case config.MetricEuclidean:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, metric)
	}
}
