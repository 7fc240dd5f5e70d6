package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/llmsearch/internal/sanitize"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// errNoEmbedder is returned if chromem ever tries to embed text itself;
// every document and query here carries a precomputed vector.
var errNoEmbedder = errors.New("chromem store only accepts precomputed vectors")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the
	// database in memory.
	Path string

	// Keyspace names the sub-directory of Path holding this database.
	Keyspace string

	Collection string

	// Dimension is enforced on AddRecords.
	Dimension int

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if err := sanitize.ValidateName(c.Collection, "collection"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if c.Keyspace != "" {
		if err := sanitize.ValidateName(c.Keyspace, "keyspace"); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Point is a vector plus payload to seed into the chromem store.
type Point struct {
	// ID is generated when empty.
	ID      string
	Vector  []float32
	Payload Record
}

// ChromemStore implements Store with chromem-go, in memory or persisted
// to gob files. It serves local development and tests.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger
}

// NewChromemStore opens (or creates) the database and collection.
func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  *chromem.DB
		err error
	)
	location := "memory"
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		dir, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		dir, err = sanitize.JoinWithin(dir, cfg.Keyspace)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
		db, err = chromem.NewPersistentDB(dir, cfg.Compress)
		if err != nil {
			return nil, unavailable("opening chromem db", err)
		}
		location = dir
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, rejectEmbedding)
	if err != nil {
		return nil, unavailable("opening collection "+cfg.Collection, err)
	}

	logger.Info("chromem store initialized",
		zap.String("location", location),
		zap.String("collection", cfg.Collection),
		zap.Int("documents", collection.Count()),
	)
	return &ChromemStore{db: db, collection: collection, config: cfg, logger: logger}, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// AddRecords stores points, generating IDs where missing, and returns the
// IDs in input order. Vectors must match the configured dimension.
func (s *ChromemStore) AddRecords(ctx context.Context, points []Point) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.AddRecords")
	defer span.End()

	span.SetAttributes(attribute.Int("count", len(points)))

	ids := make([]string, len(points))
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if len(p.Vector) != s.config.Dimension {
			return nil, fmt.Errorf("%w: point %d has dimension %d, want %d", ErrInvalidConfig, i, len(p.Vector), s.config.Dimension)
		}
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		docs[i] = chromem.Document{
			ID:        id,
			Metadata:  map[string]string(p.Payload),
			Embedding: p.Vector,
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}
	s.logger.Debug("added chromem records", zap.Int("count", len(docs)))
	return ids, nil
}

// Search returns up to q.Limit records by cosine similarity.
func (s *ChromemStore) Search(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("limit", q.Limit),
	)

	if err := q.validate(); err != nil {
		return nil, err
	}
	fields := q.fields()

	// chromem rejects nResults above the document count.
	n := q.Limit
	count := s.collection.Count()
	if count == 0 {
		return []Record{}, nil
	}
	if n > count {
		n = count
	}

	results, err := s.collection.QueryEmbedding(ctx, q.Vector, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, unavailable("querying collection "+s.config.Collection, err)
	}

	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = project(chromemPayload(r.Metadata), fields)
	}

	span.SetAttributes(attribute.Int("results_count", len(records)))
	span.SetStatus(codes.Ok, "success")
	return records, nil
}

// Health always succeeds; the database is in process.
func (s *ChromemStore) Health(context.Context) error { return nil }

// Count returns the number of stored records.
func (s *ChromemStore) Count() int { return s.collection.Count() }

// Close is a no-op; persisted writes are flushed on every add.
func (s *ChromemStore) Close() error { return nil }
