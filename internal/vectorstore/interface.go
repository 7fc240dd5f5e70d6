// Package vectorstore queries a vector database for the records nearest to
// a query vector.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
)

const instrumentationName = "github.com/fyrsmithlabs/llmsearch/internal/vectorstore"

var tracer = otel.Tracer(instrumentationName)

// Sentinel errors for vector store operations.
var (
	// ErrSearchUnavailable wraps every search failure: unreachable store,
	// uninitialized client, open breaker or malformed response.
	ErrSearchUnavailable = errors.New("vector search unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Payload fields returned to callers.
const (
	FieldURL         = "URL"
	FieldEmail       = "Email"
	FieldContactPage = "ContactPage"
	FieldTitle       = "Title"
)

// DefaultFields is the projection used when a Query names no fields.
var DefaultFields = []string{FieldURL, FieldEmail, FieldContactPage, FieldTitle}

// Record maps a payload field name to its string value. Fields absent from
// the stored point are absent from the record.
type Record map[string]string

// Query is a single nearest-neighbor request.
type Query struct {
	Vector []float32
	Limit  int
	// Fields restricts the returned payload. Nil means DefaultFields.
	Fields []string
}

func (q Query) fields() []string {
	if q.Fields == nil {
		return DefaultFields
	}
	return q.Fields
}

func (q Query) validate() error {
	if len(q.Vector) == 0 {
		return fmt.Errorf("%w: empty query vector", ErrSearchUnavailable)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrSearchUnavailable, q.Limit)
	}
	return nil
}

// Store is the interface for vector search backends.
//
// Search returns at most q.Limit records in the store's similarity order,
// each carrying only the requested fields. Implementations are safe for
// concurrent use.
type Store interface {
	Search(ctx context.Context, q Query) ([]Record, error)

	// Health reports whether the backend answers.
	Health(ctx context.Context) error

	Close() error
}

// unavailable wraps cause so callers can match either the sentinel or the
// underlying error.
func unavailable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrSearchUnavailable, op, cause)
}

// project keeps only the requested fields of payload.
func project(payload map[string]any, fields []string) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		v, ok := payload[f]
		if !ok || v == nil {
			continue
		}
		s, err := toString(v)
		if err != nil {
			continue
		}
		rec[f] = s
	}
	return rec
}

// Unavailable returns a Store whose every call fails with
// ErrSearchUnavailable. The daemon installs it when the real store cannot
// be built so embedding traffic keeps working.
func Unavailable(cause error) Store {
	if cause == nil {
		cause = errors.New("no cause recorded")
	}
	return &unavailableStore{cause: cause}
}

type unavailableStore struct {
	cause error
}

func (s *unavailableStore) Search(context.Context, Query) ([]Record, error) {
	return nil, unavailable("store not initialized", s.cause)
}

func (s *unavailableStore) Health(context.Context) error {
	return unavailable("store not initialized", s.cause)
}

func (s *unavailableStore) Close() error { return nil }
