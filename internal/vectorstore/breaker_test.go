package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore counts calls and returns err, or records when err is nil.
type fakeStore struct {
	calls   int
	err     error
	records []Record
	closed  bool
}

func (f *fakeStore) Search(context.Context, Query) ([]Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeStore) Health(context.Context) error { return f.err }

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

var testQuery = Query{Vector: []float32{1}, Limit: 1}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	backend := &fakeStore{err: unavailable("querying", errors.New("connection refused"))}
	b := WithBreaker(backend, BreakerConfig{Name: "test", MaxFailures: 3, OpenTimeout: time.Minute}, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := b.Search(context.Background(), testQuery)
		require.ErrorIs(t, err, ErrSearchUnavailable)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Search(context.Background(), testQuery)
	require.ErrorIs(t, err, ErrSearchUnavailable)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, backend.calls, "open breaker must not reach the backend")
}

func TestBreakerStore_HalfOpenRecovers(t *testing.T) {
	backend := &fakeStore{err: errors.New("down")}
	b := WithBreaker(backend, BreakerConfig{Name: "test", MaxFailures: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenRequests: 1}, nil, nil)

	_, err := b.Search(context.Background(), testQuery)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	backend.err = nil
	backend.records = []Record{{FieldURL: "u"}}
	require.Eventually(t, func() bool { return b.State() == gobreaker.StateHalfOpen }, time.Second, 5*time.Millisecond)

	records, err := b.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, []Record{{FieldURL: "u"}}, records)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerStore_CanceledDoesNotTrip(t *testing.T) {
	backend := &fakeStore{err: context.Canceled}
	b := WithBreaker(backend, BreakerConfig{Name: "test", MaxFailures: 1, OpenTimeout: time.Minute}, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := b.Search(context.Background(), testQuery)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 3, backend.calls)
}

func TestBreakerStore_HealthAndClosePassThrough(t *testing.T) {
	backend := &fakeStore{}
	b := WithBreaker(backend, DefaultBreakerConfig("test"), nil, nil)

	require.NoError(t, b.Health(context.Background()))
	require.NoError(t, b.Close())
	assert.True(t, backend.closed)
}

func TestBreakerStore_StateMetric(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	backend := &fakeStore{err: errors.New("down")}
	b := WithBreaker(backend, BreakerConfig{Name: "vectorstore-qdrant", MaxFailures: 1, OpenTimeout: time.Minute}, nil, m.BreakerStateChanged)

	_, _ = b.Search(context.Background(), testQuery)
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(m.breaker.WithLabelValues("vectorstore-qdrant")))
}
