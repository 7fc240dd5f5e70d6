package embeddings

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"
)

// fakeProvider returns a deterministic vector derived from each text.
type fakeProvider struct {
	dim   int
	err   error
	calls int
	// mutate lets a test corrupt the output.
	mutate func([][]float32) [][]float32
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = float32(len(text) + j + 1)
		}
		out[i] = v
	}
	if f.mutate != nil {
		out = f.mutate(out)
	}
	return out, nil
}

func (f *fakeProvider) Dimension() int { return f.dim }
func (f *fakeProvider) Model() string  { return "fake-model" }
func (f *fakeProvider) Close() error   { return nil }

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, 768)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewService(&fakeProvider{dim: 4}, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewService_WarnsOnDimensionMismatch(t *testing.T) {
	tl := logging.NewTestLogger()
	_, err := NewService(&fakeProvider{dim: 384}, 768, WithLogger(tl.Underlying()))
	require.NoError(t, err)
	tl.AssertLogged(t, zapcore.WarnLevel, "model dimension does not match")
}

func TestService_Embed(t *testing.T) {
	p := &fakeProvider{dim: 8}
	svc, err := NewService(p, 8)
	require.NoError(t, err)

	t.Run("unit vectors in input order", func(t *testing.T) {
		texts := []string{"a", "bbbb", "a"}
		vecs, err := svc.Embed(context.Background(), texts)
		require.NoError(t, err)
		require.Len(t, vecs, 3)

		for i, v := range vecs {
			assert.Len(t, v, 8)
			assert.InDelta(t, 1.0, Norm(v), 1e-5, "vector %d", i)
		}
		assert.Equal(t, vecs[0], vecs[2], "same text, same vector")
		assert.NotEqual(t, vecs[0], vecs[1])
	})

	t.Run("empty input skips the model", func(t *testing.T) {
		before := p.calls
		vecs, err := svc.Embed(context.Background(), nil)
		require.NoError(t, err)
		assert.NotNil(t, vecs)
		assert.Empty(t, vecs)
		assert.Equal(t, before, p.calls)
	})

	t.Run("empty strings are embedded", func(t *testing.T) {
		vecs, err := svc.Embed(context.Background(), []string{""})
		require.NoError(t, err)
		require.Len(t, vecs, 1)
	})
}

func TestService_EmbedErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"provider failure", &fakeProvider{dim: 4, err: errors.New("onnx exploded")}},
		{"count mismatch", &fakeProvider{dim: 4, mutate: func(v [][]float32) [][]float32 { return v[:1] }}},
		{"dimension mismatch", &fakeProvider{dim: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := logging.NewTestLogger()
			svc, err := NewService(tt.provider, 4, WithLogger(tl.Underlying()))
			require.NoError(t, err)

			_, err = svc.Embed(context.Background(), []string{"a", "b"})
			require.ErrorIs(t, err, ErrModelUnavailable)
			tl.AssertLogged(t, zapcore.ErrorLevel, "embedding failed")
		})
	}
}

func TestService_ContextCanceled(t *testing.T) {
	svc, err := NewService(&fakeProvider{dim: 4, err: context.Canceled}, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Embed(ctx, []string{"a"})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrModelUnavailable)
}

func TestService_Unavailable(t *testing.T) {
	svc, err := NewService(Unavailable("BAAI/bge-base-en-v1.5", errors.New("no onnx runtime")), 768)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"hello"})
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "no onnx runtime")
	assert.Equal(t, "BAAI/bge-base-en-v1.5", svc.Model())
}

func TestService_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	p := &fakeProvider{dim: 4}
	svc, err := NewService(p, 4, WithMetrics(NewMetrics(meter, nil)))
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	p.err = errors.New("down")
	_, _ = svc.Embed(context.Background(), []string{"a"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}

	require.Contains(t, found, "llmsearch.embedding.duration_seconds")
	require.Contains(t, found, "llmsearch.embedding.batch_size")
	require.Contains(t, found, "llmsearch.embedding.errors_total")

	batch := found["llmsearch.embedding.batch_size"].Data.(metricdata.Histogram[int64])
	require.Len(t, batch.DataPoints, 1)
	assert.Equal(t, uint64(2), batch.DataPoints[0].Count)
	assert.Equal(t, int64(4), batch.DataPoints[0].Sum)

	errs := found["llmsearch.embedding.errors_total"].Data.(metricdata.Sum[int64])
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)
	model, ok := errs.DataPoints[0].Attributes.Value(attribute.Key("model"))
	require.True(t, ok)
	assert.Equal(t, "fake-model", model.AsString())
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)

	zero := []float32{0, 0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)

	unit := []float32{1, 0}
	Normalize(unit)
	assert.Equal(t, []float32{1, 0}, unit)

	big := []float32{1e20, 1e20}
	Normalize(big)
	assert.InDelta(t, 1/math.Sqrt2, big[0], 1e-6)
}
