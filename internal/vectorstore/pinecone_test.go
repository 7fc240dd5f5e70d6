package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakePineconeIndex struct {
	req      *pinecone.QueryByVectorValuesRequest
	resp     *pinecone.QueryVectorsResponse
	err      error
	statsErr error
	closed   bool
}

func (f *fakePineconeIndex) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.req = in
	return f.resp, f.err
}

func (f *fakePineconeIndex) DescribeIndexStats(context.Context) (*pinecone.DescribeIndexStatsResponse, error) {
	return &pinecone.DescribeIndexStatsResponse{}, f.statsErr
}

func (f *fakePineconeIndex) Close() error {
	f.closed = true
	return nil
}

func scored(t *testing.T, id string, score float32, meta map[string]any) *pinecone.ScoredVector {
	t.Helper()
	var md *pinecone.Metadata
	if meta != nil {
		s, err := structpb.NewStruct(meta)
		require.NoError(t, err)
		md = s
	}
	return &pinecone.ScoredVector{Vector: &pinecone.Vector{Id: id, Metadata: md}, Score: score}
}

func TestPineconeStore_Search(t *testing.T) {
	idx := &fakePineconeIndex{resp: &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		scored(t, "a", 0.9, map[string]any{"URL": "https://a.example", "Email": "a@example.com", "Rank": 3, "Secret": "x"}),
		scored(t, "b", 0.8, nil),
		scored(t, "c", 0.7, map[string]any{"Title": "C", "ContactPage": true}),
	}}}
	s := newPineconeStore(idx, PineconeConfig{Namespace: "vector"}, nil)

	records, err := s.Search(context.Background(), Query{Vector: []float32{0.1, 0.2}, Limit: 5, Fields: []string{"URL", "Email", "Title", "ContactPage", "Rank"}})
	require.NoError(t, err)

	assert.Equal(t, uint32(5), idx.req.TopK)
	assert.True(t, idx.req.IncludeMetadata)
	assert.Equal(t, []float32{0.1, 0.2}, idx.req.Vector)

	require.Len(t, records, 3)
	assert.Equal(t, Record{"URL": "https://a.example", "Email": "a@example.com", "Rank": "3"}, records[0])
	assert.Empty(t, records[1])
	assert.Equal(t, Record{"Title": "C", "ContactPage": "true"}, records[2])
}

func TestPineconeStore_SearchTruncatesToLimit(t *testing.T) {
	idx := &fakePineconeIndex{resp: &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		scored(t, "a", 0.9, map[string]any{"URL": "a"}),
		scored(t, "b", 0.8, map[string]any{"URL": "b"}),
	}}}
	s := newPineconeStore(idx, PineconeConfig{}, nil)

	records, err := s.Search(context.Background(), Query{Vector: []float32{1}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []Record{{"URL": "a"}}, records)
}

func TestPineconeStore_SearchClampsTopK(t *testing.T) {
	idx := &fakePineconeIndex{resp: &pinecone.QueryVectorsResponse{}}
	s := newPineconeStore(idx, PineconeConfig{}, nil)

	for _, limit := range []int{maxPineconeTopK + 1, 1<<32 + 5} {
		_, err := s.Search(context.Background(), Query{Vector: []float32{1}, Limit: limit})
		require.NoError(t, err)
		assert.Equal(t, uint32(maxPineconeTopK), idx.req.TopK, "limit %d", limit)
	}
}

func TestPineconeStore_Errors(t *testing.T) {
	idx := &fakePineconeIndex{err: errors.New("401 unauthorized"), statsErr: errors.New("timeout")}
	s := newPineconeStore(idx, PineconeConfig{}, nil)

	_, err := s.Search(context.Background(), testQuery)
	require.ErrorIs(t, err, ErrSearchUnavailable)
	assert.Contains(t, err.Error(), "401 unauthorized")

	require.ErrorIs(t, s.Health(context.Background()), ErrSearchUnavailable)

	idx.err = nil
	_, err = s.Search(context.Background(), testQuery)
	require.ErrorIs(t, err, ErrSearchUnavailable, "nil response")

	require.NoError(t, s.Close())
	assert.True(t, idx.closed)
}

func TestPineconeConfig_Validate(t *testing.T) {
	require.ErrorIs(t, PineconeConfig{APIKey: "k"}.Validate(), ErrInvalidConfig)
	require.ErrorIs(t, PineconeConfig{Host: "idx.svc.pinecone.io"}.Validate(), ErrInvalidConfig)
	require.NoError(t, PineconeConfig{Host: "idx.svc.pinecone.io", APIKey: "k"}.Validate())
}
