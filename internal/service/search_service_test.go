package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag-go/internal/config"
	"finrag-go/internal/model"
)

type stubSearchStore struct {
	denseHits   []model.Hit
	sparseHits  []model.Hit
	denseErr    error
	sparseErr   error
	denseCalls  atomic.Int32
	sparseCalls atomic.Int32
	denseK      int
}

func (s *stubSearchStore) DenseSearch(ctx context.Context, vector []float32, k int, fileName string) ([]model.Hit, error) {
	s.denseCalls.Add(1)
	s.denseK = k
	return s.denseHits, s.denseErr
}

func (s *stubSearchStore) SparseSearch(ctx context.Context, query string, k int, fileName string) ([]model.Hit, error) {
	s.sparseCalls.Add(1)
	return s.sparseHits, s.sparseErr
}

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2}, nil
}

func hit(id string) model.Hit {
	return model.Hit{ChunkID: id, Record: model.ChunkRecord{ChunkID: id, FileName: "doc.pdf", Text: "content of " + id}}
}

func newService(store *stubSearchStore) (*SearchService, *stubEmbedder) {
	emb := &stubEmbedder{}
	return NewSearchService(store, emb, config.SearchConfig{}), emb
}

func TestSearch_RRFScoreForSharedTopHit(t *testing.T) {
	store := &stubSearchStore{
		denseHits:  []model.Hit{hit("a")},
		sparseHits: []model.Hit{hit("a")},
	}
	svc, _ := newService(store)

	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5})
	require.NoError(t, err)

	require.Len(t, results, 1)
	// Rank 1 in both channels: 0.6/(60+1) + 0.4/(60+1) = 1/61.
	assert.InDelta(t, 1.0/61.0, results[0].Score, 1e-12)
	assert.Equal(t, model.SearchMethodHybrid, results[0].SearchMethod)
}

func TestSearch_FusionOrdersAcrossChannels(t *testing.T) {
	store := &stubSearchStore{
		denseHits:  []model.Hit{hit("a"), hit("b"), hit("c"), hit("d")},
		sparseHits: []model.Hit{hit("b"), hit("a"), hit("e"), hit("f")},
	}
	svc, _ := newService(store)

	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 3})
	require.NoError(t, err)

	require.Len(t, results, 3)
	// a: 0.6/61 + 0.4/62, b: 0.6/62 + 0.4/61, c: 0.6/63.
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.Equal(t, "c", results[2].ChunkID)
	assert.InDelta(t, 0.6/61.0+0.4/62.0, results[0].Score, 1e-12)
	assert.InDelta(t, 0.6/62.0+0.4/61.0, results[1].Score, 1e-12)
	assert.InDelta(t, 0.6/63.0, results[2].Score, 1e-12)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_SparseOnlyHitCarriesRecord(t *testing.T) {
	store := &stubSearchStore{
		denseHits:  []model.Hit{hit("a")},
		sparseHits: []model.Hit{hit("z")},
	}
	svc, _ := newService(store)

	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "z", results[1].ChunkID)
	assert.Equal(t, "content of z", results[1].Content)
	assert.Equal(t, "doc.pdf", results[1].FileName)
}

func TestSearch_TieBreaksOnChunkID(t *testing.T) {
	store := &stubSearchStore{
		denseHits:  []model.Hit{hit("zz")},
		sparseHits: []model.Hit{hit("aa")},
	}
	emb := &stubEmbedder{}
	svc := NewSearchService(store, emb, config.SearchConfig{DenseWeight: 0.5, SparseWeight: 0.5})

	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12)
	assert.Equal(t, "aa", results[0].ChunkID)
	assert.Equal(t, "zz", results[1].ChunkID)
}

func TestSearch_SparseReadFailureDegradesToDenseOnly(t *testing.T) {
	store := &stubSearchStore{
		denseHits: []model.Hit{hit("a"), hit("b")},
		sparseErr: &model.StorageReadError{Op: "sparse_search", Err: errors.New("shard unavailable")},
	}
	svc, _ := newService(store)

	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 2})
	require.NoError(t, err, "sparse read failure must not fail the request")

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, model.SearchMethodDenseOnly, r.SearchMethod)
	}
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestSearch_DenseFailureFailsRequest(t *testing.T) {
	store := &stubSearchStore{
		denseErr:   &model.StorageReadError{Op: "dense_search", Err: errors.New("timeout")},
		sparseHits: []model.Hit{hit("a")},
	}
	svc, _ := newService(store)

	_, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 2})
	var readErr *model.StorageReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "dense_search", readErr.Op)
}

func TestSearch_InvalidTopKRejectedBeforeAnyIO(t *testing.T) {
	store := &stubSearchStore{}
	svc, emb := newService(store)

	for _, topK := range []int{0, -3} {
		_, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: topK})
		assert.ErrorIs(t, err, model.ErrInvalidArgument)
	}
	assert.Equal(t, 0, emb.calls)
	assert.Equal(t, int32(0), store.denseCalls.Load())
	assert.Equal(t, int32(0), store.sparseCalls.Load())
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	svc, _ := newService(&stubSearchStore{})

	_, err := svc.Search(context.Background(), model.QueryRequest{Query: "", TopK: 5})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSearch_NoMatchesReturnsEmptySlice(t *testing.T) {
	svc, _ := newService(&stubSearchStore{})

	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearch_HybridDisabledSkipsSparseChannel(t *testing.T) {
	store := &stubSearchStore{denseHits: []model.Hit{hit("a")}}
	svc, _ := newService(store)

	useHybrid := false
	results, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5, UseHybrid: &useHybrid})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, model.SearchMethodDenseOnly, results[0].SearchMethod)
	assert.Equal(t, int32(0), store.sparseCalls.Load())
}

func TestSearch_CandidatePoolLargerThanTopK(t *testing.T) {
	store := &stubSearchStore{denseHits: []model.Hit{hit("a")}}
	svc, _ := newService(store)

	_, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, 20, store.denseK, "each channel retrieves candidate_multiplier * top_k")
}

func TestSearch_EmbeddingFailureFailsRequest(t *testing.T) {
	store := &stubSearchStore{}
	emb := &stubEmbedder{err: &model.EmbeddingError{Err: errors.New("upstream 503")}}
	svc := NewSearchService(store, emb, config.SearchConfig{})

	_, err := svc.Search(context.Background(), model.QueryRequest{Query: "revenue", TopK: 5})
	var embErr *model.EmbeddingError
	assert.ErrorAs(t, err, &embErr)
	assert.Equal(t, int32(0), store.denseCalls.Load())
}
