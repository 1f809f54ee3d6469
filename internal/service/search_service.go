// Package service holds the business logic between handlers and the
// storage collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"finrag-go/internal/config"
	"finrag-go/internal/model"
	"finrag-go/pkg/embedding"
	"finrag-go/pkg/log"
)

const (
	defaultCandidateMultiplier = 4
	defaultRRFK                = 60
	defaultDenseWeight         = 0.6
	defaultSparseWeight        = 0.4
)

// SearchStore is the slice of the vector store the retrieval engine reads
// from.
type SearchStore interface {
	DenseSearch(ctx context.Context, vector []float32, k int, fileName string) ([]model.Hit, error)
	SparseSearch(ctx context.Context, query string, k int, fileName string) ([]model.Hit, error)
}

// SearchService runs hybrid retrieval: a dense vector channel and a sparse
// lexical channel fused by weighted reciprocal rank fusion.
type SearchService struct {
	store    SearchStore
	embedder embedding.Client
	cfg      config.SearchConfig
}

// NewSearchService creates a SearchService. Zero config values fall back
// to the standard hybrid defaults.
func NewSearchService(store SearchStore, embedder embedding.Client, cfg config.SearchConfig) *SearchService {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = defaultCandidateMultiplier
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = defaultRRFK
	}
	if cfg.DenseWeight <= 0 {
		cfg.DenseWeight = defaultDenseWeight
	}
	if cfg.SparseWeight <= 0 {
		cfg.SparseWeight = defaultSparseWeight
	}
	return &SearchService{store: store, embedder: embedder, cfg: cfg}
}

// Search answers one retrieval request. The dense channel is mandatory;
// a sparse channel read failure degrades the request to dense-only
// instead of failing it.
func (s *SearchService) Search(ctx context.Context, req model.QueryRequest) ([]model.SearchResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", model.ErrInvalidArgument)
	}
	if req.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", model.ErrInvalidArgument, req.TopK)
	}

	log.Infof("[Search] query: %q, top_k: %d, hybrid: %v", req.Query, req.TopK, req.Hybrid())

	vector, err := s.embedder.CreateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	// Each channel retrieves a candidate pool larger than top_k so fusion
	// has cross-channel overlap to work with.
	candidates := req.TopK * s.cfg.CandidateMultiplier

	if !req.Hybrid() {
		denseHits, err := s.store.DenseSearch(ctx, vector, candidates, req.FileName)
		if err != nil {
			return nil, err
		}
		return s.fuse(req.TopK, denseHits, nil, model.SearchMethodDenseOnly), nil
	}

	var (
		wg         sync.WaitGroup
		denseHits  []model.Hit
		sparseHits []model.Hit
		denseErr   error
		sparseErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		denseHits, denseErr = s.store.DenseSearch(ctx, vector, candidates, req.FileName)
	}()
	go func() {
		defer wg.Done()
		sparseHits, sparseErr = s.store.SparseSearch(ctx, req.Query, candidates, req.FileName)
	}()
	wg.Wait()

	if denseErr != nil {
		return nil, denseErr
	}

	method := model.SearchMethodHybrid
	if sparseErr != nil {
		var readErr *model.StorageReadError
		if !errors.As(sparseErr, &readErr) {
			return nil, sparseErr
		}
		log.Warnf("[Search] sparse channel unavailable, degrading to dense-only: %v", sparseErr)
		sparseHits = nil
		method = model.SearchMethodDenseOnly
	}

	results := s.fuse(req.TopK, denseHits, sparseHits, method)
	log.Infof("[Search] returning %d results, method: %s", len(results), method)
	return results, nil
}

// fuse merges the two ranked candidate lists with weighted reciprocal
// rank fusion and returns the top_k fused results. Ranks are 1-based per
// channel; score ties break on chunk_id ascending so ordering is
// deterministic.
func (s *SearchService) fuse(topK int, denseHits, sparseHits []model.Hit, method string) []model.SearchResult {
	type fused struct {
		record model.ChunkRecord
		score  float64
	}
	pool := make(map[string]*fused)

	accumulate := func(hits []model.Hit, weight float64) {
		for rank, hit := range hits {
			entry, ok := pool[hit.ChunkID]
			if !ok {
				entry = &fused{record: hit.Record}
				pool[hit.ChunkID] = entry
			}
			entry.score += weight / float64(s.cfg.RRFK+rank+1)
		}
	}
	accumulate(denseHits, s.cfg.DenseWeight)
	accumulate(sparseHits, s.cfg.SparseWeight)

	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := pool[ids[i]], pool[ids[j]]
		if a.score != b.score {
			return a.score > b.score
		}
		return ids[i] < ids[j]
	})
	if len(ids) > topK {
		ids = ids[:topK]
	}

	results := make([]model.SearchResult, 0, len(ids))
	for _, id := range ids {
		entry := pool[id]
		results = append(results, model.SearchResult{
			ChunkID:      id,
			FileName:     entry.record.FileName,
			PageStart:    entry.record.PageStart,
			PageEnd:      entry.record.PageEnd,
			ChunkIndex:   entry.record.ChunkIndex,
			SectionType:  entry.record.SectionType,
			Content:      entry.record.Text,
			Score:        entry.score,
			SearchMethod: method,
		})
	}
	return results
}
