// Package es implements the vector-store collaborator on Elasticsearch:
// index bootstrap, batch insert, dense kNN search and BM25 sparse search.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"finrag-go/internal/config"
	"finrag-go/internal/model"
	"finrag-go/pkg/log"
)

const (
	defaultVectorDims = 1024
	defaultTimeout    = 30 * time.Second
)

// Client talks to one Elasticsearch index holding chunk records. Every
// call runs under the configured timeout so a hung node cannot stall a
// request indefinitely.
type Client struct {
	es      *elasticsearch.Client
	index   string
	dims    int
	timeout time.Duration
}

// NewClient connects to Elasticsearch and makes sure the chunk index
// exists with the expected mapping.
func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	raw, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	dims := cfg.VectorDims
	if dims <= 0 {
		dims = defaultVectorDims
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{es: raw, index: cfg.IndexName, dims: dims, timeout: timeout}
	if err := c.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return c, nil
}

// mapping returns the index mapping. text is the BM25 field; vector is the
// cosine dense_vector field.
func (c *Client) mapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id":     { "type": "keyword" },
				"file_name":    { "type": "keyword" },
				"source":       { "type": "keyword" },
				"text":         { "type": "text" },
				"page_start":   { "type": "integer" },
				"page_end":     { "type": "integer" },
				"chunk_index":  { "type": "integer" },
				"section_type": { "type": "keyword" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, c.dims)
}

func (c *Client) createIndexIfNotExists() error {
	res, err := c.es.Indices.Exists([]string{c.index})
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status checking index '%s': %d", c.index, res.StatusCode)
	}

	createRes, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(c.mapping())),
	)
	if err != nil {
		return fmt.Errorf("failed to create index '%s': %w", c.index, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("elasticsearch rejected index creation: %s", createRes.String())
	}

	log.Infof("index '%s' created", c.index)
	return nil
}

// RecreateIndex drops and recreates the index. All stored chunks are lost;
// operator action only.
func (c *Client) RecreateIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.es.Indices.Delete(
		[]string{c.index},
		c.es.Indices.Delete.WithContext(ctx),
		c.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("failed to delete index '%s': %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected index deletion: %s", res.String())
	}
	return c.createIndexIfNotExists()
}

// Count returns the number of stored chunks.
func (c *Client) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.index),
	)
	if err != nil {
		return 0, &model.StorageReadError{Op: "count", Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, &model.StorageReadError{Op: "count", Err: fmt.Errorf("%s", res.String())}
	}

	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, &model.StorageReadError{Op: "count", Err: err}
	}
	return body.Count, nil
}

// Insert writes all records in one bulk request, using chunk_id as the
// document ID so re-ingestion overwrites instead of duplicating. Any
// rejected item surfaces as a StorageWriteError.
func (c *Client) Insert(ctx context.Context, records []model.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	for _, record := range records {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, c.index, record.ChunkID)
		buf.WriteString(meta)
		buf.WriteByte('\n')
		doc, err := json.Marshal(record)
		if err != nil {
			return &model.StorageWriteError{Err: fmt.Errorf("failed to encode chunk %s: %w", record.ChunkID, err)}
		}
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return &model.StorageWriteError{Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return &model.StorageWriteError{Err: fmt.Errorf("bulk insert rejected: %s", res.String())}
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return &model.StorageWriteError{Err: fmt.Errorf("failed to decode bulk response: %w", err)}
	}
	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			for _, op := range item {
				if op.Error != nil {
					return &model.StorageWriteError{
						Err: fmt.Errorf("chunk %s rejected: %s: %s", op.ID, op.Error.Type, op.Error.Reason),
					}
				}
			}
		}
		return &model.StorageWriteError{Err: fmt.Errorf("bulk insert reported errors")}
	}
	return nil
}

// DeleteByFileName removes every chunk of one file. Used to compensate a
// partially applied bulk insert and by the operator reset flow.
func (c *Client) DeleteByFileName(ctx context.Context, fileName string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf(`{"query":{"term":{"file_name":%q}}}`, fileName)
	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		strings.NewReader(query),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return &model.StorageWriteError{Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return &model.StorageWriteError{Err: fmt.Errorf("delete by file_name rejected: %s", res.String())}
	}
	return nil
}

// DenseSearch ranks chunks by cosine similarity to the query vector.
func (c *Client) DenseSearch(ctx context.Context, vector []float32, k int, fileName string) ([]model.Hit, error) {
	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   vector,
		"k":              k,
		"num_candidates": k * 10,
	}
	if fileName != "" {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"file_name": fileName},
		}
	}
	body := map[string]interface{}{
		"knn":     knn,
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	return c.search(ctx, "dense_search", body)
}

// SparseSearch ranks chunks by the store's lexical BM25 score for the
// query text. The core never builds sparse vectors itself.
func (c *Client) SparseSearch(ctx context.Context, query string, k int, fileName string) ([]model.Hit, error) {
	boolQuery := map[string]interface{}{
		"must": map[string]interface{}{
			"match": map[string]interface{}{"text": query},
		},
	}
	if fileName != "" {
		boolQuery["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"file_name": fileName},
		}
	}
	body := map[string]interface{}{
		"query":   map[string]interface{}{"bool": boolQuery},
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	return c.search(ctx, "sparse_search", body)
}

func (c *Client) search(ctx context.Context, op string, body map[string]interface{}) ([]model.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, &model.StorageReadError{Op: op, Err: fmt.Errorf("failed to encode query: %w", err)}
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, &model.StorageReadError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		b, _ := io.ReadAll(res.Body)
		return nil, &model.StorageReadError{Op: op, Err: fmt.Errorf("status %s: %s", res.Status(), string(b))}
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				ID     string            `json:"_id"`
				Score  float64           `json:"_score"`
				Source model.ChunkRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, &model.StorageReadError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	hits := make([]model.Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, model.Hit{
			ChunkID: h.ID,
			Score:   h.Score,
			Record:  h.Source,
		})
	}
	return hits, nil
}

// GetByIDs fetches chunk records by their IDs. Missing IDs are skipped.
func (c *Client) GetByIDs(ctx context.Context, ids []string) ([]model.ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]interface{}{"ids": ids})
	if err != nil {
		return nil, &model.StorageReadError{Op: "get_by_ids", Err: err}
	}

	req := esapi.MgetRequest{
		Index: c.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, &model.StorageReadError{Op: "get_by_ids", Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, &model.StorageReadError{Op: "get_by_ids", Err: fmt.Errorf("%s", res.String())}
	}

	var mgetRes struct {
		Docs []struct {
			Found  bool              `json:"found"`
			Source model.ChunkRecord `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mgetRes); err != nil {
		return nil, &model.StorageReadError{Op: "get_by_ids", Err: err}
	}

	records := make([]model.ChunkRecord, 0, len(mgetRes.Docs))
	for _, doc := range mgetRes.Docs {
		if doc.Found {
			records = append(records, doc.Source)
		}
	}
	return records, nil
}
