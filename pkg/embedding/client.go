// Package embedding provides the client for the embedding model service.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finrag-go/internal/config"
	"finrag-go/internal/model"
	"finrag-go/pkg/log"
)

// Client maps text to a fixed-dimension dense vector. Deterministic for
// identical input.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type openAICompatibleClient struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	timeout time.Duration
}

// NewClient creates an embedding client for an OpenAI-compatible
// /embeddings endpoint.
func NewClient(cfg config.EmbeddingConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &openAICompatibleClient{
		cfg:     cfg,
		client:  &http.Client{},
		timeout: timeout,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// CreateEmbedding calls the embedding API for a single text. The call runs
// under the configured timeout; a timeout surfaces as an EmbeddingError.
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      []string{text},
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &model.EmbeddingError{Err: fmt.Errorf("failed to marshal embedding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, &model.EmbeddingError{Err: fmt.Errorf("failed to create embedding request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] embedding API call failed: %v", err)
		return nil, &model.EmbeddingError{Err: fmt.Errorf("failed to call embedding api: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] embedding API returned non-200 status: %s", resp.Status)
		return nil, &model.EmbeddingError{Err: fmt.Errorf("embedding api returned status %s", resp.Status)}
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, &model.EmbeddingError{Err: fmt.Errorf("failed to decode embedding response: %w", err)}
	}

	if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
		log.Warnf("[EmbeddingClient] embedding API returned empty vector data")
		return nil, &model.EmbeddingError{Err: fmt.Errorf("received empty embedding from api")}
	}

	return embeddingResp.Data[0].Embedding, nil
}
