package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag-go/internal/config"
	"finrag-go/internal/model"
	"finrag-go/internal/repository"
	"finrag-go/pkg/llm"
)

type stubLLM struct {
	answer   string
	err      error
	calls    int
	messages []llm.Message
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	s.calls++
	s.messages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type stubQueryLog struct {
	entries []*model.QueryLog
}

func (s *stubQueryLog) Create(entry *model.QueryLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubQueryLog) Stats() (*repository.QueryStats, error) {
	return &repository.QueryStats{}, nil
}

func newAnswerFixture(store *stubSearchStore, llmClient *stubLLM) (*AnswerService, *stubQueryLog) {
	search := NewSearchService(store, &stubEmbedder{}, config.SearchConfig{})
	logRepo := &stubQueryLog{}
	return NewAnswerService(search, llmClient, logRepo), logRepo
}

func pageHit(id, file string, page int) model.Hit {
	return model.Hit{ChunkID: id, Record: model.ChunkRecord{
		ChunkID: id, FileName: file, PageStart: page, PageEnd: page, Text: "text of " + id,
	}}
}

func TestAnswer_GeneratesFromRetrievedContext(t *testing.T) {
	store := &stubSearchStore{
		denseHits:  []model.Hit{pageHit("a", "annual.pdf", 12)},
		sparseHits: []model.Hit{pageHit("a", "annual.pdf", 12)},
	}
	llmClient := &stubLLM{answer: "Revenue grew 8% year over year."}
	svc, logRepo := newAnswerFixture(store, llmClient)

	resp, err := svc.Answer(context.Background(), model.QueryRequest{Query: "how did revenue develop?", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 8% year over year.", resp.Answer)
	require.Equal(t, 1, resp.NumSources)
	assert.Equal(t, "annual.pdf", resp.Sources[0].FileName)
	assert.Equal(t, 12, resp.Sources[0].PageStart)

	require.Len(t, llmClient.messages, 2)
	assert.Equal(t, "system", llmClient.messages[0].Role)
	assert.Contains(t, llmClient.messages[1].Content, "[Source 1: annual.pdf, page 12]")
	assert.Contains(t, llmClient.messages[1].Content, "text of a")
	assert.Contains(t, llmClient.messages[1].Content, "Question: how did revenue develop?")

	require.Len(t, logRepo.entries, 1)
	entry := logRepo.entries[0]
	assert.Equal(t, "success", entry.Status)
	assert.Equal(t, 1, entry.NumRetrieved)
	assert.Equal(t, "Revenue grew 8% year over year.", entry.Answer)
}

func TestAnswer_NoDocumentsSkipsGeneration(t *testing.T) {
	llmClient := &stubLLM{answer: "should never be used"}
	svc, logRepo := newAnswerFixture(&stubSearchStore{}, llmClient)

	resp, err := svc.Answer(context.Background(), model.QueryRequest{Query: "anything", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, 0, llmClient.calls, "generation must be skipped without context")
	assert.Equal(t, 0, resp.NumSources)
	assert.Contains(t, resp.Answer, "No relevant documents")

	require.Len(t, logRepo.entries, 1)
	assert.Equal(t, "no_documents_found", logRepo.entries[0].Status)
}

func TestAnswer_GenerationFailureRecordsError(t *testing.T) {
	store := &stubSearchStore{denseHits: []model.Hit{pageHit("a", "annual.pdf", 1)}}
	llmClient := &stubLLM{err: errors.New("upstream 500")}
	svc, logRepo := newAnswerFixture(store, llmClient)

	_, err := svc.Answer(context.Background(), model.QueryRequest{Query: "anything", TopK: 3})
	require.Error(t, err)

	require.Len(t, logRepo.entries, 1)
	assert.Equal(t, "error", logRepo.entries[0].Status)
	assert.Equal(t, 1, logRepo.entries[0].NumRetrieved)
}

func TestAnswer_InvalidRequestRecordsError(t *testing.T) {
	svc, logRepo := newAnswerFixture(&stubSearchStore{}, &stubLLM{})

	_, err := svc.Answer(context.Background(), model.QueryRequest{Query: "anything", TopK: 0})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	require.Len(t, logRepo.entries, 1)
	assert.Equal(t, "error", logRepo.entries[0].Status)
}

func TestBuildPrompt_PageRange(t *testing.T) {
	prompt := buildPrompt("q", []model.SearchResult{
		{FileName: "a.pdf", PageStart: 3, PageEnd: 5, Content: "spanning"},
	})
	assert.Contains(t, prompt, "[Source 1: a.pdf, pages 3-5]")
}
