package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finrag-go/internal/model"
	"finrag-go/internal/repository"
	"finrag-go/pkg/llm"
	"finrag-go/pkg/log"
)

const answerSystemPrompt = `You are a financial document assistant. Answer the question using only the provided context passages. Cite the source file and page range for every claim. If the context does not contain the answer, say so instead of guessing.`

// Query log status values.
const (
	statusSuccess     = "success"
	statusNoDocuments = "no_documents_found"
	statusError       = "error"
)

// AnswerService runs the retrieve-then-generate flow and records one
// query log row per question.
type AnswerService struct {
	search   *SearchService
	llm      llm.Client
	queryLog repository.QueryLogRepository
}

// NewAnswerService creates an AnswerService. queryLog may be nil when
// performance logging is disabled.
func NewAnswerService(search *SearchService, llmClient llm.Client, queryLog repository.QueryLogRepository) *AnswerService {
	return &AnswerService{search: search, llm: llmClient, queryLog: queryLog}
}

// Answer retrieves context for the question and asks the LLM to answer
// from it.
func (s *AnswerService) Answer(ctx context.Context, req model.QueryRequest) (*model.AnswerResponse, error) {
	retrievalStart := time.Now()
	results, err := s.search.Search(ctx, req)
	retrievalMillis := time.Since(retrievalStart).Milliseconds()
	if err != nil {
		s.record(req.Query, "", retrievalMillis, 0, 0, statusError)
		return nil, err
	}

	if len(results) == 0 {
		log.Warnf("[Answer] no documents retrieved for question: %q", req.Query)
		s.record(req.Query, "", retrievalMillis, 0, 0, statusNoDocuments)
		return &model.AnswerResponse{
			Question:   req.Query,
			Answer:     "No relevant documents were found for this question.",
			Sources:    []model.AnswerSource{},
			NumSources: 0,
		}, nil
	}

	generationStart := time.Now()
	answer, err := s.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: buildPrompt(req.Query, results)},
	})
	generationMillis := time.Since(generationStart).Milliseconds()
	if err != nil {
		s.record(req.Query, "", retrievalMillis, generationMillis, len(results), statusError)
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	s.record(req.Query, answer, retrievalMillis, generationMillis, len(results), statusSuccess)

	sources := make([]model.AnswerSource, 0, len(results))
	for _, r := range results {
		sources = append(sources, model.AnswerSource{
			FileName:  r.FileName,
			PageStart: r.PageStart,
			PageEnd:   r.PageEnd,
			Score:     r.Score,
			Content:   r.Content,
		})
	}
	return &model.AnswerResponse{
		Question:   req.Query,
		Answer:     answer,
		Sources:    sources,
		NumSources: len(sources),
	}, nil
}

// buildPrompt assembles the cited context block followed by the question.
func buildPrompt(question string, results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, r := range results {
		pages := fmt.Sprintf("page %d", r.PageStart)
		if r.PageEnd != r.PageStart {
			pages = fmt.Sprintf("pages %d-%d", r.PageStart, r.PageEnd)
		}
		fmt.Fprintf(&b, "[Source %d: %s, %s]\n%s\n\n", i+1, r.FileName, pages, r.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func (s *AnswerService) record(question, answer string, retrievalMillis, generationMillis int64, numRetrieved int, status string) {
	if s.queryLog == nil {
		return
	}
	entry := &model.QueryLog{
		Question:         question,
		Answer:           answer,
		RetrievalMillis:  retrievalMillis,
		GenerationMillis: generationMillis,
		NumRetrieved:     numRetrieved,
		Status:           status,
	}
	if err := s.queryLog.Create(entry); err != nil {
		log.Warnf("[Answer] failed to record query log: %v", err)
	}
}
