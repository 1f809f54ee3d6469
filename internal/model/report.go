package model

// IngestResult reports a successfully ingested file.
type IngestResult struct {
	FileName      string `json:"file_name"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// IngestFailure reports a file that failed ingestion and why.
type IngestFailure struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// IngestReport summarises one ingestion run. Each file lands in exactly
// one bucket.
type IngestReport struct {
	Processed []IngestResult  `json:"processed"`
	Skipped   []string        `json:"skipped"`
	Failed    []IngestFailure `json:"failed"`
}

// AnswerSource is one citation attached to a generated answer.
type AnswerSource struct {
	FileName  string  `json:"file_name"`
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
}

// AnswerResponse is the result of the retrieve-then-generate flow.
type AnswerResponse struct {
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Sources    []AnswerSource `json:"sources"`
	NumSources int            `json:"num_sources"`
}
