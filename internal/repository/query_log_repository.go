package repository

import (
	"gorm.io/gorm"

	"finrag-go/internal/model"
)

// QueryStats aggregates the query_logs table for the admin stats endpoint.
type QueryStats struct {
	TotalRequests        int64   `json:"total_requests"`
	AvgRetrievalMillis   float64 `json:"avg_retrieval_millis"`
	AvgGenerationMillis  float64 `json:"avg_generation_millis"`
	AvgTotalMillis       float64 `json:"avg_total_millis"`
	SuccessRatePercent   float64 `json:"success_rate_percent"`
	AvgDocumentsReturned float64 `json:"avg_documents_returned"`
}

// QueryLogRepository records per-question performance data.
type QueryLogRepository interface {
	Create(entry *model.QueryLog) error
	Stats() (*QueryStats, error)
}

type queryLogRepository struct {
	db *gorm.DB
}

// NewQueryLogRepository creates a new QueryLogRepository.
func NewQueryLogRepository(db *gorm.DB) QueryLogRepository {
	return &queryLogRepository{db: db}
}

// Create inserts one query log row.
func (r *queryLogRepository) Create(entry *model.QueryLog) error {
	return r.db.Create(entry).Error
}

// Stats computes aggregate performance numbers over all logged queries.
func (r *queryLogRepository) Stats() (*QueryStats, error) {
	var stats QueryStats

	if err := r.db.Model(&model.QueryLog{}).Count(&stats.TotalRequests).Error; err != nil {
		return nil, err
	}
	if stats.TotalRequests == 0 {
		return &stats, nil
	}

	row := r.db.Model(&model.QueryLog{}).
		Select(
			"AVG(retrieval_millis) AS avg_retrieval",
			"AVG(generation_millis) AS avg_generation",
			"AVG(retrieval_millis + generation_millis) AS avg_total",
			"AVG(num_retrieved) AS avg_docs",
			"SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) * 100.0 / COUNT(*) AS success_rate",
		).
		Row()
	if err := row.Scan(
		&stats.AvgRetrievalMillis,
		&stats.AvgGenerationMillis,
		&stats.AvgTotalMillis,
		&stats.AvgDocumentsReturned,
		&stats.SuccessRatePercent,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}
