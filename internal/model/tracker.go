package model

import "time"

// ProcessedFile maps to the processed_files table. One row per fully
// ingested file; deleted only on explicit operator reset.
type ProcessedFile struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileName    string    `gorm:"type:varchar(512);not null;uniqueIndex" json:"fileName"`
	ChunkCount  int       `gorm:"not null" json:"chunkCount"`
	ProcessedAt time.Time `gorm:"not null" json:"processedAt"`
}

// TableName sets the table name for this model.
func (ProcessedFile) TableName() string {
	return "processed_files"
}

// QueryLog maps to the query_logs table. One row per answered question,
// used for the admin performance stats.
type QueryLog struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Question         string    `gorm:"type:varchar(512);not null" json:"question"`
	Answer           string    `gorm:"type:text" json:"answer"`
	RetrievalMillis  int64     `gorm:"not null" json:"retrievalMillis"`
	GenerationMillis int64     `gorm:"not null" json:"generationMillis"`
	NumRetrieved     int       `gorm:"not null" json:"numRetrieved"`
	Status           string    `gorm:"type:varchar(32);not null" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName sets the table name for this model.
func (QueryLog) TableName() string {
	return "query_logs"
}
