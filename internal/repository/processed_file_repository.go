// Package repository provides the GORM-backed data access layer.
package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finrag-go/internal/model"
)

// ProcessedFileRepository is the MySQL-backed processed-file tracker.
// It implements tracker.Tracker.
type ProcessedFileRepository interface {
	IsProcessed(fileName string) (bool, error)
	MarkProcessed(fileName string, chunkCount int) error
	Reset(fileName string) error
	ResetAll() error
	List() ([]*model.ProcessedFile, error)
}

type processedFileRepository struct {
	db *gorm.DB
}

// NewProcessedFileRepository creates a new ProcessedFileRepository.
func NewProcessedFileRepository(db *gorm.DB) ProcessedFileRepository {
	return &processedFileRepository{db: db}
}

// IsProcessed reports whether a row exists for fileName.
func (r *processedFileRepository) IsProcessed(fileName string) (bool, error) {
	var pf model.ProcessedFile
	err := r.db.Where("file_name = ?", fileName).First(&pf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkProcessed upserts the row for fileName. Marking twice only refreshes
// the timestamp.
func (r *processedFileRepository) MarkProcessed(fileName string, chunkCount int) error {
	record := model.ProcessedFile{
		FileName:    fileName,
		ChunkCount:  chunkCount,
		ProcessedAt: time.Now().UTC(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"chunk_count", "processed_at"}),
	}).Create(&record).Error
}

// Reset deletes the row for fileName.
func (r *processedFileRepository) Reset(fileName string) error {
	return r.db.Where("file_name = ?", fileName).Delete(&model.ProcessedFile{}).Error
}

// ResetAll deletes every tracker row.
func (r *processedFileRepository) ResetAll() error {
	return r.db.Where("1 = 1").Delete(&model.ProcessedFile{}).Error
}

// List returns every tracker row, newest first.
func (r *processedFileRepository) List() ([]*model.ProcessedFile, error) {
	var files []*model.ProcessedFile
	err := r.db.Order("processed_at DESC").Find(&files).Error
	return files, err
}
