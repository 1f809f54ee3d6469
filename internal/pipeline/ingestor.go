// Package pipeline orchestrates document ingestion: discovery, dedup
// tracking, extraction, chunking, embedding and batch indexing.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"finrag-go/internal/chunker"
	"finrag-go/internal/config"
	"finrag-go/internal/model"
	"finrag-go/internal/tracker"
	"finrag-go/pkg/embedding"
	"finrag-go/pkg/extract"
	"finrag-go/pkg/log"
	"finrag-go/pkg/tasks"
)

// Store is the slice of the vector store the pipeline writes to.
type Store interface {
	Insert(ctx context.Context, records []model.ChunkRecord) error
	DeleteByFileName(ctx context.Context, fileName string) error
}

// BucketSource lists and fetches documents from an object store.
type BucketSource interface {
	List(ctx context.Context, extension string) ([]string, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Ingestor runs the ingestion pipeline. All collaborators are injected.
type Ingestor struct {
	extractor extract.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Client
	store     Store
	tracker   tracker.Tracker
	bucket    BucketSource
	cfg       config.IngestionConfig
	locks     *keyedMutex
}

// NewIngestor creates a new Ingestor. bucket may be nil when no object
// store is configured.
func NewIngestor(
	extractor extract.Extractor,
	ch *chunker.Chunker,
	embedder embedding.Client,
	store Store,
	tr tracker.Tracker,
	bucket BucketSource,
	cfg config.IngestionConfig,
) *Ingestor {
	if cfg.Extension == "" {
		cfg.Extension = ".pdf"
	}
	return &Ingestor{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		tracker:   tr,
		bucket:    bucket,
		cfg:       cfg,
		locks:     newKeyedMutex(),
	}
}

// IngestFolder scans path for candidate files and ingests every one the
// tracker has not seen. Per-file failures land in the failed bucket and
// never abort the rest of the batch.
func (p *Ingestor) IngestFolder(ctx context.Context, path string) (*model.IngestReport, error) {
	if path == "" {
		path = p.cfg.RawFilesPath
	}
	log.Infof("[Ingestor] starting folder ingestion, path: %s", path)

	files, err := p.DiscoverFolder(path)
	if err != nil {
		return nil, err
	}
	log.Infof("[Ingestor] found %d candidate files", len(files))

	report := newReport()
	for _, fileName := range files {
		fullPath := filepath.Join(path, fileName)
		p.ingestTracked(ctx, fileName, report, func() ([]extract.Page, error) {
			return p.extractor.ExtractFile(fullPath)
		})
	}

	log.Infof("[Ingestor] folder ingestion finished: processed=%d skipped=%d failed=%d",
		len(report.Processed), len(report.Skipped), len(report.Failed))
	return report, nil
}

// IngestBucket ingests every candidate object from the configured bucket,
// tracker-gated like folder ingestion.
func (p *Ingestor) IngestBucket(ctx context.Context) (*model.IngestReport, error) {
	if p.bucket == nil {
		return nil, fmt.Errorf("no bucket source configured")
	}
	log.Info("[Ingestor] starting bucket ingestion")

	names, err := p.bucket.List(ctx, p.cfg.Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}
	log.Infof("[Ingestor] found %d candidate objects", len(names))

	report := newReport()
	for _, name := range names {
		objectName := name
		p.ingestTracked(ctx, objectName, report, func() ([]extract.Page, error) {
			data, err := p.bucket.Fetch(ctx, objectName)
			if err != nil {
				return nil, err
			}
			return p.extractor.Extract(bytes.NewReader(data), int64(len(data)), objectName)
		})
	}

	log.Infof("[Ingestor] bucket ingestion finished: processed=%d skipped=%d failed=%d",
		len(report.Processed), len(report.Skipped), len(report.Failed))
	return report, nil
}

// IngestFile ingests a single file immediately, without consulting or
// updating the tracker. The caller owns any dedup decision.
func (p *Ingestor) IngestFile(ctx context.Context, path string) (*model.IngestResult, error) {
	fileName := filepath.Base(path)
	log.Infof("[Ingestor] single-file ingestion: %s", fileName)

	pages, err := p.extractor.ExtractFile(path)
	if err != nil {
		return nil, &model.ExtractionError{FileName: fileName, Err: err}
	}
	count, err := p.indexPages(ctx, fileName, pages)
	if err != nil {
		return nil, err
	}
	return &model.IngestResult{FileName: fileName, ChunksIndexed: count}, nil
}

// IngestReader ingests an in-memory document immediately, tracker-free.
// Used by the upload endpoint.
func (p *Ingestor) IngestReader(ctx context.Context, fileName string, r io.ReaderAt, size int64) (*model.IngestResult, error) {
	log.Infof("[Ingestor] reader ingestion: %s (%d bytes)", fileName, size)

	pages, err := p.extractor.Extract(r, size, fileName)
	if err != nil {
		return nil, &model.ExtractionError{FileName: fileName, Err: err}
	}
	count, err := p.indexPages(ctx, fileName, pages)
	if err != nil {
		return nil, err
	}
	return &model.IngestResult{FileName: fileName, ChunksIndexed: count}, nil
}

// ProcessTask handles one async ingestion task from Kafka. Tracked, so a
// redelivered task for an already ingested file is a no-op.
func (p *Ingestor) ProcessTask(ctx context.Context, task tasks.IngestTask) error {
	report := newReport()

	switch task.Source {
	case tasks.SourceBucket:
		if p.bucket == nil {
			return fmt.Errorf("no bucket source configured")
		}
		p.ingestTracked(ctx, task.FileName, report, func() ([]extract.Page, error) {
			data, err := p.bucket.Fetch(ctx, task.FileName)
			if err != nil {
				return nil, err
			}
			return p.extractor.Extract(bytes.NewReader(data), int64(len(data)), task.FileName)
		})
	default:
		fullPath := filepath.Join(p.cfg.RawFilesPath, task.FileName)
		p.ingestTracked(ctx, task.FileName, report, func() ([]extract.Page, error) {
			return p.extractor.ExtractFile(fullPath)
		})
	}

	if len(report.Failed) > 0 {
		return fmt.Errorf("ingest task failed: %s", report.Failed[0].Reason)
	}
	return nil
}

// DiscoverFolder lists the candidate file names in path, sorted by name.
func (p *Ingestor) DiscoverFolder(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("raw files directory unavailable: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), p.cfg.Extension) {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// ingestTracked runs the full check -> extract -> chunk -> embed -> insert
// -> mark sequence for one file under its per-file lock and buckets the
// outcome into the report.
func (p *Ingestor) ingestTracked(ctx context.Context, fileName string, report *model.IngestReport, extractFn func() ([]extract.Page, error)) {
	unlock := p.locks.Lock(fileName)
	defer unlock()

	processed, err := p.tracker.IsProcessed(fileName)
	if err != nil {
		report.Failed = append(report.Failed, model.IngestFailure{FileName: fileName, Reason: fmt.Sprintf("tracker check failed: %v", err)})
		return
	}
	if processed {
		log.Infof("[Ingestor] skipping already processed file: %s", fileName)
		report.Skipped = append(report.Skipped, fileName)
		return
	}

	pages, err := extractFn()
	if err != nil {
		extErr := &model.ExtractionError{FileName: fileName, Err: err}
		log.Errorf("[Ingestor] %v", extErr)
		report.Failed = append(report.Failed, model.IngestFailure{FileName: fileName, Reason: extErr.Error()})
		return
	}

	count, err := p.indexPages(ctx, fileName, pages)
	if err != nil {
		log.Errorf("[Ingestor] indexing failed for %s: %v", fileName, err)
		report.Failed = append(report.Failed, model.IngestFailure{FileName: fileName, Reason: err.Error()})
		return
	}

	if err := p.tracker.MarkProcessed(fileName, count); err != nil {
		// Chunks are stored but the mark failed; report the file failed so
		// the operator notices. The next run re-inserts idempotently.
		report.Failed = append(report.Failed, model.IngestFailure{FileName: fileName, Reason: fmt.Sprintf("tracker update failed: %v", err)})
		return
	}

	log.Infof("[Ingestor] indexed %d chunks from %s", count, fileName)
	report.Processed = append(report.Processed, model.IngestResult{FileName: fileName, ChunksIndexed: count})
}

// indexPages chunks the pages, embeds every chunk and writes the file's
// records in one batch. Any failure leaves nothing committed: a rejected
// bulk insert is compensated with a delete of the file's chunks.
func (p *Ingestor) indexPages(ctx context.Context, fileName string, pages []extract.Page) (int, error) {
	records := p.chunker.Chunk(fileName, pages)
	if len(records) == 0 {
		log.Warnf("[Ingestor] no text extracted from %s", fileName)
		return 0, nil
	}
	log.Infof("[Ingestor] %s: %d pages -> %d chunks", fileName, len(pages), len(records))

	for i := range records {
		vector, err := p.embedder.CreateEmbedding(ctx, records[i].Text)
		if err != nil {
			return 0, fmt.Errorf("chunk %s: %w", records[i].ChunkID, err)
		}
		records[i].Vector = vector
	}

	if err := p.store.Insert(ctx, records); err != nil {
		// The bulk write may have applied some items before the rejected
		// one; delete the file's chunks so the store holds all or nothing.
		if delErr := p.store.DeleteByFileName(ctx, fileName); delErr != nil {
			log.Warnf("[Ingestor] failed to clean up partial insert for %s: %v", fileName, delErr)
		}
		return 0, err
	}
	return len(records), nil
}

func newReport() *model.IngestReport {
	return &model.IngestReport{
		Processed: []model.IngestResult{},
		Skipped:   []string{},
		Failed:    []model.IngestFailure{},
	}
}
