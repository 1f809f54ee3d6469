package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag-go/internal/chunker"
	"finrag-go/internal/config"
	"finrag-go/internal/model"
	"finrag-go/internal/tracker"
	"finrag-go/pkg/extract"
)

type fakeExtractor struct {
	pages map[string][]extract.Page
	errs  map[string]error
	calls int
}

func (f *fakeExtractor) ExtractFile(path string) ([]extract.Page, error) {
	return f.byName(filepath.Base(path))
}

func (f *fakeExtractor) Extract(r io.ReaderAt, size int64, fileName string) ([]extract.Page, error) {
	return f.byName(fileName)
}

func (f *fakeExtractor) byName(name string) ([]extract.Page, error) {
	f.calls++
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return f.pages[name], nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	delay, err := f.delay, f.err
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu        sync.Mutex
	batches   [][]model.ChunkRecord
	insertErr error
	deleted   []string
}

func (f *fakeStore) Insert(ctx context.Context, records []model.ChunkRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeStore) DeleteByFileName(ctx context.Context, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileName)
	return nil
}

type fakeBucket struct {
	objects []string
}

func (f *fakeBucket) List(ctx context.Context, extension string) ([]string, error) {
	return f.objects, nil
}

func (f *fakeBucket) Fetch(ctx context.Context, name string) ([]byte, error) {
	return []byte("raw"), nil
}

// twoPageDoc yields three ~1000-char chunks: two from page 1, one from
// page 2.
func twoPageDoc() []extract.Page {
	return []extract.Page{
		{Number: 1, Text: strings.Repeat("alpha ", 300)},
		{Number: 2, Text: strings.Repeat("beta ", 100)},
	}
}

type fixture struct {
	ingestor  *Ingestor
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	store     *fakeStore
	tracker   *tracker.FileTracker
	dir       string
}

func newFixture(t *testing.T, pages map[string][]extract.Page, errs map[string]error) *fixture {
	t.Helper()

	dir := t.TempDir()
	for name := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("pdf"), 0o644))
	}
	for name := range errs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("pdf"), 0o644))
	}

	tr, err := tracker.NewFileTracker(filepath.Join(t.TempDir(), "processed.json"))
	require.NoError(t, err)

	f := &fixture{
		extractor: &fakeExtractor{pages: pages, errs: errs},
		embedder:  &fakeEmbedder{},
		store:     &fakeStore{},
		tracker:   tr,
		dir:       dir,
	}
	f.ingestor = NewIngestor(
		f.extractor,
		chunker.New(1000),
		f.embedder,
		f.store,
		f.tracker,
		&fakeBucket{},
		config.IngestionConfig{RawFilesPath: dir, Extension: ".pdf", ChunkSize: 1000},
	)
	return f
}

func TestIngestFolder_ReportsProcessedFile(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)

	report, err := f.ingestor.IngestFolder(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, report.Processed, 1)
	assert.Equal(t, model.IngestResult{FileName: "report.pdf", ChunksIndexed: 3}, report.Processed[0])
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	require.Len(t, f.store.batches, 1)
	assert.Len(t, f.store.batches[0], 3)
	assert.Equal(t, 3, f.embedder.callCount())

	processed, err := f.tracker.IsProcessed("report.pdf")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestIngestFolder_RerunSkipsWithoutReembedding(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)
	ctx := context.Background()

	_, err := f.ingestor.IngestFolder(ctx, "")
	require.NoError(t, err)
	embedCalls := f.embedder.callCount()
	insertBatches := len(f.store.batches)

	report, err := f.ingestor.IngestFolder(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"report.pdf"}, report.Skipped)
	assert.Empty(t, report.Processed)
	assert.Equal(t, embedCalls, f.embedder.callCount(), "skipped file must not be re-embedded")
	assert.Equal(t, insertBatches, len(f.store.batches), "skipped file must not be re-inserted")
}

func TestIngestFolder_FailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t,
		map[string][]extract.Page{"good.pdf": twoPageDoc()},
		map[string]error{"corrupt.pdf": errors.New("bad xref table")},
	)

	report, err := f.ingestor.IngestFolder(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, report.Processed, 1)
	assert.Equal(t, "good.pdf", report.Processed[0].FileName)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "corrupt.pdf", report.Failed[0].FileName)
	assert.Contains(t, report.Failed[0].Reason, "bad xref table")

	processed, err := f.tracker.IsProcessed("corrupt.pdf")
	require.NoError(t, err)
	assert.False(t, processed, "failed file must stay unprocessed for retry")
}

func TestIngestFolder_InsertFailureCompensatesAndStaysUntracked(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)
	f.store.insertErr = &model.StorageWriteError{Err: errors.New("mapping conflict")}

	report, err := f.ingestor.IngestFolder(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "report.pdf", report.Failed[0].FileName)
	assert.Equal(t, []string{"report.pdf"}, f.store.deleted, "partial insert must be cleaned up")

	processed, err := f.tracker.IsProcessed("report.pdf")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestIngestFolder_EmbeddingFailureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)
	f.embedder.err = &model.EmbeddingError{Err: errors.New("deadline exceeded")}

	report, err := f.ingestor.IngestFolder(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Empty(t, f.store.batches)

	processed, err := f.tracker.IsProcessed("report.pdf")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestIngestFolder_ResetReproducesChunkIDs(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)
	ctx := context.Background()

	_, err := f.ingestor.IngestFolder(ctx, "")
	require.NoError(t, err)
	require.Len(t, f.store.batches, 1)
	firstIDs := chunkIDs(f.store.batches[0])

	require.NoError(t, f.tracker.Reset("report.pdf"))

	_, err = f.ingestor.IngestFolder(ctx, "")
	require.NoError(t, err)
	require.Len(t, f.store.batches, 2)

	assert.Equal(t, firstIDs, chunkIDs(f.store.batches[1]),
		"re-ingestion after reset must reproduce identical chunk_ids")
}

func TestIngestFolder_IgnoresOtherExtensions(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("x"), 0o644))

	report, err := f.ingestor.IngestFolder(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.Equal(t, "report.pdf", report.Processed[0].FileName)
}

func TestIngestFolder_MissingDirectory(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{}, nil)

	_, err := f.ingestor.IngestFolder(context.Background(), filepath.Join(f.dir, "does-not-exist"))
	assert.Error(t, err)
}

func TestIngestFile_DoesNotConsultTracker(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)

	result, err := f.ingestor.IngestFile(context.Background(), filepath.Join(f.dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, &model.IngestResult{FileName: "report.pdf", ChunksIndexed: 3}, result)

	processed, err := f.tracker.IsProcessed("report.pdf")
	require.NoError(t, err)
	assert.False(t, processed, "single-file ingestion must not update the tracker")
}

func TestIngestFile_NoExtractableText(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"empty.pdf": nil}, nil)

	result, err := f.ingestor.IngestFile(context.Background(), filepath.Join(f.dir, "empty.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksIndexed)
	assert.Empty(t, f.store.batches)
}

func TestIngestBucket_Tracked(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"object.pdf": twoPageDoc()}, nil)
	f.ingestor.bucket = &fakeBucket{objects: []string{"object.pdf"}}
	ctx := context.Background()

	report, err := f.ingestor.IngestBucket(ctx)
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.Equal(t, 3, report.Processed[0].ChunksIndexed)

	report, err = f.ingestor.IngestBucket(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"object.pdf"}, report.Skipped)
}

func TestIngestFolder_ConcurrentRunsProcessFileOnce(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"report.pdf": twoPageDoc()}, nil)
	// Slow embedding widens the window between the tracker check and the
	// mark; without the per-file lock both runs would embed and insert.
	f.embedder.delay = 30 * time.Millisecond

	var wg sync.WaitGroup
	reports := make([]*model.IngestReport, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = f.ingestor.IngestFolder(context.Background(), "")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	processed, skipped := 0, 0
	for _, report := range reports {
		require.Empty(t, report.Failed)
		processed += len(report.Processed)
		skipped += len(report.Skipped)
	}
	assert.Equal(t, 1, processed, "exactly one run may process the file")
	assert.Equal(t, 1, skipped, "the other run must skip it")
	assert.Len(t, f.store.batches, 1, "the file's chunks must be inserted once")
	assert.Equal(t, 3, f.embedder.callCount(), "the losing run must not embed")
}

func TestIngestFolder_EmptyFileMarkedProcessed(t *testing.T) {
	f := newFixture(t, map[string][]extract.Page{"empty.pdf": nil}, nil)

	report, err := f.ingestor.IngestFolder(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, report.Processed, 1)
	assert.Equal(t, model.IngestResult{FileName: "empty.pdf", ChunksIndexed: 0}, report.Processed[0])
	assert.Empty(t, f.store.batches)

	processed, err := f.tracker.IsProcessed("empty.pdf")
	require.NoError(t, err)
	assert.True(t, processed, "a file with no extractable text is not retried on the next run")
}

func chunkIDs(records []model.ChunkRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ChunkID)
	}
	return ids
}
