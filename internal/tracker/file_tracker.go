package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileTracker persists the processed set as a JSON map on disk. Writes go
// through a temp file and rename so a crash never leaves a torn state.
type FileTracker struct {
	path    string
	mu      sync.Mutex
	entries map[string]Entry
}

// NewFileTracker opens (or creates) the tracker state at path.
func NewFileTracker(path string) (*FileTracker, error) {
	t := &FileTracker{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to read tracker state %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t.entries); err != nil {
			return nil, fmt.Errorf("failed to parse tracker state %s: %w", path, err)
		}
	}
	return t, nil
}

// IsProcessed reports whether fileName has a tracker entry.
func (t *FileTracker) IsProcessed(fileName string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[fileName]
	return ok, nil
}

// MarkProcessed records a successful ingestion of fileName.
func (t *FileTracker) MarkProcessed(fileName string, chunkCount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fileName] = Entry{
		ProcessedAt: time.Now().UTC(),
		ChunkCount:  chunkCount,
	}
	return t.persist()
}

// Reset removes the entry for fileName.
func (t *FileTracker) Reset(fileName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, fileName)
	return t.persist()
}

// ResetAll removes every entry.
func (t *FileTracker) ResetAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]Entry)
	return t.persist()
}

// persist writes the state atomically. Caller holds the mutex.
func (t *FileTracker) persist() error {
	data, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create tracker dir: %w", err)
		}
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tracker state: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace tracker state: %w", err)
	}
	return nil
}
