package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// TikaExtractor extracts text through a remote Apache Tika server. Tika
// returns the whole document as one text blob, so the result is a single
// page numbered 1.
type TikaExtractor struct {
	serverURL string
	client    *http.Client
}

// NewTikaExtractor creates an extractor backed by the Tika server at serverURL.
func NewTikaExtractor(serverURL string) *TikaExtractor {
	return &TikaExtractor{
		serverURL: serverURL,
		client:    http.DefaultClient,
	}
}

// ExtractFile extracts text from the file at path via Tika.
func (e *TikaExtractor) ExtractFile(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return e.extract(f, filepath.Base(path))
}

// Extract extracts text from an in-memory document via Tika.
func (e *TikaExtractor) Extract(r io.ReaderAt, size int64, fileName string) ([]Page, error) {
	return e.extract(io.NewSectionReader(r, 0, size), fileName)
}

func (e *TikaExtractor) extract(body io.Reader, fileName string) ([]Page, error) {
	req, err := http.NewRequest(http.MethodPut, e.serverURL+"/tika", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build tika request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(fileName))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tika call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tika returned [%d]: %s", resp.StatusCode, string(b))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read tika response: %w", err)
	}

	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}

// detectMimeType maps the file extension to a Content-Type.
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
