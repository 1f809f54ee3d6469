package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts page text from PDF files in-process.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractFile extracts the text of every page of the PDF at path.
func (e *PDFExtractor) ExtractFile(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	return readPages(reader)
}

// Extract extracts page text from an in-memory PDF.
func (e *PDFExtractor) Extract(r io.ReaderAt, size int64, fileName string) ([]Page, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf %s: %w", fileName, err)
	}
	return readPages(reader)
}

// readPages walks the document page by page. Pages with no extractable
// text are skipped, matching the page numbering of the source document.
func readPages(reader *pdf.Reader) ([]Page, error) {
	var pages []Page
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			// One unreadable page does not fail the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
