package cv

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of an uploaded document.
type Extractor interface {
	Extract(document []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(document []byte) (string, error)

func (f ExtractorFunc) Extract(document []byte) (string, error) {
	return f(document)
}

// PDFExtractor reads the text layer of a PDF. Image-only PDFs yield "".
type PDFExtractor struct{}

func (PDFExtractor) Extract(document []byte) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
