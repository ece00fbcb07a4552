package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// TextExtractor turns raw PDF bytes into plain text
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte) (*ExtractionResult, error)
}

// PDFExtractor extracts text with the pure-Go ledongthuc/pdf reader
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractionResult contains the result of PDF text extraction
type ExtractionResult struct {
	Text           string
	Pages          int
	ProcessingTime time.Duration
}

// ExtractText reads every page and joins their plain text with newlines.
// Any reader failure, including a panic inside the parser on malformed input,
// is reported as ErrPDFParse.
func (e *PDFExtractor) ExtractText(ctx context.Context, content []byte) (result *ExtractionResult, err error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrPDFParse)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrPDFParse, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFParse, err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrPDFParse, i, err)
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}

	return &ExtractionResult{
		Text:           b.String(),
		Pages:          pages,
		ProcessingTime: time.Since(start),
	}, nil
}
