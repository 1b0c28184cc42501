// Package extract pulls text, tables and metadata out of documents and
// images. The ingest engine consumes the interfaces declared here; the
// package also provides pure-Go default implementations.
package extract

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformed wraps any failure to parse a document container.
var ErrMalformed = errors.New("malformed document")

// Table is a grid pulled out of a document. The first row of the source
// grid becomes Header.
type Table struct {
	// Page is the 1-based page (PDF) or slide (PPTX) the table came from;
	// 0 for DOCX.
	Page int
	// Index is 1-based within Page (or within the document for DOCX).
	Index  int
	Header []string
	Rows   [][]string
}

// Slide is the per-slide structure written next to a presentation's text.
type Slide struct {
	Number int      `json:"slide_number"`
	Title  string   `json:"title"`
	Body   []string `json:"body"`
	Notes  string   `json:"notes"`
	Tables int      `json:"table_count"`
}

// Media is an embedded file (usually a picture) found inside a container.
type Media struct {
	Name string
	Data []byte
}

// Document is the result of a document extraction.
type Document struct {
	Text     string
	Tables   []Table
	Slides   []Slide
	Media    []Media
	Metadata map[string]any
}

// ImageInfo is what the image decoder learns without decoding pixels.
type ImageInfo struct {
	Format string
	Width  int
	Height int
	Mode   string
	EXIF   map[string]string
}

// PDF extracts text and tables from PDF bytes.
type PDF interface {
	ExtractPDF(ctx context.Context, data []byte) (*Document, error)
}

// Office extracts text and tables from OOXML documents.
type Office interface {
	ExtractDOCX(ctx context.Context, data []byte) (*Document, error)
	ExtractPPTX(ctx context.Context, data []byte) (*Document, error)
}

// Image reads dimensions, format and EXIF from image bytes.
type Image interface {
	DecodeImage(ctx context.Context, data []byte) (*ImageInfo, error)
}

// OCR recognizes text in an image. There is no default implementation.
type OCR interface {
	Recognize(ctx context.Context, data []byte, format string) (string, error)
}

// guard converts a panic inside a third-party parser into ErrMalformed.
func guard(kind string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %s parser panic: %v", ErrMalformed, kind, r)
	}
}
