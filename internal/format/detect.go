// Package format classifies an object into a processing family.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

// Family is the processing family chosen for an object.
type Family string

const (
	CSV     Family = "csv"
	JSON    Family = "json"
	Parquet Family = "parquet"
	PDF     Family = "pdf"
	DOCX    Family = "docx"
	PPTX    Family = "pptx"
	Image   Family = "image"
)

// Tabular reports whether the family is read by the tabular reader.
func (f Family) Tabular() bool {
	return f == CSV || f == JSON || f == Parquet
}

// ErrUnsupported is returned for extensions the engine does not process.
var ErrUnsupported = errors.New("unsupported format")

// jsonProbeBytes bounds the prefix inspected when the extension is ambiguous.
const jsonProbeBytes = 64 * 1024

var byExtension = map[string]Family{
	"csv":     CSV,
	"tsv":     CSV,
	"json":    JSON,
	"ndjson":  JSON,
	"jsonl":   JSON,
	"parquet": Parquet,
	"pq":      Parquet,
	"pdf":     PDF,
	"docx":    DOCX,
	"doc":     DOCX,
	"pptx":    PPTX,
	"ppt":     PPTX,
	"png":     Image,
	"jpg":     Image,
	"jpeg":    Image,
	"tif":     Image,
	"tiff":    Image,
	"gif":     Image,
	"bmp":     Image,
	"webp":    Image,
}

// ambiguous extensions are tabular, but the bytes decide between JSON and CSV.
var ambiguous = map[string]bool{
	"":    true,
	"txt": true,
	"dat": true,
}

// Extension returns the lowercased last dot segment of the object's base name,
// without the dot. It returns "" when there is none.
func Extension(objectPath string) string {
	base := path.Base(objectPath)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Detect classifies objectPath/data. Unknown extensions fail fast with
// ErrUnsupported so no extraction or catalog work happens for them.
func Detect(objectPath string, data []byte) (Family, error) {
	ext := Extension(objectPath)
	if f, ok := byExtension[ext]; ok {
		return f, nil
	}
	if ambiguous[ext] {
		if LooksLikeJSON(data) {
			return JSON, nil
		}
		return CSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// LooksLikeJSON parses a prefix of data as JSON. For a document that fits in
// the prefix the whole document must be valid; otherwise the first line must
// be a valid JSON value (NDJSON).
func LooksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	if len(trimmed) <= jsonProbeBytes && gjson.ValidBytes(trimmed) {
		return true
	}
	line := trimmed
	if i := bytes.IndexByte(trimmed, '\n'); i >= 0 {
		line = trimmed[:i]
	}
	if len(line) > jsonProbeBytes {
		line = line[:jsonProbeBytes]
	}
	return gjson.ValidBytes(bytes.TrimSpace(line))
}

// Legacy reports whether the extension is an old binary Office format that
// can be detected but not parsed in depth.
func Legacy(objectPath string) bool {
	switch Extension(objectPath) {
	case "doc", "ppt":
		return true
	}
	return false
}
