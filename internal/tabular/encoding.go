package tabular

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// detectionSampleBytes bounds the sample handed to the charset detector.
const detectionSampleBytes = 64 * 1024

// encodingCandidates returns the ordered list of encodings to try.
//
// A confident detection yields just that encoding. Below minConfidence the
// list is detected, utf-8, latin-1, cp1252 with duplicates removed.
func encodingCandidates(data []byte, minConfidence float64) []string {
	if bytes.HasPrefix(data, utf8BOM) {
		return []string{"utf-8"}
	}

	sample := data
	if len(sample) > detectionSampleBytes {
		sample = sample[:detectionSampleBytes]
	}

	detected := ""
	confidence := 0.0
	if res, err := chardet.NewTextDetector().DetectBest(sample); err == nil && res != nil {
		detected = canonicalEncodingName(res.Charset)
		confidence = float64(res.Confidence) / 100
	}

	if detected != "" && confidence >= minConfidence {
		return []string{detected}
	}

	out := make([]string, 0, 4)
	seen := map[string]bool{}
	for _, name := range []string{detected, "utf-8", "latin-1", "cp1252"} {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func canonicalEncodingName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return "utf-8"
	case "iso-8859-1", "latin-1", "latin1":
		return "latin-1"
	case "windows-1252", "cp1252":
		return "cp1252"
	}
	return n
}

// decode converts data to UTF-8 using the named encoding. It returns false
// when the bytes are not valid in that encoding.
func decode(data []byte, name string) (string, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var enc encoding.Encoding
	switch name {
	case "utf-8":
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	case "latin-1":
		enc = charmap.ISO8859_1
	case "cp1252":
		enc = charmap.Windows1252
	default:
		e, err := htmlindex.Get(name)
		if err != nil {
			e, err = ianaindex.IANA.Encoding(name)
		}
		if err != nil || e == nil {
			return "", false
		}
		enc = e
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}
