package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
)

// buildZip assembles an in-memory zip with parts written in the given order.
func buildZip(t *testing.T, parts [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		if err != nil {
			t.Fatalf("zip create %s: %v", p[0], err)
		}
		if _, err := w.Write([]byte(p[1])); err != nil {
			t.Fatalf("zip write %s: %v", p[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

const coreXML = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Quarterly</dc:title><dc:creator>Finance</dc:creator><dcterms:created>2024-01-02T03:04:05Z</dcterms:created>
</cp:coreProperties>`

const docxXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">world</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Amount</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Alice</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>10</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>lonely</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:br/><w:t>line</w:t></w:r></w:p>
</w:body></w:document>`

// TestExtractDOCX validates body text, table extraction (one-row tables are
// dropped) and core properties.
func TestExtractDOCX(t *testing.T) {
	t.Parallel()

	data := buildZip(t, [][2]string{
		{"word/document.xml", docxXML},
		{"docProps/core.xml", coreXML},
	})
	doc, err := OOXML{}.ExtractDOCX(context.Background(), data)
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	if want := "Hello\tworld\nSecond\nline"; doc.Text != want {
		t.Fatalf("Text = %q, want %q", doc.Text, want)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("len(Tables) = %d, want 1", len(doc.Tables))
	}
	tbl := doc.Tables[0]
	if tbl.Index != 1 || !reflect.DeepEqual(tbl.Header, []string{"Name", "Amount"}) {
		t.Fatalf("table = %+v", tbl)
	}
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"Alice", "10"}}) {
		t.Fatalf("rows = %v", tbl.Rows)
	}
	if doc.Metadata["author"] != "Finance" || doc.Metadata["title"] != "Quarterly" {
		t.Fatalf("metadata = %v", doc.Metadata)
	}
	if doc.Metadata["subject"] != nil {
		t.Fatalf("subject = %v, want nil", doc.Metadata["subject"])
	}
	if doc.Metadata["table_count"] != 2 || doc.Metadata["paragraph_count"] != 2 {
		t.Fatalf("counts = %v/%v", doc.Metadata["table_count"], doc.Metadata["paragraph_count"])
	}
}

// TestExtractDOCX_Malformed validates that non-zip bytes and a zip without
// the main part both wrap ErrMalformed.
func TestExtractDOCX_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("plain text")},
		{"missing part", buildZip(t, [][2]string{{"docProps/core.xml", coreXML}})},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := (OOXML{}).ExtractDOCX(context.Background(), tt.data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("ExtractDOCX err = %v, want ErrMalformed", err)
			}
		})
	}
}

const slideNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

func slideXML(shapes string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><p:sld ` + slideNS + `><p:cSld><p:spTree>` + shapes + `</p:spTree></p:cSld></p:sld>`
}

func shapeXML(name, ph string, paras ...string) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="1" name="` + name + `"/><p:cNvSpPr/><p:nvPr>`)
	if ph != "" {
		b.WriteString(`<p:ph type="` + ph + `"/>`)
	}
	b.WriteString(`</p:nvPr></p:nvSpPr><p:txBody>`)
	for _, p := range paras {
		b.WriteString(`<a:p><a:r><a:t>` + p + `</a:t></a:r></a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}

const tableFrameXML = `<p:graphicFrame><a:graphic><a:graphicData><a:tbl>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>k</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:p><a:r><a:t>v</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>a</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:p><a:r><a:t>1</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`

const slideRels = `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide1.xml"/>
</Relationships>`

// TestExtractPPTX validates slide ordering (slide10 after slide2), titles,
// body text, notes, tables and media extraction.
func TestExtractPPTX(t *testing.T) {
	t.Parallel()

	data := buildZip(t, [][2]string{
		{"ppt/presentation.xml", `<p:presentation ` + slideNS + `/>`},
		{"ppt/slides/slide10.xml", slideXML(shapeXML("Title 1", "title", "Last"))},
		{"ppt/slides/slide1.xml", slideXML(shapeXML("Title 1", "ctrTitle", "Intro") + shapeXML("Content", "", "first", "second"))},
		{"ppt/slides/_rels/slide1.xml.rels", slideRels},
		{"ppt/notesSlides/notesSlide1.xml", slideXML(shapeXML("Notes", "body", "remember this"))},
		{"ppt/slides/slide2.xml", slideXML(shapeXML("Box", "", "numbers") + tableFrameXML)},
		{"ppt/media/image1.png", "PNGDATA"},
		{"docProps/core.xml", coreXML},
	})

	doc, err := OOXML{}.ExtractPPTX(context.Background(), data)
	if err != nil {
		t.Fatalf("ExtractPPTX: %v", err)
	}
	if len(doc.Slides) != 3 {
		t.Fatalf("len(Slides) = %d, want 3", len(doc.Slides))
	}
	s1 := doc.Slides[0]
	if s1.Number != 1 || s1.Title != "Intro" || s1.Notes != "remember this" {
		t.Fatalf("slide 1 = %+v", s1)
	}
	if !reflect.DeepEqual(s1.Body, []string{"first\nsecond"}) {
		t.Fatalf("slide 1 body = %q", s1.Body)
	}
	if doc.Slides[2].Title != "Last" {
		t.Fatalf("slide 3 title = %q, want %q", doc.Slides[2].Title, "Last")
	}
	if doc.Slides[1].Tables != 1 || len(doc.Tables) != 1 {
		t.Fatalf("tables = %d/%d, want 1/1", doc.Slides[1].Tables, len(doc.Tables))
	}
	if tbl := doc.Tables[0]; tbl.Page != 2 || tbl.Index != 1 || !reflect.DeepEqual(tbl.Header, []string{"k", "v"}) {
		t.Fatalf("table = %+v", tbl)
	}
	for _, want := range []string{"SLIDE 1: Intro", "first\nsecond", "Notes: remember this", "SLIDE 3: Last"} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("Text = %q, missing %q", doc.Text, want)
		}
	}
	if len(doc.Media) != 1 || doc.Media[0].Name != "image1.png" || string(doc.Media[0].Data) != "PNGDATA" {
		t.Fatalf("media = %+v", doc.Media)
	}
	if doc.Metadata["slide_count"] != 3 {
		t.Fatalf("slide_count = %v, want 3", doc.Metadata["slide_count"])
	}
}

// TestDecodeImage validates dimensions, format and mode for an encoded PNG
// and that non-images wrap ErrMalformed.
func TestDecodeImage(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 7, 3))
	img.Set(1, 1, color.Gray{Y: 200})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	info, err := ImageConfig{}.DecodeImage(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if info.Format != "PNG" || info.Width != 7 || info.Height != 3 || info.Mode != "L" {
		t.Fatalf("info = %+v", info)
	}
	if info.EXIF != nil {
		t.Fatalf("EXIF = %v, want nil", info.EXIF)
	}

	if _, err := (ImageConfig{}).DecodeImage(context.Background(), []byte("nope")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("DecodeImage(garbage) err = %v, want ErrMalformed", err)
	}
}

// TestRowCells validates that runs close together join into one cell and
// wide gaps start a new cell.
func TestRowCells(t *testing.T) {
	t.Parallel()

	line := pdf.TextHorizontal{
		{FontSize: 10, X: 100, W: 20, S: "Amount"},
		{FontSize: 10, X: 10, W: 20, S: "Na"},
		{FontSize: 10, X: 30, W: 10, S: "me"},
		{FontSize: 10, X: 43, W: 10, S: "x"},
	}
	want := []string{"Name x", "Amount"}
	if got := rowCells(line); !reflect.DeepEqual(got, want) {
		t.Fatalf("rowCells = %q, want %q", got, want)
	}
}

// TestDetectTables validates that only runs of two or more equally wide,
// multi-cell lines become tables.
func TestDetectTables(t *testing.T) {
	t.Parallel()

	lines := [][]string{
		{"Report title"},
		{"Name", "Amount"},
		{"Alice", "10"},
		{"Bob", "20"},
		{"Total 30"},
		{"a", "b", "c"},
		{"x", "y"},
	}
	got := detectTables(lines)
	if len(got) != 1 {
		t.Fatalf("len(detectTables) = %d, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0].Header, []string{"Name", "Amount"}) || len(got[0].Rows) != 2 {
		t.Fatalf("table = %+v", got[0])
	}
}

// TestExtractPDF_Malformed validates that garbage bytes fail with ErrMalformed.
func TestExtractPDF_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := (PDFText{}).ExtractPDF(context.Background(), []byte("%PDF-1.4 truncated")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("ExtractPDF err = %v, want ErrMalformed", err)
	}
}

// TestGrid validates header handling for extracted grids.
func TestGrid(t *testing.T) {
	t.Parallel()

	if _, ok := grid([][]string{{"only"}}); ok {
		t.Fatalf("grid(one row) ok = true, want false")
	}
	tbl, ok := grid([][]string{{"", " "}, {"1", "2"}})
	if !ok || !reflect.DeepEqual(tbl.Header, []string{"column_0", "column_1"}) {
		t.Fatalf("grid(blank header) = %+v, %v", tbl, ok)
	}
}
