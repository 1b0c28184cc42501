package extract

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// cellGap is the horizontal gap, in multiples of the font size, that splits
// two text runs on the same line into separate cells.
const cellGap = 2.0

// PDFText is the default PDF extractor. Text comes from each page's content
// stream; tables are recovered from runs of aligned multi-cell lines.
type PDFText struct{}

var _ PDF = PDFText{}

var pdfInfoKeys = map[string]string{
	"Author":       "author",
	"Creator":      "creator",
	"Producer":     "producer",
	"Subject":      "subject",
	"Title":        "title",
	"CreationDate": "creation_date",
}

func (PDFText) ExtractPDF(ctx context.Context, data []byte) (doc *Document, err error) {
	defer guard("pdf", &err)

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrMalformed, err)
	}

	doc = &Document{Metadata: map[string]any{}}
	info := r.Trailer().Key("Info")
	for key, name := range pdfInfoKeys {
		if v := info.Key(key); !v.IsNull() {
			doc.Metadata[name] = v.Text()
		}
	}

	pages := r.NumPage()
	doc.Metadata["page_count"] = pages

	var text strings.Builder
	for n := 1; n <= pages; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(n)
		if p.V.IsNull() {
			continue
		}
		if s, err := pageText(p); err == nil {
			text.WriteString(s)
		}
		rows, err := pageRows(p)
		if err != nil {
			continue
		}
		for i, t := range detectTables(rows) {
			t.Page = n
			t.Index = i + 1
			doc.Tables = append(doc.Tables, t)
		}
	}
	doc.Text = text.String()
	return doc, nil
}

func pageText(p pdf.Page) (s string, err error) {
	defer guard("pdf page", &err)
	return p.GetPlainText(nil)
}

// pageRows returns the page's lines top to bottom, each split into cells.
func pageRows(p pdf.Page) (out [][]string, err error) {
	defer guard("pdf page", &err)
	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
	for _, row := range rows {
		if cells := rowCells(row.Content); len(cells) > 0 {
			out = append(out, cells)
		}
	}
	return out, nil
}

// rowCells merges horizontally adjacent runs into cells.
func rowCells(line pdf.TextHorizontal) []string {
	runs := append(pdf.TextHorizontal(nil), line...)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var (
		cells []string
		cur   strings.Builder
		end   float64
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
	}
	for _, t := range runs {
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		if cur.Len() > 0 {
			gap := t.X - end
			switch {
			case gap > size*cellGap:
				flush()
			case gap > size*0.2:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(t.S)
		end = t.X + t.W
	}
	flush()
	return cells
}

// detectTables finds maximal runs of at least two consecutive lines that
// share the same cell count (two or more).
func detectTables(lines [][]string) []Table {
	var out []Table
	for i := 0; i < len(lines); {
		width := len(lines[i])
		j := i + 1
		for j < len(lines) && len(lines[j]) == width {
			j++
		}
		if width >= 2 && j-i >= 2 {
			out = append(out, Table{Header: lines[i], Rows: lines[i+1 : j]})
		}
		i = j
	}
	return out
}
