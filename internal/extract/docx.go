package extract

import (
	"context"
	"strings"
)

type docxDocument struct {
	Body struct {
		Paragraphs []xmlText   `xml:"p"`
		Tables     []docxTable `xml:"tbl"`
	} `xml:"body"`
}

type docxTable struct {
	Rows []struct {
		Cells []xmlText `xml:"tc"`
	} `xml:"tr"`
}

// ExtractDOCX reads body paragraphs as text and each top-level table as a
// Table. Text inside tables is not repeated in Text.
func (OOXML) ExtractDOCX(ctx context.Context, data []byte) (*Document, error) {
	c, err := openContainer(data)
	if err != nil {
		return nil, err
	}
	var d docxDocument
	if err := c.decode("word/document.xml", &d); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paras := make([]string, 0, len(d.Body.Paragraphs))
	for _, p := range d.Body.Paragraphs {
		paras = append(paras, p.String())
	}

	doc := &Document{
		Text:     strings.Join(paras, "\n"),
		Metadata: c.coreMetadata(),
	}
	for i, tbl := range d.Body.Tables {
		rows := make([][]string, 0, len(tbl.Rows))
		for _, r := range tbl.Rows {
			cells := make([]string, 0, len(r.Cells))
			for _, cell := range r.Cells {
				cells = append(cells, strings.TrimSpace(cell.String()))
			}
			rows = append(rows, cells)
		}
		if t, ok := grid(rows); ok {
			t.Index = i + 1
			doc.Tables = append(doc.Tables, t)
		}
	}
	doc.Metadata["paragraph_count"] = len(paras)
	doc.Metadata["table_count"] = len(d.Body.Tables)
	return doc, nil
}
