package extract

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

type pptxSlide struct {
	Tree pptxGroup `xml:"cSld>spTree"`
}

type pptxGroup struct {
	Shapes []pptxShape `xml:"sp"`
	Frames []pptxFrame `xml:"graphicFrame"`
	Groups []pptxGroup `xml:"grpSp"`
}

type pptxShape struct {
	NonVisual struct {
		Props struct {
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
		Placeholder struct {
			Type string `xml:"type,attr"`
		} `xml:"nvPr>ph"`
	} `xml:"nvSpPr"`
	Paragraphs []xmlText `xml:"txBody>p"`
}

type pptxFrame struct {
	Rows []struct {
		Cells []xmlText `xml:"tc"`
	} `xml:"graphic>graphicData>tbl>tr"`
}

type relationships struct {
	Items []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func (s pptxShape) text() string {
	lines := make([]string, 0, len(s.Paragraphs))
	for _, p := range s.Paragraphs {
		lines = append(lines, p.String())
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (s pptxShape) isTitle() bool {
	switch s.NonVisual.Placeholder.Type {
	case "title", "ctrTitle":
		return true
	}
	return strings.Contains(strings.ToLower(s.NonVisual.Props.Name), "title")
}

// walk visits shapes and table frames, descending into groups.
func (g pptxGroup) walk(shape func(pptxShape), frame func(pptxFrame)) {
	for _, s := range g.Shapes {
		shape(s)
	}
	for _, f := range g.Frames {
		frame(f)
	}
	for _, sub := range g.Groups {
		sub.walk(shape, frame)
	}
}

// ExtractPPTX reads every slide in presentation order: titles, body text,
// speaker notes and tables. Files under ppt/media/ are returned as Media.
func (OOXML) ExtractPPTX(ctx context.Context, data []byte) (*Document, error) {
	c, err := openContainer(data)
	if err != nil {
		return nil, err
	}
	slides := c.slideParts()
	if len(slides) == 0 && !c.has("ppt/presentation.xml") {
		return nil, fmt.Errorf("%w: no slides in presentation", ErrMalformed)
	}

	doc := &Document{Metadata: c.coreMetadata()}
	var text []string
	for i, part := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := i + 1
		var xs pptxSlide
		if err := c.decode(part, &xs); err != nil {
			continue
		}
		slide := Slide{Number: n, Body: []string{}}
		xs.Tree.walk(func(s pptxShape) {
			t := s.text()
			if t == "" {
				return
			}
			if slide.Title == "" && s.isTitle() {
				slide.Title = t
				return
			}
			slide.Body = append(slide.Body, t)
		}, func(f pptxFrame) {
			rows := make([][]string, 0, len(f.Rows))
			for _, r := range f.Rows {
				cells := make([]string, 0, len(r.Cells))
				for _, cell := range r.Cells {
					cells = append(cells, strings.TrimSpace(cell.String()))
				}
				rows = append(rows, cells)
			}
			if t, ok := grid(rows); ok {
				slide.Tables++
				t.Page = n
				t.Index = slide.Tables
				doc.Tables = append(doc.Tables, t)
			}
		})
		slide.Notes = c.slideNotes(part)

		if slide.Title != "" {
			text = append(text, "SLIDE "+strconv.Itoa(n)+": "+slide.Title)
		}
		text = append(text, slide.Body...)
		if slide.Notes != "" {
			text = append(text, "Notes: "+slide.Notes)
		}
		doc.Slides = append(doc.Slides, slide)
	}

	for _, name := range c.order {
		if !strings.HasPrefix(name, "ppt/media/") || strings.HasSuffix(name, "/") {
			continue
		}
		b, err := c.read(name)
		if err != nil {
			continue
		}
		doc.Media = append(doc.Media, Media{Name: path.Base(name), Data: b})
	}

	doc.Text = strings.Join(text, "\n\n")
	doc.Metadata["slide_count"] = len(slides)
	return doc, nil
}

// slideParts lists ppt/slides/slideN.xml ordered by N.
func (c *container) slideParts() []string {
	type part struct {
		name string
		n    int
	}
	var parts []part
	for name := range c.files {
		dir, file := path.Split(name)
		if dir != "ppt/slides/" || !strings.HasPrefix(file, "slide") || !strings.HasSuffix(file, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(file, "slide"), ".xml"))
		if err != nil {
			continue
		}
		parts = append(parts, part{name: name, n: n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.name
	}
	return out
}

// slideNotes follows the slide's notesSlide relationship and returns the
// text of the notes body placeholder.
func (c *container) slideNotes(slidePart string) string {
	dir, file := path.Split(slidePart)
	relsPart := dir + "_rels/" + file + ".rels"
	if !c.has(relsPart) {
		return ""
	}
	var rels relationships
	if err := c.decode(relsPart, &rels); err != nil {
		return ""
	}
	for _, r := range rels.Items {
		if !strings.HasSuffix(r.Type, "/notesSlide") {
			continue
		}
		target := path.Clean(path.Join(dir, r.Target))
		var notes pptxSlide
		if err := c.decode(target, &notes); err != nil {
			return ""
		}
		var parts []string
		notes.Tree.walk(func(s pptxShape) {
			if s.NonVisual.Placeholder.Type != "body" {
				return
			}
			if t := s.text(); t != "" {
				parts = append(parts, t)
			}
		}, func(pptxFrame) {})
		return strings.Join(parts, "\n")
	}
	return ""
}
