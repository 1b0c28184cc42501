package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// OOXML is the default Office extractor: DOCX and PPTX are zip containers
// of WordprocessingML / PresentationML parts.
type OOXML struct{}

var _ Office = OOXML{}

// maxPartBytes caps a single decompressed part.
const maxPartBytes = 256 << 20

type container struct {
	files map[string]*zip.File
	order []string
}

func openContainer(data []byte) (*container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %v", ErrMalformed, err)
	}
	c := &container{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		c.files[f.Name] = f
		c.order = append(c.order, f.Name)
	}
	return c, nil
}

func (c *container) has(name string) bool {
	_, ok := c.files[name]
	return ok
}

func (c *container) read(name string) ([]byte, error) {
	f, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing part %s", ErrMalformed, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open part %s: %v", ErrMalformed, name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxPartBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read part %s: %v", ErrMalformed, name, err)
	}
	return b, nil
}

func (c *container) decode(name string, v any) error {
	b, err := c.read(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrMalformed, name, err)
	}
	return nil
}

// coreProps is docProps/core.xml (Dublin Core plus OPC extensions).
type coreProps struct {
	Title       string `xml:"title"`
	Subject     string `xml:"subject"`
	Creator     string `xml:"creator"`
	Category    string `xml:"category"`
	Description string `xml:"description"`
	Created     string `xml:"created"`
	Modified    string `xml:"modified"`
}

// coreMetadata returns the document properties; a missing or broken
// core.xml yields nil values rather than an error.
func (c *container) coreMetadata() map[string]any {
	var p coreProps
	if c.has("docProps/core.xml") {
		_ = c.decode("docProps/core.xml", &p)
	}
	return map[string]any{
		"author":   nullable(p.Creator),
		"created":  nullable(p.Created),
		"modified": nullable(p.Modified),
		"title":    nullable(p.Title),
		"subject":  nullable(p.Subject),
		"category": nullable(p.Category),
		"comments": nullable(p.Description),
	}
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

// xmlText is an element whose text runs are read from its raw inner XML.
type xmlText struct {
	Inner []byte `xml:",innerxml"`
}

// String concatenates every <t> run (w:t and a:t alike), turning tab and
// break elements into whitespace and paragraphs into newlines.
func (x xmlText) String() string {
	d := xml.NewDecoder(bytes.NewReader(x.Inner))
	d.Strict = false

	var (
		b      strings.Builder
		inText int
		paras  int
	)
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText++
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			case "p":
				if paras > 0 {
					b.WriteByte('\n')
				}
				paras++
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inText > 0 {
				inText--
			}
		case xml.CharData:
			if inText > 0 {
				b.Write(t)
			}
		}
	}
	return b.String()
}

// grid converts table rows of cell texts into a Table; the first row is the
// header. Blank header cells are named column_<i>; fewer than two rows
// yields false.
func grid(rows [][]string) (Table, bool) {
	if len(rows) < 2 {
		return Table{}, false
	}
	header := append([]string(nil), rows[0]...)
	blank := true
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			blank = false
			break
		}
	}
	if blank {
		for i := range header {
			header[i] = fmt.Sprintf("column_%d", i)
		}
	}
	return Table{Header: header, Rows: rows[1:]}, true
}
