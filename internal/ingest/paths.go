package ingest

import (
	"fmt"
	"path"
	"strings"
)

// Object path layout shared with every other lakehouse consumer.
const (
	RawPrefix        = "raw/"
	StructuredPrefix = "processed/structured/"
	TextPrefix       = "processed/unstructured/text-extracted/"
	UnstructuredDir  = "processed/unstructured/"
)

// Derived table sources under StructuredPrefix.
const (
	SourcePDFTables  = "pdf-tables"
	SourceDOCXTables = "docx-tables"
	SourcePPTTables  = "ppt-tables"
)

// Root is the object's base name without its final extension.
func Root(objectPath string) string {
	base := path.Base(objectPath)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

// TextPath is where extracted text for root is written.
func TextPath(root string) string {
	return TextPrefix + root + ".txt"
}

// StructuredJSONPath is where a document's structure dump is written, e.g.
// kind "ppt" gives processed/unstructured/ppt-structured/<root>.json.
func StructuredJSONPath(kind, root string) string {
	return UnstructuredDir + kind + "-structured/" + root + ".json"
}

// MediaPath is where an embedded presentation image is written.
func MediaPath(root, name string) string {
	return UnstructuredDir + "ppt-images/" + root + "/" + name
}

func PDFTablePath(root string, page, table int) string {
	return fmt.Sprintf("%s%s/%s_page%d_table%d.csv", StructuredPrefix, SourcePDFTables, root, page, table)
}

func DOCXTablePath(root string, table int) string {
	return fmt.Sprintf("%s%s/%s_table_%d.csv", StructuredPrefix, SourceDOCXTables, root, table)
}

func PPTTablePath(root string, slide, table int) string {
	return fmt.Sprintf("%s%s/%s_slide%d_table%d.csv", StructuredPrefix, SourcePPTTables, root, slide, table)
}

// ParquetCopyPath maps raw/<p>.<ext> to processed/structured/<p>.parquet.
// Paths outside raw/ keep their directory under processed/structured/.
func ParquetCopyPath(objectPath string) string {
	p := strings.TrimPrefix(objectPath, "/")
	p = strings.TrimPrefix(p, RawPrefix)
	dir, file := path.Split(p)
	return StructuredPrefix + dir + Root(file) + ".parquet"
}
