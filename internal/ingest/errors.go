package ingest

import (
	"errors"
	"fmt"
)

// Error taxonomy. Stage errors wrap one of these so callers can branch with
// errors.Is regardless of the underlying cause.
var (
	// ErrFetch means the object could not be read from the object store.
	// It is fatal to the invocation and worth retrying.
	ErrFetch = errors.New("fetch failure")

	// ErrUnreadable means the object is unsupported or could not be parsed.
	// No catalog entry is written.
	ErrUnreadable = errors.New("unreadable file")

	// ErrExtractionDegraded means extraction produced less than it should
	// have (no text, no tables, legacy format, no OCR). The object is still
	// cataloged.
	ErrExtractionDegraded = errors.New("extraction degraded")

	// ErrTableLoad means one derived table could not be written. Other tables
	// and the primary entry are unaffected.
	ErrTableLoad = errors.New("table load failure")

	// ErrCatalogWrite means a catalog or side-table write failed. It is
	// reported as a warning on the Result.
	ErrCatalogWrite = errors.New("catalog write failure")
)

// Stages reported in ObjectError and in log fields.
const (
	StageDetect  = "detect"
	StageFetch   = "fetch"
	StageGate    = "gate"
	StageExtract = "extract"
	StageLoad    = "load"
	StageCatalog = "catalog"
)

// ObjectError is a failure that stopped processing of one object.
type ObjectError struct {
	Path  string
	Stage string
	Err   error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("ingest %s: stage=%s: %v", e.Path, e.Stage, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

func objectErr(path, stage string, kind, err error) *ObjectError {
	if err == nil {
		return &ObjectError{Path: path, Stage: stage, Err: kind}
	}
	if kind == nil {
		return &ObjectError{Path: path, Stage: stage, Err: err}
	}
	return &ObjectError{Path: path, Stage: stage, Err: fmt.Errorf("%w: %w", kind, err)}
}
