package ingest

import (
	"errors"
	"fmt"
)

// Sentinel kinds for ingestion errors.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrBadRow        = errors.New("bad row")
	ErrBadShorthand  = errors.New("bad availability shorthand")
)

// RowError describes one rejected input line.
type RowError struct {
	Line  int    // 1-based line in the file, header included
	Field string // CSV column
	Msg   string
	Err   error // underlying cause, if any
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Msg)
}

// Unwrap exposes ErrBadRow and the cause to errors.Is.
func (e *RowError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBadRow, e.Err}
	}
	return []error{ErrBadRow}
}
