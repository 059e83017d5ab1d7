package calculator

import (
	"errors"
	"fmt"

	"github.com/okian/coachplan/internal/domain/model"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUnknownCategory  = errors.New("unknown category")
	ErrNegativeGuests   = errors.New("negative guest count")
	ErrOverCapacity     = errors.New("guests exceed capacity")
	ErrNegativePrivate  = errors.New("negative private lesson count")
	ErrUnknownSide      = errors.New("side not configured")
	ErrRangeNotFound    = errors.New("no baseline range matches guest count")
	ErrComputationFault = errors.New("computation fault")
)

// ValidationError describes one problem with one input row.
type ValidationError struct {
	Row   int    // 1-based row number within the batch, 0 when unknown
	Field string // offending input field
	Kind  error  // one of the sentinel kinds above
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, e.Msg)
	}
	return e.Msg
}

// Unwrap exposes the sentinel kind to errors.Is.
func (e *ValidationError) Unwrap() error { return e.Kind }

// ComputationFault means a validated session matched no configured range,
// which points at a rule table or validation defect.
type ComputationFault struct {
	Session model.SessionRef
	Err     error
}

func (e *ComputationFault) Error() string {
	return fmt.Sprintf("%s for session %s: %v", ErrComputationFault, e.Session, e.Err)
}

// Is matches ErrComputationFault as well as the wrapped cause.
func (e *ComputationFault) Is(target error) bool { return target == ErrComputationFault }

// Unwrap exposes the underlying cause.
func (e *ComputationFault) Unwrap() error { return e.Err }
