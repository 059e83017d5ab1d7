package optimizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/coachplan/internal/domain/model"
)

// Sentinel kinds for optimizer errors.
var (
	ErrNoFeasibleSolution = errors.New("no feasible solution")
	ErrInvalidProblem     = errors.New("invalid problem")
)

// Constraints named in infeasibility reasons.
const (
	ConstraintAvailability = "availability"
	ConstraintCoverage     = "coverage"
)

// Reason points at one session that could not be staffed.
type Reason struct {
	Session    model.SessionRef
	Constraint string
	Detail     string
}

func (r Reason) String() string {
	return fmt.Sprintf("%s: %s: %s", r.Session, r.Constraint, r.Detail)
}

// InfeasibleError reports a strict-coverage solve that could not cover every
// session. It matches ErrNoFeasibleSolution with errors.Is.
type InfeasibleError struct {
	Reasons []Reason
}

func (e *InfeasibleError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		parts = append(parts, r.String())
	}
	return fmt.Sprintf("%s: %s", ErrNoFeasibleSolution, strings.Join(parts, "; "))
}

func (e *InfeasibleError) Unwrap() error { return ErrNoFeasibleSolution }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProblem, fmt.Sprintf(format, args...))
}
