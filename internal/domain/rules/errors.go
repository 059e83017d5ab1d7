package rules

import (
	"errors"
	"strings"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidRuleTable = errors.New("invalid rule table")
	ErrLoadRuleTable    = errors.New("load rule table failed")
)

// ConfigurationError lists every problem found while validating a rule table.
// A table that produces one is never applied.
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	return ErrInvalidRuleTable.Error() + ": " + strings.Join(e.Issues, "; ")
}

// Unwrap exposes ErrInvalidRuleTable to errors.Is.
func (e *ConfigurationError) Unwrap() error { return ErrInvalidRuleTable }
