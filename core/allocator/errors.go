package allocator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInfeasible indicates no feasible assignment was found after
// exhausting all reoptimization attempts. Fatal for the run.
var ErrInfeasible = errors.New("allocation infeasible after exhausting reoptimization attempts")

// ValidationError aggregates every violated request field. The request is
// rejected before pipeline entry; there is no partial acceptance.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid allocation request: %s", strings.Join(e.Violations, "; "))
}

// add records a violation.
func (e *ValidationError) add(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// errOrNil returns the error only when violations were recorded.
func (e *ValidationError) errOrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
