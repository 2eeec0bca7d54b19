package mesh

import "fmt"

// DegenerateInputError reports a triangulation (or point set) that violates the
// length, index or symmetry invariants the navigator relies on.
type DegenerateInputError struct {
	Reason string
	Err    error // underlying cause, if any
}

func (e *DegenerateInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("degenerate input: %s: %v", e.Reason, e.Err)
	}
	return "degenerate input: " + e.Reason
}

func (e *DegenerateInputError) Unwrap() error { return e.Err }

func degenerate(format string, args ...any) *DegenerateInputError {
	return &DegenerateInputError{Reason: fmt.Sprintf(format, args...)}
}

// NonTerminatingWalkError reports a fan walk that exceeded the triangle count.
// The opposite-edge array is corrupt; retrying on the same triangulation cannot help.
type NonTerminatingWalkError struct {
	Start int // half-edge the walk started from
	Steps int // edges visited before giving up
}

func (e *NonTerminatingWalkError) Error() string {
	return fmt.Sprintf("edge walk from half-edge %d did not terminate after %d steps", e.Start, e.Steps)
}
