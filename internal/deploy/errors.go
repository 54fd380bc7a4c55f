package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy for a deploy run. Every failure out of Deploy wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrConnection = errors.New("connection error")
	ErrPath       = errors.New("path error")
	ErrSourceSync = errors.New("source sync error")
	ErrDependency = errors.New("dependency error")
	ErrService    = errors.New("service error")
)

// StepError records which step of the pipeline failed and why.
type StepError struct {
	Step   string
	Kind   error // one of the sentinels above
	Output string
	Err    error
}

func (e *StepError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("step %q: %v: %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("step %q: %v: %v: %s", e.Step, e.Kind, e.Err, out)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPath) and friends match on the kind.
func (e *StepError) Is(target error) bool { return target == e.Kind }

func stepErr(step string, kind error, output []byte, err error) *StepError {
	return &StepError{
		Step:   step,
		Kind:   kind,
		Output: string(output),
		Err:    err,
	}
}
