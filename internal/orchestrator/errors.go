package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ExhaustedError reports that every candidate backend failed. It enumerates
// each backend tried so callers never see an unexplained generic failure.
type ExhaustedError struct {
	Attempted []string
	Errs      []error
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempted) == 0 {
		return "no available backends"
	}

	parts := make([]string, 0, len(e.Errs))
	for i, err := range e.Errs {
		name := "?"
		if i < len(e.Attempted) {
			name = e.Attempted[i]
		}
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}

	return fmt.Sprintf("all backends failed [%s]: %s",
		strings.Join(e.Attempted, ", "), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	return e.Errs
}

// IsExhausted reports whether err means every backend was tried and failed.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
