// Package workflow implements the device return state machine: a pure
// transition function over State and the Controller that owns one State
// per return and drives the upload sessions.
package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zombor/auditly/internal/metadata"
)

// Sentinel errors for workflow operations.
var (
	ErrWrongStep         = errors.New("action not allowed at this step")
	ErrNoCategory        = errors.New("no category selected")
	ErrItemNotInCategory = errors.New("item not in selected category")
	ErrUnknownField      = errors.New("unknown form field")
	ErrValidation        = errors.New("validation failed")
)

// ValidationError carries the per-field messages of a rejected metadata submission
type ValidationError struct {
	Errors metadata.Errors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(fields, ", "))
}

// Is makes errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
