// Package metadata validates the reference fields a customer enters before
// reviewing their photographs.
package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Fields are the four free-text reference fields
type Fields struct {
	Input1 string `json:"input1" validate:"required"`
	Input2 string `json:"input2" validate:"required"`
	Input3 string `json:"input3" validate:"required"`
	Input4 string `json:"input4" validate:"required"`
}

// Errors maps a field name to a human-readable message.
// Fields that pass validation are absent.
type Errors map[string]string

// Names lists the field names in form order
var Names = []string{"input1", "input2", "input3", "input4"}

// Labels are the form labels shown next to each field
var Labels = map[string]string{
	"input1": "Original Sales Order Number",
	"input2": "Customer Name/Number",
	"input3": "Label 3",
	"input4": "Label 4",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so errors line up with the form
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Trimmed returns a copy with surrounding whitespace removed from every field
func (f Fields) Trimmed() Fields {
	return Fields{
		Input1: strings.TrimSpace(f.Input1),
		Input2: strings.TrimSpace(f.Input2),
		Input3: strings.TrimSpace(f.Input3),
		Input4: strings.TrimSpace(f.Input4),
	}
}

// Validate returns an error for every field whose trimmed value is empty.
// Each call builds a fresh mapping; nothing carries over between calls.
func Validate(f Fields) Errors {
	errs := make(Errors)

	err := validate.Struct(f.Trimmed())
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Only reachable if Fields stops being a struct
		for _, name := range Names {
			errs[name] = err.Error()
		}
		return errs
	}

	for _, fe := range fieldErrs {
		errs[fe.Field()] = requiredMessage(fe.Field())
	}
	return errs
}

// IsField reports whether name is one of the form fields
func IsField(name string) bool {
	_, ok := Labels[name]
	return ok
}

func requiredMessage(field string) string {
	n := strings.TrimPrefix(field, "input")
	return fmt.Sprintf("Input %s is required.", n)
}
