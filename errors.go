package pagewriter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoView is returned when a view function selects no template.
var ErrNoView = errors.New("no view selected")

// ConfigError describes one option that does not have the expected shape.
type ConfigError struct {
	Option   string
	Expected string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("pagewriter: '%s' option expects %s", e.Option, e.Expected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError holds every ConfigError found while validating Options.
type ValidationError struct {
	Errors []*ConfigError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Options returns the names of the invalid options, in the order found.
func (e *ValidationError) Options() []string {
	names := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		names[i] = err.Option
	}
	return names
}
