package environment

import (
	"errors"
	"regexp"
)

var (
	// ErrTemplateNotFound is returned when no search path holds the template.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrFilterNotFound is returned when a template calls a filter, function
	// or global that was never registered.
	ErrFilterNotFound = errors.New("filter not found")

	// ErrSealed is returned by registration methods once the environment
	// has been handed to renderers.
	ErrSealed = errors.New("environment is sealed")

	ErrInvalidName  = errors.New("invalid name")
	ErrNotFunc      = errors.New("not a function")
	ErrBadSignature = errors.New("bad function signature")
)

var undefinedFuncRe = regexp.MustCompile(`function "([^"]+)" not defined`)

// undefinedFunc extracts the function name from a template parse error
// complaining about an undefined function.
func undefinedFunc(err error) (string, bool) {
	m := undefinedFuncRe.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}
