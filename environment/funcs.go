package environment

import (
	"fmt"
	"reflect"
	"unicode"
)

var errorType = reflect.TypeFor[error]()

// ValidName reports whether name can be called from a template.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case i == 0 && !unicode.IsLetter(r):
			return false
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			return false
		}
	}
	return true
}

// CheckFunc reports whether fn can be registered as a template function:
// it must be a func returning one value, or two where the second is an error.
func CheckFunc(fn any) error {
	if fn == nil {
		return ErrNotFunc
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("%w: %T", ErrNotFunc, fn)
	}
	if v.IsNil() {
		return ErrNotFunc
	}
	typ := v.Type()
	switch {
	case typ.NumOut() == 1:
		return nil
	case typ.NumOut() == 2 && typ.Out(1) == errorType:
		return nil
	}
	return fmt.Errorf("%w: %s must return one value, or a value and an error", ErrBadSignature, typ)
}

// constant wraps a plain value so templates can reach it by name.
func constant(value any) func() any {
	return func() any { return value }
}
