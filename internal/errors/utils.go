package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps err in a KilnError of the given type. Location, component and
// context of a KilnError already in the chain are carried over.
func Wrap(err error, errType ErrorType, code, message string) *KilnError {
	if err == nil {
		return nil
	}

	wrapped := &KilnError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation,
	}

	var ke *KilnError
	if errors.As(err, &ke) {
		wrapped.Context = ke.Context
		wrapped.Component = ke.Component
		wrapped.FilePath = ke.FilePath
		wrapped.Line = ke.Line
		wrapped.Column = ke.Column
	}
	return wrapped
}

// GetErrorChain returns every error in the tree of err, depth first from
// the outermost. Errors joined with errors.Join or wrapped with several %w
// verbs are all visited.
func GetErrorChain(err error) []error {
	var chain []error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		chain = append(chain, e)
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return chain
}

// HasErrorType checks if any error in the chain has the specified type
func HasErrorType(err error, errType ErrorType) bool {
	for _, e := range GetErrorChain(err) {
		if ke, ok := e.(*KilnError); ok && ke.Type == errType {
			return true
		}
	}
	return false
}

// Code returns the code of the outermost KilnError in the chain, or "" when
// there is none.
func Code(err error) string {
	for _, e := range GetErrorChain(err) {
		if ke, ok := e.(*KilnError); ok && ke.Code != "" {
			return ke.Code
		}
	}
	return ""
}

// Fields returns the location of the outermost located KilnError in the
// chain as a "location" logger field.
func Fields(err error) []interface{} {
	for _, e := range GetErrorChain(err) {
		ke, ok := e.(*KilnError)
		if !ok || ke.FilePath == "" {
			continue
		}
		location := ke.FilePath
		if ke.Line > 0 {
			location += fmt.Sprintf(":%d", ke.Line)
			if ke.Column > 0 {
				location += fmt.Sprintf(":%d", ke.Column)
			}
		}
		return []interface{}{"location", location}
	}
	return nil
}
