package schema

import (
	"errors"
	"fmt"
)

var (
	ErrEncrypt      = errors.New("schema: encryption failed")
	ErrDecrypt      = errors.New("schema: decryption failed")
	ErrUnknownField = errors.New("schema: field not declared on shape")
)

// FieldError reports which field of which document failed, with the underlying
// sentinel reachable through errors.Is. Path is dotted, with list indices in
// brackets, e.g. "results[2].value".
type FieldError struct {
	Shape string
	Path  string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Shape, e.Path, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(shape *Shape, path string, err error) error {
	return &FieldError{Shape: shape.Name, Path: path, Err: err}
}
