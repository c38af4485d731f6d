package nft

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package matches exactly one
// of these with errors.Is, except NotFoundError which also matches
// ErrInvalidInput.
var (
	ErrIO                    = errors.New("i/o error")
	ErrFailedDeserialization = errors.New("failed deserialization")
	ErrMalformedObjectFile   = errors.New("malformed object file")
	ErrInvalidObjectFile     = errors.New("invalid object file")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
)

// IOError reports a failed filesystem operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// DeserializationError reports a JSON sidecar that could not be decoded.
type DeserializationError struct {
	Path string
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("failed to deserialize %s: %v", e.Path, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

func (e *DeserializationError) Is(target error) bool { return target == ErrFailedDeserialization }

// MalformedObjectError reports an object parser rejecting a file.
type MalformedObjectError struct {
	Path string
	Err  error
}

func (e *MalformedObjectError) Error() string {
	return fmt.Sprintf("malformed object file %s: %v", e.Path, e.Err)
}

func (e *MalformedObjectError) Unwrap() error { return e.Err }

func (e *MalformedObjectError) Is(target error) bool { return target == ErrMalformedObjectFile }

// InvalidObjectError reports a parsed object file that lacks something the
// extractor requires.
type InvalidObjectError struct {
	Path   string
	Reason string
}

func (e *InvalidObjectError) Error() string {
	return fmt.Sprintf("invalid object file %s: %s", e.Path, e.Reason)
}

func (e *InvalidObjectError) Is(target error) bool { return target == ErrInvalidObjectFile }

// InvalidInputError reports an argument the loader cannot act on.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// NotFoundError reports that no sidecar described the wanted binary.
type NotFoundError struct {
	Platform string
	BaseName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s artifact found for platform %s", e.BaseName, e.Platform)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrInvalidInput
}

func invalidObject(path, format string, args ...any) error {
	return &InvalidObjectError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
