package classfile

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every error reporting an unreadable class byte stream
var ErrMalformed = errors.New("malformed class file")

// FormatError reports why an artifact could not be decoded
type FormatError struct {
	Artifact string
	Offset   int
	Reason   string
	Err      error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s at offset %d", e.Artifact, e.Reason, e.Offset)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match ErrMalformed and the underlying I/O error
func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}
