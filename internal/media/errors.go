package media

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a validation failure
type Kind string

const (
	KindUnsupportedFileType Kind = "unsupported_file_type"
	KindFileTooLarge        Kind = "file_too_large"
	KindImageProcessing     Kind = "image_processing_error"
)

// Error is returned by the validators for any rejected upload.
// Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Allowed []string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind, so callers can test
// errors.Is(err, media.ErrFileTooLarge).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnsupportedFileType = &Error{Kind: KindUnsupportedFileType}
	ErrFileTooLarge        = &Error{Kind: KindFileTooLarge}
	ErrImageProcessing     = &Error{Kind: KindImageProcessing}
)

func unsupported(allowed []string) *Error {
	return &Error{
		Kind:    KindUnsupportedFileType,
		Message: fmt.Sprintf("Invalid file format. Allowed: %s.", strings.Join(allowed, ", ")),
		Allowed: append([]string(nil), allowed...),
	}
}

func imageProcessing(err error) *Error {
	return &Error{
		Kind:    KindImageProcessing,
		Message: fmt.Sprintf("Image processing error: %v", err),
		Err:     err,
	}
}

// AsError unwraps err into a *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
