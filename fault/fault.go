// Package fault defines the error kinds shared by the page-set, assembly
// and aggregation components.
package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidFormat = errors.New("invalid format")
	ErrEmptyInput    = errors.New("no input files")
	ErrEmptyDocument = errors.New("document has no pages")
	ErrOutputExists  = errors.New("output already exists")
	ErrParse         = errors.New("parse error")
)

// Error ties an error kind to the path it concerns. Err is the underlying
// cause and may be nil.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Err: cause}
}

func NotFound(path string) error { return New(ErrNotFound, path, nil) }

func InvalidFormat(path string, cause error) error { return New(ErrInvalidFormat, path, cause) }

func OutputExists(path string) error { return New(ErrOutputExists, path, nil) }

func Parse(path string, cause error) error { return New(ErrParse, path, cause) }

// Path returns the path carried by the first *Error in err's chain.
func Path(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Path
	}
	return ""
}
