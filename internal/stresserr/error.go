package stresserr

import (
	"fmt"
)

// Error is the error type of mcp-stress.
//
// Use errors.Is or errors.Unwrap to find out what kind of error it is.
type Error struct {
	kind    error
	from    error
	message string
}

// New creates a new Error.
func New(kind error, from error, format string, args ...interface{}) Error {
	msg := fmt.Sprintf(format, args...)
	if from != nil {
		if msg != "" {
			msg += ": "
		}
		msg += from.Error()
	}

	return Error{
		kind:    kind,
		from:    from,
		message: msg,
	}
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.message
}

// Unwrap implements for errors.Unwrap.
func (e Error) Unwrap() error {
	return e.from
}

// Is implements for errors.Is.
func (e Error) Is(err error) bool {
	return e.kind == err
}
