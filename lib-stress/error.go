package stress

import (
	"errors"
)

// The errors in this library can be checked via the errors.Is function.
var (
	// ErrInvalidArgumentValue is an error for if an argument was wrong.
	ErrInvalidArgumentValue = errors.New("invalid argument value")

	// ErrCommunicate is an error for if connecting or talking to an MCP server failed.
	ErrCommunicate = errors.New("server communication error")

	// ErrInvalidRecord is an error for if a run file line could not be parsed.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrIO is an error for if reading or writing a run file failed.
	ErrIO = errors.New("failed to read/write run file")

	// ErrEmptyRun is an error for if a run file contains no request events.
	ErrEmptyRun = errors.New("run file contains no request events")
)
