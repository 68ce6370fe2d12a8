package importer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoParserMatched is matched by errors.Is for NoParserMatchedError.
	ErrNoParserMatched = errors.New("no parser matched")
	// ErrUnknownParser is matched by errors.Is for UnknownParserError.
	ErrUnknownParser = errors.New("unknown parser")
)

// RowError describes a single source row that was skipped.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// NoParserMatchedError is returned when no registered parser claims a file.
type NoParserMatchedError struct {
	Path  string
	Tried []string
}

func (e *NoParserMatchedError) Error() string {
	return fmt.Sprintf("could not detect bank format for %s (registered parsers: %s)",
		e.Path, strings.Join(e.Tried, ", "))
}

func (e *NoParserMatchedError) Is(target error) bool { return target == ErrNoParserMatched }

// UnknownParserError is returned when a forced parser name is not registered.
type UnknownParserError struct {
	Name string
}

func (e *UnknownParserError) Error() string {
	return fmt.Sprintf("unknown parser: %s", e.Name)
}

func (e *UnknownParserError) Is(target error) bool { return target == ErrUnknownParser }

// FileError wraps an I/O or encoding failure that aborts a whole file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
