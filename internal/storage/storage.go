// Package storage holds the persistence ports used by the chainstate: an
// ordered key-value database and flat files of framed block and undo records.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by DB.Get for missing keys.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt marks data that was read back but failed validation.
	ErrCorrupt = errors.New("corrupt data")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage closed")
)

// Error is an I/O failure of a database or block file.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation could succeed. Corrupt
// data stays corrupt.
func (e *Error) Retryable() bool {
	return !errors.Is(e.Err, ErrCorrupt) && !errors.Is(e.Err, ErrClosed)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// IsStorageError reports whether err came from this package.
func IsStorageError(err error) bool {
	var serr *Error
	return errors.As(err, &serr)
}
