package script

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// Code identifies why verification failed.
type Code uint8

const (
	CodeTxInputIndexOutOfBounds Code = iota + 1
	CodeInvalidFlags
	CodeInvalidFlagsCombination
	CodeSpentOutputsRequired
	CodeSpentOutputsMismatch
	CodeScriptFailure
)

func (c Code) String() string {
	switch c {
	case CodeTxInputIndexOutOfBounds:
		return "tx input index out of bounds"
	case CodeInvalidFlags:
		return "invalid flags"
	case CodeInvalidFlagsCombination:
		return "invalid flags combination"
	case CodeSpentOutputsRequired:
		return "spent outputs required"
	case CodeSpentOutputsMismatch:
		return "spent outputs mismatch"
	case CodeScriptFailure:
		return "script failure"
	default:
		return fmt.Sprintf("code(%d)", uint8(c))
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its Code.
var (
	ErrTxInputIndexOutOfBounds = &Error{Code: CodeTxInputIndexOutOfBounds}
	ErrInvalidFlags            = &Error{Code: CodeInvalidFlags}
	ErrInvalidFlagsCombination = &Error{Code: CodeInvalidFlagsCombination}
	ErrSpentOutputsRequired    = &Error{Code: CodeSpentOutputsRequired}
	ErrSpentOutputsMismatch    = &Error{Code: CodeSpentOutputsMismatch}
	ErrScriptFailure           = &Error{Code: CodeScriptFailure}
)

// Error is a verification failure. For CodeScriptFailure, Engine carries the
// txscript error code of the failed check when the engine reported one.
type Error struct {
	Code       Code
	Engine     txscript.ErrorCode
	HaveEngine bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Err == nil
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

func scriptFailure(err error) *Error {
	e := &Error{Code: CodeScriptFailure, Err: err}
	var serr txscript.Error
	if errors.As(err, &serr) {
		e.Engine = serr.ErrorCode
		e.HaveEngine = true
	}
	return e
}
