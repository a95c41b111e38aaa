// Package validation holds the outcome types shared by header, block and
// transaction validation.
package validation

import (
	"errors"
	"fmt"
)

// Mode is the coarse outcome of a validation run.
type Mode uint8

const (
	ModeValid Mode = iota
	ModeInvalid
	ModeInternalError
)

func (m Mode) String() string {
	switch m {
	case ModeValid:
		return "valid"
	case ModeInvalid:
		return "invalid"
	case ModeInternalError:
		return "internal-error"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Result is the reason a block or header was rejected.
type Result uint8

const (
	ResultUnset Result = iota
	// ResultConsensus covers rule violations not distinguished further.
	ResultConsensus
	// ResultCachedInvalid means the block was already known to be invalid.
	ResultCachedInvalid
	ResultInvalidHeader
	// ResultMutated means the block data does not match its header commitment.
	ResultMutated
	ResultMissingPrev
	ResultInvalidPrev
	ResultTimeFuture
	ResultHeaderLowWork
)

var resultNames = map[Result]string{
	ResultUnset:         "unset",
	ResultConsensus:     "consensus",
	ResultCachedInvalid: "cached-invalid",
	ResultInvalidHeader: "invalid-header",
	ResultMutated:       "mutated",
	ResultMissingPrev:   "missing-prev",
	ResultInvalidPrev:   "invalid-prev",
	ResultTimeFuture:    "time-future",
	ResultHeaderLowWork: "header-low-work",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

// Error is a rejection of a block or header. Reason is the short reject
// string ("bad-txnmrklroot", "high-hash", ...).
type Error struct {
	Result Result
	Reason string
	Err    error
}

// New builds an Error without an underlying cause.
func New(result Result, reason string) *Error {
	return &Error{Result: result, Reason: reason}
}

// Wrap builds an Error around cause.
func Wrap(result Result, reason string, cause error) *Error {
	return &Error{Result: result, Reason: reason, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Reason, e.Result, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Reason, e.Result)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Result, so callers can write
// errors.Is(err, validation.New(validation.ResultMissingPrev, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Result == e.Result && (t.Reason == "" || t.Reason == e.Reason)
}

// ResultOf extracts the rejection reason from err, or ResultUnset.
func ResultOf(err error) Result {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Result
	}
	return ResultUnset
}

// State is delivered to block-checked listeners.
type State struct {
	Mode   Mode
	Result Result
	Reason string
}

// Valid reports whether the state carries no failure.
func (s State) Valid() bool {
	return s.Mode == ModeValid
}

func (s State) String() string {
	if s.Mode == ModeValid {
		return "valid"
	}
	return fmt.Sprintf("%s: %s (%s)", s.Mode, s.Reason, s.Result)
}

// StateFromError classifies err. Rejections become ModeInvalid, anything else
// becomes ModeInternalError.
func StateFromError(err error) State {
	if err == nil {
		return State{Mode: ModeValid}
	}
	var verr *Error
	if errors.As(err, &verr) {
		return State{Mode: ModeInvalid, Result: verr.Result, Reason: verr.Reason}
	}
	return State{Mode: ModeInternalError, Reason: err.Error()}
}
