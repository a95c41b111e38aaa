package chainstate

import (
	"errors"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
)

var (
	// ErrHalted is returned by every write after a FatalError.
	ErrHalted = errors.New("chainstate halted after fatal error")
	// ErrUnsupportedChain is returned for networks without parameters.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrInterrupted is returned by long operations stopped by Interrupt.
	ErrInterrupted = errors.New("interrupted")
	// ErrDuplicate is returned for a block that was already connected.
	ErrDuplicate = blocktree.ErrDuplicate
	// ErrNotAvailable is returned when block or undo data is not stored.
	ErrNotAvailable = errors.New("data not available")
)

// FatalError reports a broken internal invariant. The manager refuses
// further writes once one was returned.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal chainstate error: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var ferr *FatalError
	return errors.As(err, &ferr)
}
