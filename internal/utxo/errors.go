package utxo

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when an input refers to no unspent coin.
	ErrMissingInput = errors.New("missing input")
	// ErrDoubleSpend is a missing input whose coin was spent earlier in the
	// same block. It matches ErrMissingInput.
	ErrDoubleSpend = fmt.Errorf("%w: spent earlier in block", ErrMissingInput)
	// ErrAmountOverflow is returned when a value or sum leaves the money range.
	ErrAmountOverflow = errors.New("amount out of range")
	// ErrImmatureSpend is returned for coinbase outputs spent too early.
	ErrImmatureSpend = errors.New("premature spend of coinbase")
	// ErrInsufficientFunds is returned when outputs exceed inputs.
	ErrInsufficientFunds = errors.New("outputs exceed inputs")
	// ErrBadCoinbaseValue is returned when the coinbase claims more than
	// subsidy plus fees.
	ErrBadCoinbaseValue = errors.New("coinbase pays too much")
	// ErrOverwrite is returned when an output would replace an unspent coin.
	ErrOverwrite = errors.New("output overwrites unspent coin")
	// ErrUndoMismatch is returned when undo data does not fit the block.
	ErrUndoMismatch = errors.New("undo data does not match block")
)
