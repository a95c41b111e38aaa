// Package primitives parses and serializes the canonical wire encoding of
// blocks, transactions, headers and hashes.
package primitives

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrEmpty          = errors.New("empty buffer")
	ErrNoTransactions = errors.New("block has no transactions")
	ErrTrailingBytes  = errors.New("trailing bytes after payload")
)

// StructuralError reports bytes that do not decode as the expected object.
// Nothing is returned alongside it.
type StructuralError struct {
	Object string
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Object, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

func structural(object string, err error) error {
	return &StructuralError{Object: object, Err: err}
}

// ParseBlock decodes a wire block, including witness data. The buffer must
// hold exactly one block with at least one transaction.
func ParseBlock(raw []byte) (*btcutil.Block, error) {
	if len(raw) == 0 {
		return nil, structural("block", ErrEmpty)
	}

	var msg wire.MsgBlock
	r := bytes.NewReader(raw)
	if err := msg.Deserialize(r); err != nil {
		return nil, structural("block", err)
	}
	if r.Len() != 0 {
		return nil, structural("block", fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len()))
	}
	if len(msg.Transactions) == 0 {
		return nil, structural("block", ErrNoTransactions)
	}

	return btcutil.NewBlockFromBlockAndBytes(&msg, raw), nil
}

// ParseTransaction decodes a wire transaction, including witness data.
func ParseTransaction(raw []byte) (*btcutil.Tx, error) {
	if len(raw) == 0 {
		return nil, structural("transaction", ErrEmpty)
	}

	var msg wire.MsgTx
	r := bytes.NewReader(raw)
	if err := msg.Deserialize(r); err != nil {
		return nil, structural("transaction", err)
	}
	if r.Len() != 0 {
		return nil, structural("transaction", fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len()))
	}

	return btcutil.NewTx(&msg), nil
}

// ParseHeader decodes an 80 byte block header.
func ParseHeader(raw []byte) (*wire.BlockHeader, error) {
	if len(raw) != wire.MaxBlockHeaderPayload {
		return nil, structural("header", fmt.Errorf("got %d bytes, want %d", len(raw), wire.MaxBlockHeaderPayload))
	}

	var header wire.BlockHeader
	if err := header.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, structural("header", err)
	}
	return &header, nil
}

// SerializeBlock returns the wire encoding of block, witness data included.
func SerializeBlock(block *btcutil.Block) ([]byte, error) {
	raw, err := block.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize block %s: %w", block.Hash(), err)
	}
	return raw, nil
}

// SerializeTransaction returns the wire encoding of tx, witness data included.
func SerializeTransaction(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize transaction %s: %w", tx.TxHash(), err)
	}
	return buf.Bytes(), nil
}

// SerializeHeader returns the 80 byte header encoding.
func SerializeHeader(header *wire.BlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wire.MaxBlockHeaderPayload)
	if err := header.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize header: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseHash decodes the byte-reversed hex form used for display
// (block explorers, RPC). Exactly 64 hex characters are required.
func ParseHash(s string) (chainhash.Hash, error) {
	if len(s) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, structural("hash", fmt.Errorf("got %d hex characters, want %d", len(s), chainhash.MaxHashStringSize))
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, structural("hash", err)
	}
	return *h, nil
}

// HashFromBytes interprets 32 bytes in internal (little-endian) order.
func HashFromBytes(b []byte) (chainhash.Hash, error) {
	h, err := chainhash.NewHash(b)
	if err != nil {
		return chainhash.Hash{}, structural("hash", err)
	}
	return *h, nil
}
