// Package utxo tracks unspent transaction outputs: a write-back cache over a
// key-value backend, staged views that connect and disconnect whole blocks,
// and the undo data that makes a disconnect exact.
package utxo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/pkg/safe"
)

// Coin is an unspent output together with where it was confirmed.
type Coin struct {
	Amount     int64
	PkScript   []byte
	Height     int32
	IsCoinbase bool
}

// TxOut returns the output the coin was created from.
func (c Coin) TxOut() *wire.TxOut {
	return wire.NewTxOut(c.Amount, c.PkScript)
}

// Equal reports whether c and o describe the same output.
func (c Coin) Equal(o Coin) bool {
	return c.Amount == o.Amount &&
		c.Height == o.Height &&
		c.IsCoinbase == o.IsCoinbase &&
		bytes.Equal(c.PkScript, o.PkScript)
}

func (c Coin) clone() *Coin {
	c.PkScript = append([]byte(nil), c.PkScript...)
	return &c
}

// Encode serializes c as varint(height<<1 | coinbase), varint(amount) and a
// length-prefixed script.
func (c Coin) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(len(c.PkScript) + 12)
	_ = c.write(&buf)
	return buf.Bytes()
}

func (c Coin) write(w io.Writer) error {
	height, err := safe.Uint64(c.Height)
	if err != nil {
		return fmt.Errorf("coin height: %w", err)
	}
	amount, err := safe.Uint64(c.Amount)
	if err != nil {
		return fmt.Errorf("coin amount: %w", err)
	}
	code := height << 1
	if c.IsCoinbase {
		code |= 1
	}
	if err := wire.WriteVarInt(w, 0, code); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, amount); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, c.PkScript)
}

// DecodeCoin parses a serialized coin. Trailing bytes are an error.
func DecodeCoin(b []byte) (Coin, error) {
	r := bytes.NewReader(b)
	c, err := readCoin(r)
	if err != nil {
		return Coin{}, err
	}
	if r.Len() != 0 {
		return Coin{}, fmt.Errorf("%w: %d trailing bytes after coin", storage.ErrCorrupt, r.Len())
	}
	return c, nil
}

func readCoin(r io.Reader) (Coin, error) {
	code, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return Coin{}, fmt.Errorf("%w: coin code: %w", storage.ErrCorrupt, err)
	}
	if code>>1 > uint64(^uint32(0)>>1) {
		return Coin{}, fmt.Errorf("%w: coin height %d out of range", storage.ErrCorrupt, code>>1)
	}
	amount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return Coin{}, fmt.Errorf("%w: coin amount: %w", storage.ErrCorrupt, err)
	}
	if amount > btcutil.MaxSatoshi {
		return Coin{}, fmt.Errorf("%w: coin amount %d out of range", storage.ErrCorrupt, amount)
	}
	script, err := wire.ReadVarBytes(r, 0, txscript.MaxScriptSize, "pkscript")
	if err != nil {
		return Coin{}, fmt.Errorf("%w: coin script: %w", storage.ErrCorrupt, err)
	}
	return Coin{
		Amount:     int64(amount),
		PkScript:   script,
		Height:     int32(code >> 1),
		IsCoinbase: code&1 == 1,
	}, nil
}
