package utxo

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/storage"
)

// minCoinSize is the smallest encoded coin: three one-byte varints.
const minCoinSize = 3

// TxUndo holds the coins one transaction spent, in input order.
type TxUndo struct {
	Coins []Coin
}

// SpentOutputs returns the spent outputs in input order, the form script
// verification takes them in.
func (u TxUndo) SpentOutputs() []*wire.TxOut {
	outs := make([]*wire.TxOut, len(u.Coins))
	for i, c := range u.Coins {
		outs[i] = c.TxOut()
	}
	return outs
}

// BlockUndo holds the spent coins of every transaction of a block except the
// coinbase, in block order.
type BlockUndo struct {
	Txs []TxUndo
}

// Encode serializes u as a count of transactions, each a count of coins
// followed by the coins.
func (u *BlockUndo) Encode() []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(u.Txs)))
	for _, tx := range u.Txs {
		_ = wire.WriteVarInt(&buf, 0, uint64(len(tx.Coins)))
		for _, c := range tx.Coins {
			_ = c.write(&buf)
		}
	}
	return buf.Bytes()
}

// DecodeBlockUndo parses serialized undo data.
func DecodeBlockUndo(b []byte) (*BlockUndo, error) {
	r := bytes.NewReader(b)
	ntx, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: undo tx count: %w", storage.ErrCorrupt, err)
	}
	if ntx > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: undo tx count %d exceeds data", storage.ErrCorrupt, ntx)
	}
	u := &BlockUndo{Txs: make([]TxUndo, ntx)}
	for i := range u.Txs {
		n, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: undo coin count: %w", storage.ErrCorrupt, err)
		}
		if n > uint64(r.Len()/minCoinSize) {
			return nil, fmt.Errorf("%w: undo coin count %d exceeds data", storage.ErrCorrupt, n)
		}
		coins := make([]Coin, n)
		for j := range coins {
			if coins[j], err = readCoin(r); err != nil {
				return nil, err
			}
		}
		u.Txs[i].Coins = coins
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after undo data", storage.ErrCorrupt, r.Len())
	}
	return u, nil
}
