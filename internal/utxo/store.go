package utxo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/storage"
)

const (
	coinPrefix   = 'C'
	bestBlockKey = 'B'
	coinKeySize  = 1 + chainhash.HashSize + 4
)

// DBStore keeps coins in a storage.DB under 'C'+txid+vout and the best block
// hash under 'B'.
type DBStore struct {
	db storage.DB
}

// NewDBStore returns a Backend over db.
func NewDBStore(db storage.DB) *DBStore {
	return &DBStore{db: db}
}

func coinKey(op wire.OutPoint) []byte {
	key := make([]byte, coinKeySize)
	key[0] = coinPrefix
	copy(key[1:], op.Hash[:])
	binary.BigEndian.PutUint32(key[1+chainhash.HashSize:], op.Index)
	return key
}

func (s *DBStore) FetchCoin(op wire.OutPoint) (*Coin, error) {
	raw, err := s.db.Get(coinKey(op))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch coin %s: %w", op, err)
	}
	c, err := DecodeCoin(raw)
	if err != nil {
		return nil, fmt.Errorf("decode coin %s: %w", op, err)
	}
	return &c, nil
}

func (s *DBStore) WriteCoins(changes map[wire.OutPoint]*Coin, bestBlock chainhash.Hash) error {
	var batch storage.Batch
	for op, c := range changes {
		if c == nil {
			batch.Delete(coinKey(op))
			continue
		}
		var buf bytes.Buffer
		if err := c.write(&buf); err != nil {
			return fmt.Errorf("encode coin %s: %w", op, err)
		}
		batch.Put(coinKey(op), buf.Bytes())
	}
	batch.Put([]byte{bestBlockKey}, bestBlock[:])
	if err := s.db.Write(&batch); err != nil {
		return fmt.Errorf("write %d coin changes: %w", len(changes), err)
	}
	return nil
}

// BestBlock returns the block the stored coins correspond to, or the zero
// hash for an empty store.
func (s *DBStore) BestBlock() (chainhash.Hash, error) {
	raw, err := s.db.Get([]byte{bestBlockKey})
	if errors.Is(err, storage.ErrNotFound) {
		return chainhash.Hash{}, nil
	}
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("read best block: %w", err)
	}
	hash, err := chainhash.NewHash(raw)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: best block: %w", storage.ErrCorrupt, err)
	}
	return *hash, nil
}

// ForEachCoin calls fn for every stored coin in key order.
func (s *DBStore) ForEachCoin(fn func(op wire.OutPoint, c Coin) error) error {
	return s.db.ForEachPrefix([]byte{coinPrefix}, func(key, value []byte) error {
		if len(key) != coinKeySize {
			return fmt.Errorf("%w: coin key of %d bytes", storage.ErrCorrupt, len(key))
		}
		var op wire.OutPoint
		copy(op.Hash[:], key[1:])
		op.Index = binary.BigEndian.Uint32(key[1+chainhash.HashSize:])
		c, err := DecodeCoin(value)
		if err != nil {
			return fmt.Errorf("decode coin %s: %w", op, err)
		}
		return fn(op, c)
	})
}
