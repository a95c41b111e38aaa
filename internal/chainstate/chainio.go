package chainstate

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/primitives"
	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
	"github.com/goodnatureofminers/btckernel/pkg/safe"
)

// Block index keys.
var (
	entryPrefix = []byte{'b'}
	reindexKey  = []byte{'R'}
)

func entryKey(hash chainhash.Hash) []byte {
	return append(append([]byte(nil), entryPrefix...), hash[:]...)
}

// loadIndex reads every persisted entry into the tree. It returns false for
// an empty index.
func (m *Manager) loadIndex() (bool, error) {
	var records []blocktree.Record
	err := m.indexDB.ForEachPrefix(entryPrefix, func(_, value []byte) error {
		r, err := blocktree.DecodeRecord(value)
		if err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read block index: %w", err)
	}
	if len(records) == 0 {
		return false, nil
	}
	if err := m.tree.Load(records); err != nil {
		return false, err
	}
	return true, nil
}

// writeIndex persists the entries changed since the last call.
func (m *Manager) writeIndex() error {
	records := m.tree.TakeDirty()
	if len(records) == 0 {
		return nil
	}
	batch := &storage.Batch{}
	for _, r := range records {
		batch.Put(entryKey(r.Header.BlockHash()), r.Encode())
	}
	if err := m.indexDB.Write(batch); err != nil {
		m.tree.Redirty(records)
		return fmt.Errorf("write block index: %w", err)
	}
	return nil
}

func (m *Manager) setReindexing(on bool) error {
	batch := &storage.Batch{}
	if on {
		batch.Put(reindexKey, []byte{1})
	} else {
		batch.Delete(reindexKey)
	}
	if err := m.indexDB.Write(batch); err != nil {
		return fmt.Errorf("write reindex flag: %w", err)
	}
	return nil
}

func (m *Manager) reindexFlag() (bool, error) {
	ok, err := m.indexDB.Has(reindexKey)
	if err != nil {
		return false, fmt.Errorf("read reindex flag: %w", err)
	}
	return ok, nil
}

// flush makes stored blocks, the block index and, when force is set or the
// cache is full, the coins durable. Blocks go first so the index never
// points at missing data, and the index goes before the coins so the coins
// never reference an unknown block.
func (m *Manager) flush(force bool) (err error) {
	started := time.Now()
	defer func() {
		m.metrics.ObserveFlush(err, started)
		if err != nil {
			m.logger.Error("flush failed", zap.Error(err))
			m.notify.FlushError(err.Error())
		}
	}()

	if err := m.blocks.Sync(); err != nil {
		return fmt.Errorf("sync block files: %w", err)
	}
	if err := m.writeIndex(); err != nil {
		return err
	}
	if force || m.coins.NeedsFlush() {
		if err := m.coins.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// storeGenesis writes the genesis block and marks it connected.
func (m *Manager) storeGenesis() error {
	genesis := m.tree.InitGenesis()
	raw, err := primitives.SerializeBlock(btcutil.NewBlock(m.params.GenesisBlock))
	if err != nil {
		return err
	}
	loc, err := m.blocks.WriteBlock(raw)
	if err != nil {
		return fmt.Errorf("store genesis block: %w", err)
	}
	txCount, err := safe.Uint32(len(m.params.GenesisBlock.Transactions))
	if err != nil {
		return fmt.Errorf("genesis tx count: %w", err)
	}
	m.tree.SetData(genesis, loc, txCount)
	m.tree.SetFullyValid(genesis)
	return nil
}

func (m *Manager) readBlock(entry *blocktree.Entry) (*btcutil.Block, error) {
	loc, ok := entry.DataLocation()
	if !ok {
		return nil, fmt.Errorf("block %s: %w", entry.Hash(), ErrNotAvailable)
	}
	raw, err := m.blocks.ReadBlock(loc)
	if err != nil {
		return nil, fmt.Errorf("read block %s: %w", entry.Hash(), err)
	}
	block, err := primitives.ParseBlock(raw)
	if err != nil {
		return nil, &storage.Error{Op: "read block", Err: fmt.Errorf("%w: %v", storage.ErrCorrupt, err)}
	}
	if *block.Hash() != entry.Hash() {
		return nil, &storage.Error{Op: "read block", Err: fmt.Errorf("%w: block %s stored at %v has hash %s",
			storage.ErrCorrupt, entry.Hash(), loc, block.Hash())}
	}
	return block, nil
}

// Undo records are the encoded undo data followed by the double SHA-256 of
// the parent hash and the data, which ties them to their block.
func undoChecksum(prev chainhash.Hash, data []byte) chainhash.Hash {
	buf := make([]byte, 0, chainhash.HashSize+len(data))
	buf = append(buf, prev[:]...)
	buf = append(buf, data...)
	return chainhash.DoubleHashH(buf)
}

func (m *Manager) writeUndo(entry *blocktree.Entry, undo *utxo.BlockUndo) (storage.Location, error) {
	data := undo.Encode()
	sum := undoChecksum(entry.Header().PrevBlock, data)
	loc, err := m.blocks.WriteUndo(append(data, sum[:]...))
	if err != nil {
		return storage.Location{}, fmt.Errorf("write undo %s: %w", entry.Hash(), err)
	}
	return loc, nil
}

func (m *Manager) readUndo(entry *blocktree.Entry) (*utxo.BlockUndo, error) {
	loc, ok := entry.UndoLocation()
	if !ok {
		return nil, fmt.Errorf("undo %s: %w", entry.Hash(), ErrNotAvailable)
	}
	raw, err := m.blocks.ReadUndo(loc)
	if err != nil {
		return nil, fmt.Errorf("read undo %s: %w", entry.Hash(), err)
	}
	if len(raw) < chainhash.HashSize {
		return nil, &storage.Error{Op: "read undo", Err: fmt.Errorf("%w: short undo record", storage.ErrCorrupt)}
	}
	data, sum := raw[:len(raw)-chainhash.HashSize], raw[len(raw)-chainhash.HashSize:]
	want := undoChecksum(entry.Header().PrevBlock, data)
	if !bytes.Equal(sum, want[:]) {
		return nil, &storage.Error{Op: "read undo", Err: fmt.Errorf("%w: undo checksum mismatch for %s", storage.ErrCorrupt, entry.Hash())}
	}
	return utxo.DecodeBlockUndo(data)
}
