package blocktree

import (
	"math/big"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// ID is the arena index of an entry inside its tree.
type ID int32

const medianTimeBlocks = 11

// Entry is a block header known to a Tree. Header fields, height and work
// never change; status fields are guarded by the tree lock.
type Entry struct {
	tree   *Tree
	id     ID
	prev   *Entry
	hash   chainhash.Hash
	header wire.BlockHeader
	height int32
	work   *big.Int
	seq    uint64

	status    Status
	result    validation.Result
	txCount   uint32
	data      storage.Location
	undo      storage.Location
	chainData bool
}

func (e *Entry) ID() ID { return e.id }
func (e *Entry) Hash() chainhash.Hash { return e.hash }
func (e *Entry) Height() int32 { return e.height }
func (e *Entry) Header() wire.BlockHeader { return e.header }
func (e *Entry) Timestamp() time.Time { return e.header.Timestamp }

// Work returns a copy of the cumulative chain work up to and including e.
func (e *Entry) Work() *big.Int {
	return new(big.Int).Set(e.work)
}

// Previous returns the parent entry, or nil for genesis.
func (e *Entry) Previous() *Entry {
	return e.prev
}

// Status returns the current validation status.
func (e *Entry) Status() Status {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.status
}

// Result returns why the entry was marked invalid, if it was.
func (e *Entry) Result() validation.Result {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.result
}

// TxCount returns the number of transactions once the block data is known.
func (e *Entry) TxCount() uint32 {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.txCount
}

// DataLocation returns where the block is stored.
func (e *Entry) DataLocation() (storage.Location, bool) {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.data, e.status.Has(StatusHaveData)
}

// UndoLocation returns where the undo data of the block is stored.
func (e *Entry) UndoLocation() (storage.Location, bool) {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.undo, e.status.Has(StatusHaveUndo)
}

// Ancestor returns the ancestor of e at height, e itself at its own height,
// or nil when height is out of range.
func (e *Entry) Ancestor(height int32) *Entry {
	if height < 0 || height > e.height {
		return nil
	}
	n := e
	for n != nil && n.height > height {
		n = n.Previous()
	}
	return n
}

// MedianTimePast returns the median timestamp of e and its ten predecessors.
func (e *Entry) MedianTimePast() time.Time {
	stamps := make([]int64, 0, medianTimeBlocks)
	for n := e; n != nil && len(stamps) < medianTimeBlocks; n = n.Previous() {
		stamps = append(stamps, n.header.Timestamp.Unix())
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	return time.Unix(stamps[len(stamps)/2], 0)
}

func (e *Entry) String() string {
	return e.hash.String()
}

// Record is the persisted form of an entry.
type Record struct {
	Header  wire.BlockHeader
	Height  int32
	Status  Status
	Result  validation.Result
	TxCount uint32
	Data    storage.Location
	Undo    storage.Location
}

// Record snapshots e for persistence.
func (e *Entry) Record() Record {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.record()
}

func (e *Entry) record() Record {
	return Record{
		Header:  e.header,
		Height:  e.height,
		Status:  e.status,
		Result:  e.result,
		TxCount: e.txCount,
		Data:    e.data,
		Undo:    e.undo,
	}
}
