// Package blocktree keeps every known block header in an arena indexed by
// hash, linked to its parent and annotated with height, cumulative work and
// validation status.
package blocktree

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// MaxFutureBlockTime is how far ahead of the local clock a header may be.
const MaxFutureBlockTime = 2 * time.Hour

var (
	// ErrDuplicate is returned with the existing entry when a header is
	// inserted twice.
	ErrDuplicate = errors.New("duplicate header")
	// ErrNoGenesis is returned by operations that need a genesis entry.
	ErrNoGenesis = errors.New("block tree has no genesis")
	// ErrCorruptIndex is returned by Load for records that do not form a tree.
	ErrCorruptIndex = errors.New("corrupt block index")
)

// Tree is the block index. It is safe for concurrent use.
type Tree struct {
	params *chaincfg.Params
	clock  clock.Clock
	logger *zap.Logger

	mu         sync.RWMutex
	entries    []*Entry
	byHash     map[chainhash.Hash]ID
	children   map[ID][]ID
	candidates mapset.Set[ID]
	dirty      mapset.Set[ID]
	bestHeader *Entry
	seq        uint64
}

// New returns an empty tree for params.
func New(params *chaincfg.Params, clk clock.Clock, logger *zap.Logger) *Tree {
	return &Tree{
		params:     params,
		clock:      clk,
		logger:     logger,
		byHash:     make(map[chainhash.Hash]ID),
		children:   make(map[ID][]ID),
		candidates: mapset.NewThreadUnsafeSet[ID](),
		dirty:      mapset.NewThreadUnsafeSet[ID](),
	}
}

// Reset drops every entry, leaving an empty tree.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.byHash = make(map[chainhash.Hash]ID)
	t.children = make(map[ID][]ID)
	t.candidates.Clear()
	t.dirty.Clear()
	t.bestHeader = nil
	t.seq = 0
}

// Params returns the network parameters the tree validates against.
func (t *Tree) Params() *chaincfg.Params {
	return t.params
}

// InitGenesis inserts the network genesis header. It is a no-op when the
// tree already has one.
func (t *Tree) InitGenesis() *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) > 0 {
		return t.entries[0]
	}
	e := t.addEntry(&t.params.GenesisBlock.Header, nil)
	e.status = StatusHeaderValid
	return e
}

// Genesis returns the first entry, or nil for an empty tree.
func (t *Tree) Genesis() *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return nil
	}
	return t.entries[0]
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Lookup returns the entry with hash, or nil.
func (t *Tree) Lookup(hash chainhash.Hash) *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byHash[hash]
	if !ok {
		return nil
	}
	return t.entries[id]
}

// Get returns the entry with id, or nil.
func (t *Tree) Get(id ID) *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.entries) {
		return nil
	}
	return t.entries[id]
}

// BestHeader returns the valid entry with the most work.
func (t *Tree) BestHeader() *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bestHeader
}

// InsertHeader validates header against its parent and adds it. A header
// already present is returned together with ErrDuplicate, or with a
// cached-invalid error when it was marked invalid earlier.
func (t *Tree) InsertHeader(header *wire.BlockHeader) (*Entry, error) {
	hash := header.BlockHash()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return nil, ErrNoGenesis
	}
	if id, ok := t.byHash[hash]; ok {
		e := t.entries[id]
		if e.status.Failed() {
			return e, validation.New(validation.ResultCachedInvalid, "duplicate-invalid")
		}
		return e, ErrDuplicate
	}

	parentID, ok := t.byHash[header.PrevBlock]
	if !ok {
		return nil, validation.New(validation.ResultMissingPrev, "prev-blk-not-found")
	}
	parent := t.entries[parentID]
	if parent.status.Failed() {
		return nil, validation.New(validation.ResultInvalidPrev, "bad-prevblk")
	}

	if err := checkProofOfWork(header, hash, t.params.PowLimit); err != nil {
		return nil, err
	}
	if err := t.checkContextual(header, parent); err != nil {
		return nil, err
	}

	e := t.addEntry(header, parent)
	e.status = StatusHeaderValid
	t.logger.Debug("header accepted",
		zap.Stringer("hash", e.hash),
		zap.Int32("height", e.height),
	)
	return e, nil
}

func checkProofOfWork(header *wire.BlockHeader, hash chainhash.Hash, powLimit *big.Int) error {
	target := blockchain.CompactToBig(header.Bits)
	if target.Sign() <= 0 || target.Cmp(powLimit) > 0 {
		return validation.New(validation.ResultInvalidHeader, "high-hash")
	}
	if blockchain.HashToBig(&hash).Cmp(target) > 0 {
		return validation.New(validation.ResultInvalidHeader, "high-hash")
	}
	return nil
}

func (t *Tree) checkContextual(header *wire.BlockHeader, parent *Entry) error {
	height := parent.height + 1

	want, err := t.nextRequiredBits(parent, header.Timestamp)
	if err != nil {
		return fmt.Errorf("compute required bits: %w", err)
	}
	if header.Bits != want {
		return validation.New(validation.ResultInvalidHeader, "bad-diffbits")
	}
	if !header.Timestamp.After(parent.MedianTimePast()) {
		return validation.New(validation.ResultInvalidHeader, "time-too-old")
	}
	if header.Timestamp.After(t.clock.Now().Add(MaxFutureBlockTime)) {
		return validation.New(validation.ResultTimeFuture, "time-too-new")
	}

	switch {
	case header.Version < 2 && height >= t.params.BIP0034Height,
		header.Version < 3 && height >= t.params.BIP0066Height,
		header.Version < 4 && height >= t.params.BIP0065Height:
		return validation.New(validation.ResultInvalidHeader, fmt.Sprintf("bad-version(0x%08x)", uint32(header.Version)))
	}
	return nil
}

func (t *Tree) addEntry(header *wire.BlockHeader, parent *Entry) *Entry {
	e := &Entry{
		tree:   t,
		id:     ID(len(t.entries)),
		hash:   header.BlockHash(),
		header: *header,
		work:   blockchain.CalcWork(header.Bits),
		seq:    t.seq,
	}
	t.seq++
	if parent != nil {
		e.prev = parent
		e.height = parent.height + 1
		e.work.Add(e.work, parent.work)
		t.children[parent.id] = append(t.children[parent.id], e.id)
	}
	t.entries = append(t.entries, e)
	t.byHash[e.hash] = e.id
	t.dirty.Add(e.id)

	if t.bestHeader == nil || e.work.Cmp(t.bestHeader.work) > 0 {
		t.bestHeader = e
	}
	return e
}

// SetData records that the block of e is stored at loc and passed the
// context-free checks. Entries whose whole ancestry has data become
// candidates for the active tip.
func (t *Tree) SetData(e *Entry, loc storage.Location, txCount uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.status |= StatusHaveData | StatusValidTransactions
	e.data = loc
	e.txCount = txCount
	t.dirty.Add(e.id)

	if e.prev != nil && !e.prev.chainData {
		return
	}
	queue := []*Entry{e}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		n.chainData = true
		if !n.status.Failed() {
			t.candidates.Add(n.id)
		}
		for _, cid := range t.children[n.id] {
			if c := t.entries[cid]; c.status.Has(StatusHaveData) && !c.chainData {
				queue = append(queue, c)
			}
		}
	}
}

// SetUndo records where the undo data of e is stored.
func (t *Tree) SetUndo(e *Entry, loc storage.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.status |= StatusHaveUndo
	e.undo = loc
	t.dirty.Add(e.id)
}

// SetFullyValid marks e as connected successfully.
func (t *Tree) SetFullyValid(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !e.status.Has(StatusValidScripts) {
		e.status |= StatusValidScripts
		t.dirty.Add(e.id)
	}
}

// ResetConnected clears the connected state of every entry above genesis so
// that the blocks are validated again.
func (t *Tree) ResetConnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries[1:] {
		if e.status&(StatusValidScripts|StatusHaveUndo) != 0 {
			e.status &^= StatusValidScripts | StatusHaveUndo
			e.undo = storage.Location{}
			t.dirty.Add(e.id)
		}
		if e.chainData && !e.status.Failed() {
			t.candidates.Add(e.id)
		}
	}
}

// MarkInvalid flags e as invalid for result and every descendant as failed
// children. It returns the number of entries changed.
func (t *Tree) MarkInvalid(e *Entry, result validation.Result) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.status |= StatusFailedValid
	e.result = result
	t.candidates.Remove(e.id)
	t.dirty.Add(e.id)
	changed := 1

	queue := append([]ID(nil), t.children[e.id]...)
	for len(queue) > 0 {
		n := t.entries[queue[0]]
		queue = queue[1:]
		if !n.status.Has(StatusFailedChild) {
			n.status |= StatusFailedChild
			t.candidates.Remove(n.id)
			t.dirty.Add(n.id)
			changed++
		}
		queue = append(queue, t.children[n.id]...)
	}

	if t.bestHeader != nil && t.bestHeader.status.Failed() {
		t.bestHeader = nil
		for _, n := range t.entries {
			if n.status.Failed() {
				continue
			}
			if t.bestHeader == nil || n.work.Cmp(t.bestHeader.work) > 0 {
				t.bestHeader = n
			}
		}
	}
	return changed
}

// BestCandidate returns the candidate with the most work; among equal work
// the one seen first wins.
func (t *Tree) BestCandidate() *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best *Entry
	t.candidates.Each(func(id ID) bool {
		e := t.entries[id]
		if best == nil || better(e, best) {
			best = e
		}
		return false
	})
	return best
}

func better(a, b *Entry) bool {
	if c := a.work.Cmp(b.work); c != 0 {
		return c > 0
	}
	return a.seq < b.seq
}

// PruneCandidates drops candidates that can no longer beat tip.
func (t *Tree) PruneCandidates(tip *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var drop []ID
	t.candidates.Each(func(id ID) bool {
		e := t.entries[id]
		if e != tip && !better(e, tip) {
			drop = append(drop, id)
		}
		return false
	})
	for _, id := range drop {
		t.candidates.Remove(id)
	}
}

// AddCandidate makes e eligible again, for entries restored by a rollback.
func (t *Tree) AddCandidate(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.chainData && !e.status.Failed() {
		t.candidates.Add(e.id)
	}
}

// CommonAncestor returns the last entry shared by the paths to a and b.
func (t *Tree) CommonAncestor(a, b *Entry) *Entry {
	if a == nil || b == nil {
		return nil
	}
	if a.height > b.height {
		a = a.Ancestor(b.height)
	} else if b.height > a.height {
		b = b.Ancestor(a.height)
	}
	for a != b && a != nil && b != nil {
		a = a.prev
		b = b.prev
	}
	return a
}

// TakeDirty returns the records changed since the previous call.
func (t *Tree) TakeDirty() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := t.dirty.ToSlice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.entries[id].record())
	}
	t.dirty.Clear()
	return out
}

// Redirty marks the entries behind records as changed again, for records
// whose write failed.
func (t *Tree) Redirty(records []Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range records {
		if id, ok := t.byHash[r.Header.BlockHash()]; ok {
			t.dirty.Add(id)
		}
	}
}

// Load rebuilds the tree from persisted records. The tree must be empty.
func (t *Tree) Load(records []Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) != 0 {
		return fmt.Errorf("load block index: tree is not empty")
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Height < records[j].Height })

	for i := range records {
		r := &records[i]
		var parent *Entry
		if i == 0 {
			if r.Height != 0 || r.Header.BlockHash() != *t.params.GenesisHash {
				return fmt.Errorf("%w: first record is not the %s genesis", ErrCorruptIndex, t.params.Name)
			}
		} else {
			id, ok := t.byHash[r.Header.PrevBlock]
			if !ok {
				return fmt.Errorf("%w: orphan record %s", ErrCorruptIndex, r.Header.BlockHash())
			}
			parent = t.entries[id]
			if parent.height+1 != r.Height {
				return fmt.Errorf("%w: record %s at height %d", ErrCorruptIndex, r.Header.BlockHash(), r.Height)
			}
		}
		e := t.addEntry(&r.Header, parent)
		e.status = r.Status
		e.result = r.Result
		e.txCount = r.TxCount
		e.data = r.Data
		e.undo = r.Undo
		e.chainData = e.status.Has(StatusHaveData) && (parent == nil || parent.chainData)
		if e.chainData && !e.status.Failed() {
			t.candidates.Add(e.id)
		}
	}

	t.bestHeader = nil
	for _, e := range t.entries {
		if !e.status.Failed() && (t.bestHeader == nil || e.work.Cmp(t.bestHeader.work) > 0) {
			t.bestHeader = e
		}
	}
	t.dirty.Clear()
	return nil
}
