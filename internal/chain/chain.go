// Package chain is the active chain view: an immutable snapshot of the path
// from genesis to the selected tip, indexed by height.
package chain

import (
	"iter"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
)

// Chain is safe for concurrent use because it never changes. The manager
// replaces it wholesale after every commit.
type Chain struct {
	entries []*blocktree.Entry
}

// New builds the chain ending at tip. Entries shared with prev are reused;
// prev is never modified.
func New(tip *blocktree.Entry, prev *Chain) *Chain {
	if tip == nil {
		return &Chain{}
	}
	entries := make([]*blocktree.Entry, tip.Height()+1)
	n := tip
	for n != nil {
		h := n.Height()
		if prev != nil && prev.ByHeight(h) == n {
			copy(entries[:h+1], prev.entries[:h+1])
			break
		}
		entries[h] = n
		n = n.Previous()
	}
	return &Chain{entries: entries}
}

// Height returns the tip height, or -1 for an empty chain.
func (c *Chain) Height() int32 {
	return int32(len(c.entries)) - 1
}

// Tip returns the last entry, or nil.
func (c *Chain) Tip() *blocktree.Entry {
	if len(c.entries) == 0 {
		return nil
	}
	return c.entries[len(c.entries)-1]
}

// Genesis returns the entry at height 0, or nil.
func (c *Chain) Genesis() *blocktree.Entry {
	if len(c.entries) == 0 {
		return nil
	}
	return c.entries[0]
}

// ByHeight returns the entry at height, or nil when out of range.
func (c *Chain) ByHeight(height int32) *blocktree.Entry {
	if height < 0 || int(height) >= len(c.entries) {
		return nil
	}
	return c.entries[height]
}

// Contains reports whether e lies on the chain.
func (c *Chain) Contains(e *blocktree.Entry) bool {
	return e != nil && c.ByHeight(e.Height()) == e
}

// Next returns the successor of e on the chain, or nil.
func (c *Chain) Next(e *blocktree.Entry) *blocktree.Entry {
	if !c.Contains(e) {
		return nil
	}
	return c.ByHeight(e.Height() + 1)
}

// FindFork returns the last entry of the chain that is also an ancestor of e.
func (c *Chain) FindFork(e *blocktree.Entry) *blocktree.Entry {
	if e == nil || len(c.entries) == 0 {
		return nil
	}
	if e.Height() > c.Height() {
		e = e.Ancestor(c.Height())
	}
	for e != nil && !c.Contains(e) {
		e = e.Previous()
	}
	return e
}

// LookupHash returns the chain entry with hash, or nil.
func (c *Chain) LookupHash(hash chainhash.Hash) *blocktree.Entry {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Hash() == hash {
			return c.entries[i]
		}
	}
	return nil
}

// All yields the entries from genesis to tip. Each call starts over.
func (c *Chain) All() iter.Seq2[int32, *blocktree.Entry] {
	return func(yield func(int32, *blocktree.Entry) bool) {
		for i, e := range c.entries {
			if !yield(int32(i), e) {
				return
			}
		}
	}
}

// Cursor walks the chain by height.
type Cursor struct {
	chain  *Chain
	height int32
}

// Cursor returns a cursor positioned before genesis.
func (c *Chain) Cursor() *Cursor {
	return &Cursor{chain: c, height: -1}
}

// Next advances the cursor and reports whether an entry is available.
func (cur *Cursor) Next() bool {
	if cur.height >= cur.chain.Height() {
		return false
	}
	cur.height++
	return true
}

// Entry returns the entry under the cursor.
func (cur *Cursor) Entry() *blocktree.Entry {
	return cur.chain.ByHeight(cur.height)
}

// Seek positions the cursor so that the following Next lands on height.
func (cur *Cursor) Seek(height int32) {
	cur.height = max(height, 0) - 1
}
