package utxo

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"
)

// DefaultMaxCachedCoins bounds the cache when no size is configured.
const DefaultMaxCachedCoins = 1 << 20

type cacheEntry struct {
	coin  *Coin
	dirty bool
}

// Set is the UTXO set: a write-back cache over a Backend. Reads are safe
// for concurrent use; blocks are applied by a single writer through views.
// Cached coins are shared and never mutated.
type Set struct {
	backend   Backend
	logger    *zap.Logger
	maxCached int

	mu        sync.RWMutex
	cache     map[wire.OutPoint]*cacheEntry
	dirty     int
	best      chainhash.Hash
	persisted chainhash.Hash
	// gen changes whenever cached state moves under a concurrent backend
	// read; a read started under an older gen is not cached.
	gen uint64
}

// NewSet returns a set over backend that keeps at most maxCached coins in
// memory between flushes.
func NewSet(backend Backend, maxCached int, logger *zap.Logger) (*Set, error) {
	best, err := backend.BestBlock()
	if err != nil {
		return nil, fmt.Errorf("load utxo best block: %w", err)
	}
	if maxCached <= 0 {
		maxCached = DefaultMaxCachedCoins
	}
	return &Set{
		backend:   backend,
		logger:    logger,
		maxCached: maxCached,
		cache:     make(map[wire.OutPoint]*cacheEntry),
		best:      best,
		persisted: best,
	}, nil
}

// BestBlock returns the hash of the block the set is consistent with. The
// zero hash means no block was connected yet.
func (s *Set) BestBlock() chainhash.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.best
}

// GetCoin returns the unspent coin at op.
func (s *Set) GetCoin(op wire.OutPoint) (Coin, bool, error) {
	c, err := s.fetch(op)
	if err != nil || c == nil {
		return Coin{}, false, err
	}
	return *c.clone(), true, nil
}

func (s *Set) fetch(op wire.OutPoint) (*Coin, error) {
	for {
		s.mu.RLock()
		e, ok := s.cache[op]
		gen := s.gen
		s.mu.RUnlock()
		if ok {
			return e.coin, nil
		}

		c, err := s.backend.FetchCoin(op)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if e, ok := s.cache[op]; ok {
			s.mu.Unlock()
			return e.coin, nil
		}
		if s.gen != gen {
			// A commit or flush ran during the read; c may be stale.
			s.mu.Unlock()
			continue
		}
		s.cache[op] = &cacheEntry{coin: c}
		s.mu.Unlock()
		return c, nil
	}
}

func (s *Set) apply(changes map[wire.OutPoint]*Coin, best chainhash.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for op, c := range changes {
		e, ok := s.cache[op]
		if !ok {
			e = &cacheEntry{}
			s.cache[op] = e
		}
		if !e.dirty {
			s.dirty++
		}
		e.coin = c
		e.dirty = true
	}
	s.best = best
	s.gen++
}

// Reset drops the cache and reloads the best block, for a backend that was
// wiped or replaced underneath the set.
func (s *Set) Reset() error {
	best, err := s.backend.BestBlock()
	if err != nil {
		return fmt.Errorf("load utxo best block: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[wire.OutPoint]*cacheEntry)
	s.dirty = 0
	s.best = best
	s.persisted = best
	s.gen++
	return nil
}

// CacheSize returns the number of cached outpoints, spent ones included.
func (s *Set) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// NeedsFlush reports whether the cache outgrew its bound.
func (s *Set) NeedsFlush() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache) > s.maxCached
}

// Flush writes every change and the best block to the backend in one batch.
// On failure the changes stay cached and the flush can be retried.
func (s *Set) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty == 0 && s.best == s.persisted {
		return nil
	}
	changes := make(map[wire.OutPoint]*Coin, s.dirty)
	for op, e := range s.cache {
		if e.dirty {
			changes[op] = e.coin
		}
	}
	if err := s.backend.WriteCoins(changes, s.best); err != nil {
		return fmt.Errorf("flush utxo set: %w", err)
	}

	for op := range changes {
		s.cache[op].dirty = false
	}
	s.dirty = 0
	s.persisted = s.best
	if len(s.cache) > s.maxCached {
		s.cache = make(map[wire.OutPoint]*cacheEntry)
		s.gen++
	}
	s.logger.Debug("utxo set flushed",
		zap.Int("changes", len(changes)),
		zap.Stringer("best", s.best),
	)
	return nil
}

// NewView starts a staged view over the set. Only one view may be
// committed at a time.
func (s *Set) NewView() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &View{
		set:     s,
		changes: make(map[wire.OutPoint]*Coin),
		best:    s.best,
	}
}
