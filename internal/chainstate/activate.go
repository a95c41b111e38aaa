package chainstate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// invalidBlockError carries a block that failed to connect.
type invalidBlockError struct {
	entry *blocktree.Entry
	err   error
}

func (e *invalidBlockError) Error() string {
	return fmt.Sprintf("block %s: %v", e.entry.Hash(), e.err)
}

func (e *invalidBlockError) Unwrap() error {
	return e.err
}

// step is a block moved onto or off the active chain.
type step struct {
	entry *blocktree.Entry
	block *btcutil.Block
	undo  storage.Location
}

// activateBestChain moves the active chain to the candidate with the most
// work until no candidate beats the tip. Blocks that fail to connect are
// marked invalid and their errors returned by hash; the search then goes on
// with the next best candidate. Runs with mu held.
func (m *Manager) activateBestChain(ctx context.Context) (map[chainhash.Hash]error, error) {
	failures := make(map[chainhash.Hash]error)
	for {
		if err := m.checkRunning(ctx); err != nil {
			return failures, err
		}
		old := m.active.Load()
		tip := old.Tip()
		best := m.tree.BestCandidate()
		if best == nil || best == tip || best.Work().Cmp(tip.Work()) <= 0 {
			m.tree.PruneCandidates(tip)
			return failures, nil
		}

		err := m.reorganize(ctx, old, best)
		var bad *invalidBlockError
		switch {
		case errors.As(err, &bad):
			failures[bad.entry.Hash()] = bad.err
			m.markInvalid(bad.entry, validation.ResultOf(bad.err), best)
		case err != nil:
			return failures, err
		}
	}
}

// reorganize moves the active chain from old to target. Extending the tip
// commits block by block. A reorg stages every disconnect and connect in one
// view and commits only once target is connected, so a failure leaves the
// active chain at old.
func (m *Manager) reorganize(ctx context.Context, old *chain.Chain, target *blocktree.Entry) error {
	tip := old.Tip()
	fork := m.tree.CommonAncestor(tip, target)
	if fork == nil {
		return m.fail(fmt.Errorf("no common ancestor of %s and %s", tip.Hash(), target.Hash()))
	}
	var path []*blocktree.Entry
	for e := target; e != fork; e = e.Previous() {
		path = append(path, e)
	}
	slices.Reverse(path)

	if fork == tip {
		for _, e := range path {
			if err := m.checkRunning(ctx); err != nil {
				return err
			}
			view := m.coins.NewView()
			s, err := m.connectTip(ctx, view, e)
			if err != nil {
				return err
			}
			if err := m.commit(view, m.active.Load(), e, nil, []step{s}); err != nil {
				return err
			}
		}
		return nil
	}

	view := m.coins.NewView()
	var disconnected []step
	for e := tip; e != fork; e = e.Previous() {
		s, err := m.disconnectTip(view, e)
		if err != nil {
			return err
		}
		disconnected = append(disconnected, s)
	}
	connected := make([]step, 0, len(path))
	for _, e := range path {
		if err := m.checkRunning(ctx); err != nil {
			return err
		}
		s, err := m.connectTip(ctx, view, e)
		if err != nil {
			m.logger.Info("reorganization abandoned",
				zap.Stringer("fork", fork.Hash()),
				zap.Int32("fork_height", fork.Height()),
				zap.Stringer("failed", e.Hash()),
				zap.Error(err),
			)
			return err
		}
		connected = append(connected, s)
	}

	m.metrics.ObserveReorg(len(disconnected))
	m.logger.Info("chain reorganized",
		zap.Stringer("fork", fork.Hash()),
		zap.Int32("fork_height", fork.Height()),
		zap.Int("disconnected", len(disconnected)),
		zap.Int("connected", len(connected)),
		zap.Stringer("old_tip", tip.Hash()),
		zap.Stringer("new_tip", target.Hash()),
	)
	return m.commit(view, old, target, disconnected, connected)
}

// disconnectTip stages the removal of the block of e. Undo data that does
// not match the coin set means the chainstate is corrupt.
func (m *Manager) disconnectTip(view *utxo.View, e *blocktree.Entry) (step, error) {
	block, err := m.readBlock(e)
	if err != nil {
		return step{}, m.storageFailure(err)
	}
	undo, err := m.readUndo(e)
	if err != nil {
		return step{}, m.storageFailure(err)
	}
	if err := view.DisconnectBlock(block, undo); err != nil {
		if errors.Is(err, utxo.ErrUndoMismatch) {
			return step{}, m.fail(fmt.Errorf("disconnect block %s: %w", e.Hash(), err))
		}
		return step{}, fmt.Errorf("disconnect block %s: %w", e.Hash(), err)
	}
	return step{entry: e, block: block}, nil
}

// storageFailure halts on data that cannot be read back correctly and
// passes transient errors through.
func (m *Manager) storageFailure(err error) error {
	var serr *storage.Error
	if errors.As(err, &serr) && !serr.Retryable() {
		return m.fail(err)
	}
	return err
}

// connectTip stages the connection of the block of e and stores its undo
// data. Consensus failures come back as *invalidBlockError.
func (m *Manager) connectTip(ctx context.Context, view *utxo.View, e *blocktree.Entry) (step, error) {
	block, err := m.readBlock(e)
	if err != nil {
		return step{}, m.storageFailure(err)
	}

	started := time.Now()
	undo, err := view.ConnectBlock(ctx, block, e.Height(), m.rules(e), m.verifier)
	m.metrics.ObserveConnectBlock(len(block.Transactions()), err, started)
	if err != nil {
		if validation.ResultOf(err) == validation.ResultUnset {
			return step{}, fmt.Errorf("connect block %s: %w", e.Hash(), err)
		}
		m.validation.BlockChecked(block, validation.StateFromError(err))
		m.logRejected(block, err)
		return step{}, &invalidBlockError{entry: e, err: err}
	}

	loc, err := m.writeUndo(e, undo)
	if err != nil {
		return step{}, err
	}
	m.benchLog.Debug("block connected",
		zap.Stringer("hash", e.Hash()),
		zap.Int32("height", e.Height()),
		zap.Int("txs", len(block.Transactions())),
		zap.Duration("elapsed", time.Since(started)),
	)
	return step{entry: e, block: block, undo: loc}, nil
}

// commit applies view and publishes the new active chain ending at tip.
func (m *Manager) commit(view *utxo.View, old *chain.Chain, tip *blocktree.Entry, disconnected, connected []step) error {
	view.Commit()
	for _, s := range disconnected {
		m.tree.AddCandidate(s.entry)
	}
	for _, s := range connected {
		m.tree.SetUndo(s.entry, s.undo)
		m.tree.SetFullyValid(s.entry)
	}
	m.active.Store(chain.New(tip, old))

	for _, s := range disconnected {
		m.validation.BlockDisconnected(s.block, s.entry)
	}
	for _, s := range connected {
		m.validation.BlockChecked(s.block, validation.State{Mode: validation.ModeValid})
		m.validation.BlockConnected(s.block, s.entry)
	}

	progress := m.verificationProgress(tip)
	m.metrics.SetTip(tip.Height(), m.coins.CacheSize())
	m.logger.Info("new tip",
		zap.Stringer("hash", tip.Hash()),
		zap.Int32("height", tip.Height()),
		zap.Uint32("txs", tip.TxCount()),
		zap.Time("date", tip.Timestamp()),
		zap.Float64("progress", progress),
		zap.Int("cache", m.coins.CacheSize()),
	)
	m.notify.BlockTip(m.syncState(), tip, progress)
	m.checkInvalidChainWarning()

	if m.coins.NeedsFlush() {
		return m.flush(false)
	}
	return nil
}

// verificationProgress estimates how much of the best known header chain
// is connected.
func (m *Manager) verificationProgress(tip *blocktree.Entry) float64 {
	best := m.tree.BestHeader()
	if best == nil || best.Height() <= 0 {
		return 1
	}
	return min(float64(tip.Height())/float64(best.Height()), 1)
}
