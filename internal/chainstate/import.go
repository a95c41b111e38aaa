package chainstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/logging"
	"github.com/goodnatureofminers/btckernel/internal/primitives"
	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/validation"
	"github.com/goodnatureofminers/btckernel/pkg/safe"
)

// importQueueSize is how many parsed blocks the reader runs ahead.
const importQueueSize = 64

// pendingBlock is a block read from a file. loc is set for blocks that are
// already in the block files.
type pendingBlock struct {
	block *btcutil.Block
	loc   *storage.Location
}

// ImportBlocks runs a pending reindex, then loads every block of the given
// blkNNNNN.dat-format files and activates the best chain. Blocks may appear
// before their parent; they wait until the parent is imported. Invalid
// blocks are skipped.
func (m *Manager) ImportBlocks(ctx context.Context, paths []string) error {
	if m.halted.Load() {
		return ErrHalted
	}
	m.mu.Lock()
	pending := m.reindexPending
	m.mu.Unlock()
	if pending {
		if err := m.Reindex(ctx); err != nil {
			return err
		}
	}

	for _, path := range paths {
		if err := m.importFile(ctx, path); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.activateBestChain(ctx); err != nil {
		return err
	}
	return m.flush(true)
}

func (m *Manager) importFile(ctx context.Context, path string) error {
	logger := m.logger.With(zap.String("path", path))
	logger.Info("importing blocks")

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan pendingBlock, importQueueSize)
	g.Go(func() error {
		defer close(in)
		return storage.ScanBlockFilePath(path, m.params.Net, func(raw []byte) error {
			return m.enqueue(gctx, in, raw, nil)
		})
	})
	var imported int
	g.Go(func() error {
		var err error
		imported, err = m.consume(gctx, in)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("blocks imported", zap.Int("blocks", imported))
	return nil
}

// enqueue parses raw and hands it to the consumer. Records that do not
// parse are logged and skipped.
func (m *Manager) enqueue(ctx context.Context, in chan<- pendingBlock, raw []byte, loc *storage.Location) error {
	block, err := primitives.ParseBlock(raw)
	if err != nil {
		m.logger.Warn("skipping malformed block record", zap.Error(err))
		return nil
	}
	select {
	case in <- pendingBlock{block: block, loc: loc}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume processes blocks in the order received, parking those whose
// parent is unknown until the parent arrives.
func (m *Manager) consume(ctx context.Context, in <-chan pendingBlock) (int, error) {
	orphans := make(map[chainhash.Hash][]pendingBlock)
	var imported int
	for p := range in {
		if err := m.checkRunning(ctx); err != nil {
			return imported, err
		}
		queue := []pendingBlock{p}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			hash := *p.block.Hash()
			prev := p.block.MsgBlock().Header.PrevBlock
			if hash != *m.params.GenesisHash && m.tree.Lookup(prev) == nil {
				orphans[prev] = append(orphans[prev], p)
				continue
			}
			if err := m.importBlock(ctx, p); err != nil {
				return imported, err
			}
			imported++
			queue = append(queue, orphans[hash]...)
			delete(orphans, hash)
		}
	}
	var left int
	for _, blocks := range orphans {
		left += len(blocks)
	}
	if left > 0 {
		m.logger.Warn("blocks without parent were not imported", zap.Int("blocks", left))
	}
	return imported, nil
}

func (m *Manager) importBlock(ctx context.Context, p pendingBlock) error {
	if m.halted.Load() {
		return ErrHalted
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if *p.block.Hash() == *m.params.GenesisHash {
		genesis := m.tree.Genesis()
		if p.loc != nil && !genesis.Status().Has(blocktree.StatusHaveData) {
			txCount, err := safe.Uint32(len(p.block.Transactions()))
			if err != nil {
				return fmt.Errorf("genesis tx count: %w", err)
			}
			m.tree.SetData(genesis, *p.loc, txCount)
			m.tree.SetFullyValid(genesis)
		}
		return nil
	}

	_, err := m.processBlock(ctx, p.block, p.loc)
	switch {
	case err == nil, errors.Is(err, ErrDuplicate):
		return nil
	case validation.ResultOf(err) != validation.ResultUnset:
		m.logger.Debug("imported block is invalid",
			zap.Stringer("hash", p.block.Hash()),
			zap.Error(err),
		)
		return nil
	default:
		return err
	}
}

// Reindex rebuilds the block tree and the chainstate from the stored block
// files. An interrupted reindex restarts from scratch on the next
// ImportBlocks.
func (m *Manager) Reindex(ctx context.Context) error {
	if m.halted.Load() {
		return ErrHalted
	}
	if err := m.resetForReindex(); err != nil {
		return err
	}
	m.reindexing.Store(true)
	defer m.reindexing.Store(false)

	logger := m.opts.Logger.Named(logging.CategoryReindex)
	logger.Info("reindexing block files")
	m.notify.Progress("Reindexing blocks", 0, false)

	var files int
	if lister, ok := m.blocks.(interface{ Files() ([]string, error) }); ok {
		names, err := lister.Files()
		if err != nil {
			return err
		}
		files = len(names)
	}

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan pendingBlock, importQueueSize)
	g.Go(func() error {
		defer close(in)
		current := uint32(0)
		return m.blocks.ForEachBlock(func(loc storage.Location, raw []byte) error {
			if files > 0 && loc.File != current {
				current = loc.File
				m.notify.Progress("Reindexing blocks", int(current)*100/files, false)
				logger.Info("reindexing block file", zap.Uint32("file", current))
			}
			return m.enqueue(gctx, in, raw, &loc)
		})
	})
	var imported int
	g.Go(func() error {
		var err error
		imported, err = m.consume(gctx, in)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tree.Genesis().Status().Has(blocktree.StatusHaveData) {
		if err := m.storeGenesis(); err != nil {
			return err
		}
	}
	if _, err := m.activateBestChain(ctx); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	if err := m.flush(true); err != nil {
		return err
	}
	if err := m.setReindexing(false); err != nil {
		return err
	}
	m.reindexPending = false
	m.notify.Progress("Reindexing blocks", 100, false)

	tip := m.active.Load().Tip()
	logger.Info("reindex finished",
		zap.Int("blocks", imported),
		zap.Int32("height", tip.Height()),
		zap.Stringer("tip", tip.Hash()),
	)
	return nil
}

// resetForReindex wipes both databases and leaves a tree with only the
// genesis header. The reindex flag survives a crash until the rebuild is
// complete.
func (m *Manager) resetForReindex() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := storage.Wipe(m.indexDB); err != nil {
		return fmt.Errorf("wipe block index: %w", err)
	}
	if err := storage.Wipe(m.coinsDB); err != nil {
		return fmt.Errorf("wipe chainstate: %w", err)
	}
	if err := m.setReindexing(true); err != nil {
		return err
	}
	if err := m.coins.Reset(); err != nil {
		return err
	}
	m.tree.Reset()
	genesis := m.tree.InitGenesis()
	m.active.Store(chain.New(genesis, nil))
	m.worstInvalid = nil
	m.reindexPending = true
	return nil
}
