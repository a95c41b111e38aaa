// Package chainstate validates blocks and keeps the active chain and its
// UTXO set. A Manager owns the block tree, the coin set, the block files and
// the databases behind them.
package chainstate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/logging"
	"github.com/goodnatureofminers/btckernel/internal/script"
	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
	"github.com/goodnatureofminers/btckernel/internal/validation"
	"github.com/goodnatureofminers/btckernel/pkg/safe"
)

// ProcessResult is the outcome of ProcessBlock.
type ProcessResult struct {
	// Accepted is set when the block was stored and is not known to be
	// invalid. It can be set together with an error that stopped chain
	// activation.
	Accepted bool
	// IsNewBlock is set when the hash was unknown before the call.
	IsNewBlock bool
}

// Manager is the chainstate manager. Reads are safe for concurrent use;
// writes are serialized.
type Manager struct {
	opts       Options
	params     *chaincfg.Params
	clock      clock.Clock
	logger     *zap.Logger
	benchLog   *zap.Logger
	notify     Notifications
	validation ValidationInterface
	metrics    Metrics

	indexDB  storage.DB
	coinsDB  storage.DB
	blocks   storage.BlockStore
	tree     *blocktree.Tree
	coins    *utxo.Set
	verifier *script.Verifier

	mu             sync.Mutex
	active         atomic.Pointer[chain.Chain]
	halted         atomic.Bool
	interrupted    atomic.Bool
	reindexing     atomic.Bool
	reindexPending bool
	warnings       map[Warning]bool
	worstInvalid   *blocktree.Entry
	closeOnce      sync.Once
	closeErr       error
}

// New opens or creates the databases and block files described by opts and
// loads the chainstate. A chainstate that lags the block index is brought
// up to date before New returns, unless a reindex is pending.
func New(opts Options) (m *Manager, err error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("chainstate options: %w", err)
	}
	logger := opts.Logger.Named(logging.CategoryKernel)

	m = &Manager{
		opts:       opts,
		params:     opts.Params,
		clock:      opts.Clock,
		logger:     logger,
		benchLog:   opts.Logger.Named(logging.CategoryBench),
		notify:     opts.Notifications,
		validation: opts.Validation,
		metrics:    opts.Metrics,
		warnings:   make(map[Warning]bool),
	}
	defer func() {
		if err != nil {
			_ = m.closeStores()
		}
	}()

	if err := m.openStores(); err != nil {
		return nil, err
	}

	verifierOpts := []script.Option{
		script.WithWorkers(opts.WorkerThreads),
	}
	if opts.SigCacheSize > 0 {
		verifierOpts = append(verifierOpts, script.WithSigCacheSize(opts.SigCacheSize))
	}
	if opts.ScriptMetrics != nil {
		verifierOpts = append(verifierOpts, script.WithMetrics(opts.ScriptMetrics))
	}
	m.verifier = script.NewVerifier(opts.Logger.Named(logging.CategoryValidation), verifierOpts...)

	if err := m.load(); err != nil {
		return nil, err
	}
	if !m.reindexPending {
		if _, err := m.activateBestChain(context.Background()); err != nil {
			return nil, fmt.Errorf("replay blocks: %w", err)
		}
		if err := m.flush(true); err != nil {
			return nil, err
		}
	}
	tip := m.ActiveChain().Tip()
	m.logger.Info("chainstate loaded",
		zap.String("network", m.params.Name),
		zap.Int32("height", tip.Height()),
		zap.Stringer("tip", tip.Hash()),
		zap.Int("entries", m.tree.Len()),
		zap.Bool("reindex_pending", m.reindexPending),
	)
	return m, nil
}

func (m *Manager) openStores() error {
	var err error
	opts := m.opts
	m.indexDB, err = storage.Open(opts.DBBackend, blocksIndexDir(opts), "index", opts.BlockTreeInMemory,
		opts.Logger.Named(logging.CategoryBlockStorage))
	if err != nil {
		return fmt.Errorf("open block index: %w", err)
	}
	m.coinsDB, err = storage.Open(opts.DBBackend, opts.DataDir, "chainstate", opts.ChainstateInMemory,
		opts.Logger.Named(logging.CategoryCoinDB))
	if err != nil {
		return fmt.Errorf("open chainstate: %w", err)
	}
	if opts.WipeBlockTree {
		if err := storage.Wipe(m.indexDB); err != nil {
			return fmt.Errorf("wipe block index: %w", err)
		}
	}
	if opts.WipeChainstate {
		if err := storage.Wipe(m.coinsDB); err != nil {
			return fmt.Errorf("wipe chainstate: %w", err)
		}
	}

	if opts.BlocksDir == "" {
		m.blocks = storage.NewMemoryBlockStore()
	} else {
		files, err := storage.OpenFlatFileStore(opts.BlocksDir, m.params.Net, opts.MaxBlockFileSize)
		if err != nil {
			return fmt.Errorf("open block files: %w", err)
		}
		m.blocks = files
	}
	return nil
}

func blocksIndexDir(opts Options) string {
	if opts.BlocksDir == "" {
		return opts.DataDir
	}
	return opts.BlocksDir
}

// load builds the tree, the coin set and the active chain from the stores.
func (m *Manager) load() error {
	m.tree = blocktree.New(m.params, m.clock, m.opts.Logger.Named(logging.CategoryValidation))
	coins, err := utxo.NewSet(utxo.NewDBStore(m.coinsDB), m.opts.CoinCacheSize, m.opts.Logger.Named(logging.CategoryCoinDB))
	if err != nil {
		return err
	}
	m.coins = coins

	reindex, err := m.reindexFlag()
	if err != nil {
		return err
	}
	m.reindexPending = m.opts.WipeBlockTree || reindex

	if !m.reindexPending {
		found, err := m.loadIndex()
		if err != nil {
			return err
		}
		if !found {
			if err := m.storeGenesis(); err != nil {
				return err
			}
		}
	} else {
		m.tree.InitGenesis()
	}
	if g := m.tree.Genesis(); g.Hash() != *m.params.GenesisHash {
		return fmt.Errorf("block index belongs to another network: genesis %s", g.Hash())
	}

	tip := m.tree.Genesis()
	switch best := m.coins.BestBlock(); {
	case m.reindexPending:
	case best != (chainhash.Hash{}):
		tip = m.tree.Lookup(best)
		if tip == nil || !tip.Status().Has(blocktree.StatusHaveData) {
			return m.fail(fmt.Errorf("chainstate tip %s is not in the block index, reindex required", best))
		}
	case m.tree.Len() > 1:
		m.logger.Info("chainstate is empty, replaying stored blocks")
		m.tree.ResetConnected()
	}
	m.active.Store(chain.New(tip, nil))
	return nil
}

// Close flushes and releases every store. It is safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		var flushErr error
		if !m.halted.Load() {
			flushErr = m.flush(true)
		}
		m.closeErr = errors.Join(flushErr, m.closeStores())
		m.logger.Info("chainstate closed")
	})
	return m.closeErr
}

func (m *Manager) closeStores() error {
	var errs []error
	if m.blocks != nil {
		errs = append(errs, m.blocks.Close())
	}
	if m.coinsDB != nil {
		errs = append(errs, m.coinsDB.Close())
	}
	if m.indexDB != nil {
		errs = append(errs, m.indexDB.Close())
	}
	return errors.Join(errs...)
}

// Params returns the network parameters.
func (m *Manager) Params() *chaincfg.Params {
	return m.params
}

// Interrupt stops ImportBlocks, Reindex and chain activation at the next
// block boundary. It cannot be undone.
func (m *Manager) Interrupt() {
	m.interrupted.Store(true)
}

func (m *Manager) checkRunning(ctx context.Context) error {
	if m.interrupted.Load() {
		return ErrInterrupted
	}
	return ctx.Err()
}

// fail halts the manager.
func (m *Manager) fail(err error) error {
	var ferr *FatalError
	if !errors.As(err, &ferr) {
		ferr = &FatalError{Err: err}
	}
	if m.halted.CompareAndSwap(false, true) {
		m.logger.Error("chainstate halted", zap.Error(ferr.Err))
		m.notify.FatalError(ferr.Error())
	}
	return ferr
}

// ActiveChain returns a snapshot of the active chain. The snapshot is never
// modified; a new one replaces it after every tip change.
func (m *Manager) ActiveChain() *chain.Chain {
	return m.active.Load()
}

// LookupEntry returns the tree entry of hash, or nil.
func (m *Manager) LookupEntry(hash chainhash.Hash) *blocktree.Entry {
	return m.tree.Lookup(hash)
}

// BestHeader returns the valid header with the most work.
func (m *Manager) BestHeader() *blocktree.Entry {
	return m.tree.BestHeader()
}

// ReadBlock loads the block of entry from the block files.
func (m *Manager) ReadBlock(entry *blocktree.Entry) (*btcutil.Block, error) {
	return m.readBlock(entry)
}

// ReadBlockSpentOutputs returns the coins spent by each non-coinbase
// transaction of the block. The genesis block spends nothing.
func (m *Manager) ReadBlockSpentOutputs(entry *blocktree.Entry) (*utxo.BlockUndo, error) {
	if entry.Previous() == nil {
		return &utxo.BlockUndo{}, nil
	}
	return m.readUndo(entry)
}

// GetCoin returns the unspent coin at op in the active chainstate.
func (m *Manager) GetCoin(op wire.OutPoint) (utxo.Coin, bool, error) {
	return m.coins.GetCoin(op)
}

func (m *Manager) syncState() SyncState {
	if m.reindexing.Load() {
		return SyncInitReindex
	}
	if isInitialDownload(m.active.Load().Tip(), m.clock.Now()) {
		return SyncInitDownload
	}
	return SyncPostInit
}

// ProcessBlockHeader validates header and adds it to the tree. A header that
// is already known and valid is returned without error.
func (m *Manager) ProcessBlockHeader(header *wire.BlockHeader) (*blocktree.Entry, error) {
	if m.halted.Load() {
		return nil, ErrHalted
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.acceptHeader(header)
	if err != nil {
		return nil, err
	}
	if err := m.writeIndex(); err != nil {
		return entry, err
	}
	return entry, nil
}

func (m *Manager) acceptHeader(header *wire.BlockHeader) (*blocktree.Entry, error) {
	before := m.tree.BestHeader()
	entry, err := m.tree.InsertHeader(header)
	switch {
	case errors.Is(err, blocktree.ErrDuplicate):
		return entry, nil
	case err != nil:
		m.logger.Debug("header rejected", zap.Stringer("hash", header.BlockHash()), zap.Error(err))
		return nil, err
	}
	if best := m.tree.BestHeader(); best != before {
		m.notify.HeaderTip(m.syncState(), best.Height(), best.Timestamp(), false)
	}
	return entry, nil
}

// ProcessBlock validates block, stores it and moves the active chain to the
// most-work valid tip. An error is returned when the block is invalid, even
// if it was stored.
func (m *Manager) ProcessBlock(ctx context.Context, block *btcutil.Block) (res ProcessResult, err error) {
	started := time.Now()
	defer func() { m.metrics.ObserveProcessBlock(err, started) }()

	if m.halted.Load() {
		return ProcessResult{}, ErrHalted
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processBlock(ctx, block, nil)
}

// processBlock runs with mu held. A non-nil loc marks a block that is
// already in the block files.
func (m *Manager) processBlock(ctx context.Context, block *btcutil.Block, loc *storage.Location) (ProcessResult, error) {
	hash := *block.Hash()
	known := m.tree.Lookup(hash)
	res := ProcessResult{IsNewBlock: known == nil}
	if known != nil && known.Status().FullyValidated() {
		return res, fmt.Errorf("block %s: %w", hash, ErrDuplicate)
	}

	entry, err := m.acceptBlock(block, loc)
	if err != nil {
		m.validation.BlockChecked(block, validation.StateFromError(err))
		m.logRejected(block, err)
		if werr := m.writeIndex(); werr != nil {
			m.notify.FlushError(werr.Error())
		}
		return res, err
	}
	if res.IsNewBlock {
		m.validation.PoWValidBlock(block, entry)
	}

	failures, err := m.activateBestChain(ctx)
	if !m.halted.Load() {
		if ferr := m.flush(false); err == nil {
			err = ferr
		}
	}
	if cause, ok := failures[hash]; ok {
		return res, cause
	}
	if entry.Status().Failed() {
		return res, validation.New(validation.ResultInvalidPrev, "bad-prevblk")
	}
	res.Accepted = true
	return res, err
}

// acceptBlock inserts the header, runs the block checks and stores the
// block. Blocks whose data was stored before are returned as they are.
func (m *Manager) acceptBlock(block *btcutil.Block, stored *storage.Location) (*blocktree.Entry, error) {
	entry, err := m.acceptHeader(&block.MsgBlock().Header)
	if err != nil {
		return nil, err
	}
	if entry.Status().Has(blocktree.StatusHaveData) {
		return entry, nil
	}

	err = checkBlock(block)
	if err == nil {
		err = m.checkContextual(block, entry)
	}
	if err != nil {
		// A mutated block says nothing about the header.
		if validation.ResultOf(err) != validation.ResultMutated {
			m.markInvalid(entry, validation.ResultOf(err), entry)
		}
		return nil, err
	}

	var loc storage.Location
	if stored != nil {
		loc = *stored
	} else {
		raw, err := block.Bytes()
		if err != nil {
			return nil, fmt.Errorf("serialize block %s: %w", block.Hash(), err)
		}
		if loc, err = m.blocks.WriteBlock(raw); err != nil {
			return nil, fmt.Errorf("store block %s: %w", block.Hash(), err)
		}
	}
	txCount, err := safe.Uint32(len(block.Transactions()))
	if err != nil {
		return nil, fmt.Errorf("block %s tx count: %w", block.Hash(), err)
	}
	m.tree.SetData(entry, loc, txCount)
	return entry, nil
}

func (m *Manager) logRejected(block *btcutil.Block, err error) {
	m.logger.Info("block rejected",
		zap.Stringer("hash", block.Hash()),
		zap.Error(err),
	)
	if ce := m.logger.Check(zap.DebugLevel, "rejected block dump"); ce != nil {
		ce.Write(zap.String("header", spew.Sdump(block.MsgBlock().Header)))
	}
}

// markInvalid flags entry and updates the invalid chain warning with
// chainTip, the tip of the chain entry was part of.
func (m *Manager) markInvalid(entry *blocktree.Entry, result validation.Result, chainTip *blocktree.Entry) {
	if result == validation.ResultUnset {
		result = validation.ResultConsensus
	}
	n := m.tree.MarkInvalid(entry, result)
	m.logger.Warn("block marked invalid",
		zap.Stringer("hash", entry.Hash()),
		zap.Int32("height", entry.Height()),
		zap.Stringer("result", result),
		zap.Int("entries", n),
	)
	if m.worstInvalid == nil || chainTip.Work().Cmp(m.worstInvalid.Work()) > 0 {
		m.worstInvalid = chainTip
	}
	m.checkInvalidChainWarning()
}

// checkInvalidChainWarning warns while the invalid entry with the most work
// has more than six blocks of work over the active tip.
func (m *Manager) checkInvalidChainWarning() {
	tip := m.active.Load().Tip()
	if tip == nil || m.worstInvalid == nil {
		return
	}
	margin := blockchain.CalcWork(tip.Header().Bits)
	margin.Mul(margin, big.NewInt(6))
	margin.Add(margin, tip.Work())
	large := m.worstInvalid.Work().Cmp(margin) > 0
	switch {
	case large && !m.warnings[WarningLargeWorkInvalidChain]:
		m.warnings[WarningLargeWorkInvalidChain] = true
		msg := fmt.Sprintf("found invalid chain at height %d with more work than the active chain", m.worstInvalid.Height())
		m.logger.Warn(msg, zap.Stringer("hash", m.worstInvalid.Hash()))
		m.notify.WarningSet(WarningLargeWorkInvalidChain, msg)
	case !large && m.warnings[WarningLargeWorkInvalidChain]:
		m.warnings[WarningLargeWorkInvalidChain] = false
		m.notify.WarningUnset(WarningLargeWorkInvalidChain)
	}
}
