// Package syncer follows a remote node and feeds its blocks into the
// chainstate manager.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/chainstate"
	"github.com/goodnatureofminers/btckernel/internal/clock"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// Config tunes the follow loop. Zero values take defaults.
type Config struct {
	BatchSize    int
	Workers      int
	PollInterval time.Duration
	MaxBackoff   time.Duration
}

// Service downloads blocks above the local tip in batches and submits them
// in height order.
type Service struct {
	source     BlockSource
	chainstate Chainstate
	metrics    Metrics
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error

	batchSize    int32
	workers      int
	pollInterval time.Duration
	backoff      clock.Backoff

	// rewind is how many blocks below the lower of the local and remote
	// tips the next round starts, grown while the remote chain forks off
	// below that height.
	rewind int32
}

func New(source BlockSource, cs Chainstate, metrics Metrics, cfg Config, logger *zap.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("block source is required")
	}
	if cs == nil {
		return nil, errors.New("chainstate is required")
	}
	if metrics == nil {
		return nil, errors.New("syncer metrics is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Service{
		source:       source,
		chainstate:   cs,
		metrics:      metrics,
		logger:       logger.Named("syncer"),
		sleep:        clock.SleepWithContext,
		batchSize:    int32(min(cfg.BatchSize, 1<<16)),
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
		backoff:      clock.Backoff{Initial: initialBackoff, MaxDelay: cfg.MaxBackoff},
	}, nil
}

// Run follows the source until ctx is done or the manager halts.
func (s *Service) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		idle, err := s.run(ctx)
		switch {
		case err != nil:
			if errors.Is(err, chainstate.ErrHalted) || chainstate.IsFatal(err) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d := s.backoff.Next()
			s.logger.Warn("sync round failed, backing off", zap.Error(err), zap.Duration("sleep", d))
			if sleepErr := s.sleep(ctx, d); sleepErr != nil {
				return sleepErr
			}
		case idle:
			s.backoff.Reset()
			if sleepErr := s.sleep(ctx, s.pollInterval); sleepErr != nil {
				return sleepErr
			}
		default:
			s.backoff.Reset()
		}
	}
}

// run does one round and reports whether the local chain has caught up.
func (s *Service) run(ctx context.Context) (bool, error) {
	started := time.Now()
	remote, err := s.source.TipHeight(ctx)
	s.metrics.ObserveFetchTip(int64(remote), err, started)
	if err != nil {
		return false, fmt.Errorf("fetch remote tip: %w", err)
	}

	active := s.chainstate.ActiveChain()
	local := active.Height()
	// A remote chain at or below the local height can still carry more
	// work, so the fork search runs from the lower of the two tips.
	from := max(min(local, remote)+1-s.rewind, 1)
	to := min(remote, from+s.batchSize-1)
	if to < from {
		return s.checkTip(ctx, active, remote)
	}

	s.logger.Info("syncing batch",
		zap.Int32("from", from),
		zap.Int32("to", to),
		zap.Int32("remote_height", remote),
	)
	started = time.Now()
	n, err := s.syncRange(ctx, from, to)
	s.metrics.ObserveProcessBatch(err, n, started)
	return false, err
}

func (s *Service) syncRange(ctx context.Context, from, to int32) (int, error) {
	blocks, err := s.fetch(ctx, from, to)
	if err != nil {
		return 0, err
	}

	for i, block := range blocks {
		height := from + int32(i)
		started := time.Now()
		_, err := s.chainstate.ProcessBlock(ctx, block)
		s.metrics.ObserveProcessBlock(err, int64(height), started)
		switch {
		case err == nil, errors.Is(err, chainstate.ErrDuplicate):
		case validation.ResultOf(err) == validation.ResultMissingPrev:
			s.growRewind(height, block)
			return i, nil
		default:
			return i, fmt.Errorf("process block %s at height %d: %w", block.Hash(), height, err)
		}
	}
	s.rewind = 0
	return len(blocks), nil
}

// checkTip runs when the remote tip is not above the local one. It reports
// idle when the remote tip is on the active chain or already known to the
// manager, and submits it otherwise so a remote branch with more work is
// followed.
func (s *Service) checkTip(ctx context.Context, active *chain.Chain, remote int32) (bool, error) {
	if remote < 1 {
		s.logger.Debug("in sync", zap.Int32("height", active.Height()), zap.Int32("remote_height", remote))
		return true, nil
	}
	block, err := s.source.FetchBlock(ctx, remote)
	if err != nil {
		return false, fmt.Errorf("fetch remote tip block %d: %w", remote, err)
	}
	if entry := active.ByHeight(remote); entry != nil && entry.Hash() == *block.Hash() {
		s.logger.Debug("in sync", zap.Int32("height", active.Height()), zap.Int32("remote_height", remote))
		return true, nil
	}

	started := time.Now()
	res, err := s.chainstate.ProcessBlock(ctx, block)
	s.metrics.ObserveProcessBlock(err, int64(remote), started)
	switch {
	case errors.Is(err, chainstate.ErrDuplicate), err == nil && !res.IsNewBlock:
		s.logger.Debug("remote tip already known, keeping local chain",
			zap.Int32("height", active.Height()),
			zap.Int32("remote_height", remote),
			zap.Stringer("remote_tip", block.Hash()),
		)
		return true, nil
	case err == nil:
		s.logger.Info("accepted remote tip below the local height",
			zap.Int32("remote_height", remote),
			zap.Stringer("hash", block.Hash()),
		)
		return false, nil
	case validation.ResultOf(err) == validation.ResultMissingPrev:
		s.growRewind(remote, block)
		return false, nil
	default:
		return false, fmt.Errorf("process remote tip %s at height %d: %w", block.Hash(), remote, err)
	}
}

func (s *Service) growRewind(height int32, block *btcutil.Block) {
	s.rewind = min(max(2*s.rewind, 1), maxRewind)
	s.logger.Info("remote chain forked below the local tip, rewinding",
		zap.Int32("height", height),
		zap.Stringer("hash", block.Hash()),
		zap.Int32("rewind", s.rewind),
	)
}

// fetch downloads [from, to] concurrently and returns the blocks in height
// order.
func (s *Service) fetch(ctx context.Context, from, to int32) ([]*btcutil.Block, error) {
	blocks := make([]*btcutil.Block, to-from+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range blocks {
		height := from + int32(i)
		g.Go(func() error {
			block, err := s.source.FetchBlock(gctx, height)
			if err != nil {
				return err
			}
			blocks[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch blocks %d..%d: %w", from, to, err)
	}
	return blocks, nil
}
