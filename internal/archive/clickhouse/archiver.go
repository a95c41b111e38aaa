package clickhouse

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/validation"
	"github.com/goodnatureofminers/btckernel/pkg/batcher"
)

const (
	defaultFlushSize     = 1000
	defaultFlushInterval = time.Second
	defaultRPS           = 10
)

// ArchiverConfig tunes batching. Zero values take defaults.
type ArchiverConfig struct {
	FlushSize     int
	FlushInterval time.Duration
	RPS           int
}

// Archiver receives validation callbacks from the chainstate manager and
// writes every connect and disconnect to the journal in batches.
type Archiver struct {
	network string
	batcher *batcher.Batcher[Event]
	logger  *zap.Logger
	now     func() time.Time
	ctx     context.Context
}

func NewArchiver(writer EventWriter, network string, cfg ArchiverConfig, logger *zap.Logger) *Archiver {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = defaultFlushSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	logger = logger.Named("archive").With(zap.String("network", network))
	return &Archiver{
		network: network,
		batcher: batcher.New(logger, writer.InsertEvents, cfg.FlushSize, cfg.FlushInterval, cfg.RPS),
		logger:  logger,
		now:     time.Now,
		ctx:     context.Background(),
	}
}

// Start begins flushing. Events queued before Start wait for it.
func (a *Archiver) Start(ctx context.Context) {
	a.ctx = ctx
	a.batcher.Start(ctx)
}

// Stop flushes queued events and stops the background loop.
func (a *Archiver) Stop() {
	a.batcher.Stop()
}

func (a *Archiver) BlockChecked(*btcutil.Block, validation.State) {}

func (a *Archiver) PoWValidBlock(*btcutil.Block, *blocktree.Entry) {}

func (a *Archiver) BlockConnected(block *btcutil.Block, entry *blocktree.Entry) {
	a.add(newEvent(a.network, EventConnected, block, entry, a.now()))
}

func (a *Archiver) BlockDisconnected(block *btcutil.Block, entry *blocktree.Entry) {
	a.add(newEvent(a.network, EventDisconnected, block, entry, a.now()))
}

func (a *Archiver) add(e Event) {
	if err := a.batcher.Add(a.ctx, e); err != nil {
		a.logger.Warn("event dropped",
			zap.String("event", string(e.Kind)),
			zap.Uint32("height", e.Height),
			zap.String("hash", e.Hash),
			zap.Error(err),
		)
	}
}
