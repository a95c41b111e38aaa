package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/archive/clickhouse"
	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chainstate"
	"github.com/goodnatureofminers/btckernel/internal/logging"
	"github.com/goodnatureofminers/btckernel/internal/metrics"
	"github.com/goodnatureofminers/btckernel/internal/service/syncer"
	"github.com/goodnatureofminers/btckernel/internal/source/bitcoind"
	"github.com/goodnatureofminers/btckernel/internal/storage"
)

type config struct {
	Chain         string   `long:"chain" env:"BTCKERNEL_CHAIN" description:"mainnet, testnet, signet or regtest" default:"mainnet"`
	DataDir       string   `long:"datadir" env:"BTCKERNEL_DATADIR" description:"data directory" default:"./data"`
	BlocksDir     string   `long:"blocksdir" env:"BTCKERNEL_BLOCKSDIR" description:"block files directory, defaults to <datadir>/blocks"`
	DBBackend     string   `long:"db-backend" env:"BTCKERNEL_DB_BACKEND" description:"key value backend: leveldb or bbolt" default:"leveldb"`
	WorkerThreads int      `long:"worker-threads" env:"BTCKERNEL_WORKER_THREADS" description:"script check threads, 0 checks inline" default:"4"`
	CoinCacheSize int      `long:"coin-cache-size" env:"BTCKERNEL_COIN_CACHE_SIZE" description:"coins kept in memory before a flush"`
	SigCacheSize  uint     `long:"sig-cache-size" env:"BTCKERNEL_SIG_CACHE_SIZE" description:"signature cache entries"`
	Import        []string `long:"import" env:"BTCKERNEL_IMPORT" env-delim:"," description:"import blocks from blkNNNNN.dat files, repeatable"`
	Reindex       bool     `long:"reindex" env:"BTCKERNEL_REINDEX" description:"rebuild the block tree and chainstate from the block files"`
	ReindexState  bool     `long:"reindex-chainstate" env:"BTCKERNEL_REINDEX_CHAINSTATE" description:"rebuild the chainstate from the stored blocks"`

	HTTPAddr    string `long:"http-addr" env:"BTCKERNEL_HTTP_ADDR" description:"address of the HTTP read API, empty disables it" default:":8001"`
	MetricsAddr string `long:"metrics-addr" env:"BTCKERNEL_METRICS_ADDR" description:"address for metrics server" default:":2112"`

	RPCURL       string        `long:"rpc-url" env:"BTCKERNEL_RPC_URL" description:"bitcoind RPC URL to sync from, empty disables syncing"`
	RPCUser      string        `long:"rpc-user" env:"BTCKERNEL_RPC_USER" description:"bitcoind RPC username"`
	RPCPassword  string        `long:"rpc-password" env:"BTCKERNEL_RPC_PASSWORD" description:"bitcoind RPC password"`
	SyncBatch    int           `long:"sync-batch" env:"BTCKERNEL_SYNC_BATCH" description:"blocks fetched per batch" default:"100"`
	SyncWorkers  int           `long:"sync-workers" env:"BTCKERNEL_SYNC_WORKERS" description:"parallel block downloads" default:"8"`
	SyncInterval time.Duration `long:"sync-interval" env:"BTCKERNEL_SYNC_INTERVAL" description:"poll interval once caught up" default:"5s"`

	ClickhouseDSN      string        `long:"clickhouse-dsn" env:"BTCKERNEL_CLICKHOUSE_DSN" description:"ClickHouse DSN of the chain event archive, empty disables it"`
	ArchiveFlushSize   int           `long:"archive-flush-size" env:"BTCKERNEL_ARCHIVE_FLUSH_SIZE" description:"events per insert" default:"500"`
	ArchiveFlushPeriod time.Duration `long:"archive-flush-period" env:"BTCKERNEL_ARCHIVE_FLUSH_PERIOD" description:"maximum delay of an archived event" default:"2s"`
	ArchiveRPS         int           `long:"archive-rps" env:"BTCKERNEL_ARCHIVE_RPS" description:"maximum inserts per second" default:"10"`

	Log logging.Config `group:"logging" namespace:"log" env-namespace:"BTCKERNEL_LOG"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = closeLog()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("btckernel failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	chainType, err := chainstate.ParseChainType(cfg.Chain)
	if err != nil {
		return err
	}
	network := chainType.String()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	opts := chainstate.Options{
		Chain:          chainType,
		DataDir:        cfg.DataDir,
		BlocksDir:      cfg.BlocksDir,
		WorkerThreads:  cfg.WorkerThreads,
		WipeBlockTree:  cfg.Reindex,
		WipeChainstate: cfg.ReindexState,
		DBBackend:      storage.Backend(cfg.DBBackend),
		SigCacheSize:   cfg.SigCacheSize,
		CoinCacheSize:  cfg.CoinCacheSize,
		Logger:         logger,
		Notifications:  newNotifications(cancel, logger),
		Metrics:        metrics.NewChainstate(network),
		ScriptMetrics:  metrics.NewScriptChecks(network),
	}

	var archiver *clickhouse.Archiver
	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
		defer repo.Close()
		archiver = clickhouse.NewArchiver(repo, network, clickhouse.ArchiverConfig{
			FlushSize:     cfg.ArchiveFlushSize,
			FlushInterval: cfg.ArchiveFlushPeriod,
			RPS:           cfg.ArchiveRPS,
		}, logger)
		archiver.Start(ctx)
		// Stop flushes what the manager reported before it was closed.
		defer archiver.Stop()
		opts.Validation = archiver
	}

	manager, err := chainstate.New(opts)
	if err != nil {
		return fmt.Errorf("open chainstate: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Error("close chainstate", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		manager.Interrupt()
	}()

	if cfg.Reindex || len(cfg.Import) > 0 {
		if err := manager.ImportBlocks(ctx, cfg.Import); err != nil {
			if errors.Is(err, chainstate.ErrInterrupted) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("import blocks: %w", err)
		}
	}

	tip := manager.ActiveChain().Tip()
	logger.Info("chainstate loaded",
		zap.String("chain", network),
		zap.Int32("height", tip.Height()),
		zap.Stringer("hash", tip.Hash()),
	)

	if cfg.HTTPAddr != "" {
		startAPIServer(ctx, cfg.HTTPAddr, manager, logger)
	}

	if cfg.RPCURL == "" {
		<-ctx.Done()
		return nil
	}

	rpcClient, err := bitcoind.Dial(bitcoind.Config{URL: cfg.RPCURL, User: cfg.RPCUser, Password: cfg.RPCPassword})
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()
	rpc := bitcoind.NewObservedClient(rpcClient, metrics.NewRPCClient(network))
	svc, err := syncer.New(
		bitcoind.NewSource(rpc, logger),
		manager,
		metrics.NewSyncer(network),
		syncer.Config{
			BatchSize:    cfg.SyncBatch,
			Workers:      cfg.SyncWorkers,
			PollInterval: cfg.SyncInterval,
		},
		logger,
	)
	if err != nil {
		return err
	}
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newNotifications logs kernel events and cancels the process on a fatal
// error.
func newNotifications(cancel context.CancelFunc, logger *zap.Logger) chainstate.Notifications {
	logger = logger.Named(logging.CategoryKernel)
	var lastTip time.Time
	return chainstate.NotificationCallbacks{
		OnBlockTip: func(state chainstate.SyncState, entry *blocktree.Entry, progress float64) {
			// Log at most once a second during the initial download.
			if state != chainstate.SyncPostInit && time.Since(lastTip) < time.Second {
				return
			}
			lastTip = time.Now()
			logger.Info("new tip",
				zap.Stringer("state", state),
				zap.Int32("height", entry.Height()),
				zap.Stringer("hash", entry.Hash()),
				zap.Time("time", entry.Timestamp()),
				zap.Float64("progress", progress),
			)
		},
		OnProgress: func(title string, percent int, _ bool) {
			logger.Info(title, zap.Int("percent", percent))
		},
		OnWarningSet: func(w chainstate.Warning, message string) {
			logger.Warn(message, zap.Stringer("warning", w))
		},
		OnWarningUnset: func(w chainstate.Warning) {
			logger.Info("warning cleared", zap.Stringer("warning", w))
		},
		OnFlushError: func(message string) {
			logger.Error("flush failed", zap.String("message", message))
		},
		OnFatalError: func(message string) {
			logger.Error("fatal chainstate error, shutting down", zap.String("message", message))
			cancel()
		},
	}
}

var (
	_ chainstate.ValidationInterface = (*clickhouse.Archiver)(nil)
	_ syncer.Chainstate              = (*chainstate.Manager)(nil)
)
