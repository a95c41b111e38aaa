package chainstate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/script"
	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
)

// ChainType names a supported network.
type ChainType uint8

const (
	ChainMainnet ChainType = iota
	ChainTestnet
	ChainTestnet4
	ChainSignet
	ChainRegtest
)

var chainNames = map[ChainType]string{
	ChainMainnet:  "mainnet",
	ChainTestnet:  "testnet",
	ChainTestnet4: "testnet4",
	ChainSignet:   "signet",
	ChainRegtest:  "regtest",
}

func (c ChainType) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return fmt.Sprintf("chain(%d)", uint8(c))
}

// ParseChainType accepts the network names printed by String, plus "main"
// and "test".
func ParseChainType(s string) (ChainType, error) {
	switch strings.ToLower(s) {
	case "main":
		return ChainMainnet, nil
	case "test", "testnet3":
		return ChainTestnet, nil
	}
	for c, name := range chainNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown chain %q", s)
}

// Params returns the consensus parameters of c.
func (c ChainType) Params() (*chaincfg.Params, error) {
	switch c {
	case ChainMainnet:
		return &chaincfg.MainNetParams, nil
	case ChainTestnet:
		return &chaincfg.TestNet3Params, nil
	case ChainSignet:
		return &chaincfg.SigNetParams, nil
	case ChainRegtest:
		return &chaincfg.RegressionNetParams, nil
	case ChainTestnet4:
		return nil, fmt.Errorf("%s: %w", c, ErrUnsupportedChain)
	default:
		return nil, fmt.Errorf("%s: %w", c, ErrUnsupportedChain)
	}
}

// MaxWorkerThreads bounds Options.WorkerThreads.
const MaxWorkerThreads = script.MaxWorkers

// Options configures a Manager. Params wins over Chain when both are set.
//
// With an empty DataDir both databases must be in memory, and blocks are
// kept in memory as well.
type Options struct {
	Chain  ChainType
	Params *chaincfg.Params

	DataDir   string
	BlocksDir string

	// WorkerThreads is the size of the script check pool; 0 checks inline.
	WorkerThreads int

	BlockTreeInMemory  bool
	ChainstateInMemory bool
	// WipeBlockTree implies WipeChainstate and schedules a reindex on the
	// next ImportBlocks.
	WipeBlockTree  bool
	WipeChainstate bool
	DBBackend      storage.Backend

	SigCacheSize     uint
	CoinCacheSize    int
	MaxBlockFileSize int64

	Clock         clock.Clock
	Logger        *zap.Logger
	Notifications Notifications
	Validation    ValidationInterface
	Metrics       Metrics
	ScriptMetrics script.Metrics
}

// Validate checks the options and fills in defaults.
func (o *Options) Validate() error {
	if o.Params == nil {
		params, err := o.Chain.Params()
		if err != nil {
			return err
		}
		o.Params = params
	}
	if o.WorkerThreads < 0 || o.WorkerThreads > MaxWorkerThreads {
		return fmt.Errorf("worker threads %d out of range [0, %d]", o.WorkerThreads, MaxWorkerThreads)
	}
	if o.DBBackend == "" {
		o.DBBackend = storage.BackendLevelDB
	}
	if !o.DBBackend.Valid() {
		return fmt.Errorf("unknown db backend %q", o.DBBackend)
	}
	if o.DataDir == "" && !(o.BlockTreeInMemory && o.ChainstateInMemory) {
		return errors.New("data dir is required unless block tree and chainstate are in memory")
	}
	if o.DataDir != "" && o.BlocksDir == "" {
		o.BlocksDir = filepath.Join(o.DataDir, "blocks")
	}
	if o.WipeBlockTree {
		o.WipeChainstate = true
	}
	if o.CoinCacheSize <= 0 {
		o.CoinCacheSize = utxo.DefaultMaxCachedCoins
	}
	if o.MaxBlockFileSize <= 0 {
		o.MaxBlockFileSize = storage.DefaultMaxFileSize
	}
	if o.Clock == nil {
		o.Clock = clock.NewDefaultClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Notifications == nil {
		o.Notifications = NotificationCallbacks{}
	}
	if o.Validation == nil {
		o.Validation = ValidationCallbacks{}
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return nil
}
