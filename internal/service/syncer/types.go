package syncer

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/chainstate"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	BlockSource interface {
		TipHeight(ctx context.Context) (int32, error)
		FetchBlock(ctx context.Context, height int32) (*btcutil.Block, error)
	}
	Chainstate interface {
		ActiveChain() *chain.Chain
		ProcessBlock(ctx context.Context, block *btcutil.Block) (chainstate.ProcessResult, error)
	}
	Metrics interface {
		ObserveFetchTip(height int64, err error, started time.Time)
		ObserveProcessBatch(err error, blocks int, started time.Time)
		ObserveProcessBlock(err error, height int64, started time.Time)
	}
)
