package utxo

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/script"
)

//go:generate mockgen -source=types.go -destination=mocks_test.go -package=utxo

// Backend is the durable store under a Set. FetchCoin returns nil for
// outpoints it does not hold. WriteCoins applies every change and the new
// best block atomically; a nil coin deletes.
type Backend interface {
	FetchCoin(op wire.OutPoint) (*Coin, error)
	WriteCoins(changes map[wire.OutPoint]*Coin, bestBlock chainhash.Hash) error
	BestBlock() (chainhash.Hash, error)
}

// ScriptChecker verifies resolved inputs.
type ScriptChecker interface {
	VerifyAll(ctx context.Context, jobs []script.Job, flags script.Flags) error
}
