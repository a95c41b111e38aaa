// Package transport exposes the chain state over HTTP.
package transport

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// ChainReader is the read side of the chainstate manager.
	ChainReader interface {
		Params() *chaincfg.Params
		ActiveChain() *chain.Chain
		LookupEntry(hash chainhash.Hash) *blocktree.Entry
		ReadBlock(entry *blocktree.Entry) (*btcutil.Block, error)
		GetCoin(op wire.OutPoint) (utxo.Coin, bool, error)
	}
)
