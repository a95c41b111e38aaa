// Package bitcoind fetches blocks from a bitcoind node over JSON-RPC.
package bitcoind

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/pkg/safe"
)

// Source serves blocks of the node's active chain by height.
type Source struct {
	rpc    RPCClient
	logger *zap.Logger
}

// NewSource creates a Source over rpc.
func NewSource(rpc RPCClient, logger *zap.Logger) *Source {
	return &Source{rpc: rpc, logger: logger}
}

// TipHeight returns the height of the node's best block.
func (s *Source) TipHeight(ctx context.Context) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := s.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}
	height, err := safe.Int32(count)
	if err != nil {
		return 0, fmt.Errorf("block count overflow: %w", err)
	}
	if height < 0 {
		return 0, fmt.Errorf("negative block count %d", height)
	}
	return height, nil
}

// FetchBlock returns the block the node has at height.
func (s *Source) FetchBlock(ctx context.Context, height int32) (*btcutil.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if height < 0 {
		return nil, fmt.Errorf("negative block height %d", height)
	}

	hash, err := s.rpc.GetBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("get block hash at height %d: %w", height, err)
	}
	msg, err := s.rpc.GetBlock(hash)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}
	block := btcutil.NewBlock(msg)
	if *block.Hash() != *hash {
		return nil, fmt.Errorf("node returned block %s for hash %s", block.Hash(), hash)
	}
	block.SetHeight(height)

	s.logger.Debug("fetched block",
		zap.Int32("height", height),
		zap.Stringer("hash", hash),
		zap.Int("txs", len(msg.Transactions)),
	)
	return block, nil
}
