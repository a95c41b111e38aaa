// Package chaingen builds small, fully valid regtest chains for tests. Every
// output pays to OP_TRUE so spends need no signatures.
package chaingen

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// BlockInterval is the default spacing between generated timestamps.
const BlockInterval = 10 * time.Minute

// OpTrueScript is the anyone-can-spend script used for every output.
var OpTrueScript = []byte{txscript.OP_TRUE}

// RegtestParams returns a copy of the regtest parameters with the given
// coinbase maturity.
func RegtestParams(maturity uint16) *chaincfg.Params {
	params := chaincfg.RegressionNetParams
	params.CoinbaseMaturity = maturity
	return &params
}

// Generator remembers the blocks it produced so children can be derived.
type Generator struct {
	t       testing.TB
	params  *chaincfg.Params
	heights map[chainhash.Hash]int32
	values  map[wire.OutPoint]int64
	nonce   uint32
}

// New returns a generator for params.
func New(t testing.TB, params *chaincfg.Params) *Generator {
	g := &Generator{
		t:       t,
		params:  params,
		heights: make(map[chainhash.Hash]int32),
		values:  make(map[wire.OutPoint]int64),
	}
	g.heights[*params.GenesisHash] = 0
	return g
}

// Params returns the network parameters.
func (g *Generator) Params() *chaincfg.Params {
	return g.params
}

// Genesis returns the network genesis block.
func (g *Generator) Genesis() *btcutil.Block {
	return btcutil.NewBlock(g.params.GenesisBlock)
}

// Height returns the height of a block produced by this generator.
func (g *Generator) Height(b *btcutil.Block) int32 {
	h, ok := g.heights[*b.Hash()]
	if !ok {
		g.t.Fatalf("chaingen: unknown block %s", b.Hash())
	}
	return h
}

type blockConfig struct {
	txs       []*wire.MsgTx
	timestamp time.Time
	bits      *uint32
	bonus     int64
	mutate    func(*wire.MsgBlock)
	unsolved  bool
	version   int32
}

// Option adjusts a generated block.
type Option func(*blockConfig)

// WithTxs appends transactions after the coinbase.
func WithTxs(txs ...*wire.MsgTx) Option {
	return func(c *blockConfig) { c.txs = append(c.txs, txs...) }
}

// WithTimestamp overrides the header timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(c *blockConfig) { c.timestamp = ts }
}

// WithBits overrides the difficulty bits.
func WithBits(bits uint32) Option {
	return func(c *blockConfig) { c.bits = &bits }
}

// WithVersion overrides the header version.
func WithVersion(v int32) Option {
	return func(c *blockConfig) { c.version = v }
}

// WithCoinbaseBonus adds delta satoshi to the coinbase output on top of
// subsidy and fees.
func WithCoinbaseBonus(delta int64) Option {
	return func(c *blockConfig) { c.bonus = delta }
}

// WithMutation edits the block after the merkle root is set and before the
// header is solved.
func WithMutation(fn func(*wire.MsgBlock)) Option {
	return func(c *blockConfig) { c.mutate = fn }
}

// Unsolved produces a header whose hash misses the target.
func Unsolved() Option {
	return func(c *blockConfig) { c.unsolved = true }
}

// NextBlock builds a child of parent.
func (g *Generator) NextBlock(parent *btcutil.Block, opts ...Option) *btcutil.Block {
	g.t.Helper()

	parentHeight := g.Height(parent)
	height := parentHeight + 1
	cfg := blockConfig{
		timestamp: parent.MsgBlock().Header.Timestamp.Add(BlockInterval),
		version:   4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	bits := parent.MsgBlock().Header.Bits
	if cfg.bits != nil {
		bits = *cfg.bits
	}

	var fees int64
	for _, tx := range cfg.txs {
		var in, out int64
		for _, txIn := range tx.TxIn {
			in += g.values[txIn.PreviousOutPoint]
		}
		for _, txOut := range tx.TxOut {
			out += txOut.Value
		}
		if in > out {
			fees += in - out
		}
	}

	g.nonce++
	coinbase := g.coinbase(height, blockchain.CalcBlockSubsidy(height, g.params)+fees+cfg.bonus)

	msg := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   cfg.version,
			PrevBlock: *parent.Hash(),
			Timestamp: cfg.timestamp,
			Bits:      bits,
		},
	}
	msg.Transactions = append([]*wire.MsgTx{coinbase}, cfg.txs...)

	utilTxs := make([]*btcutil.Tx, len(msg.Transactions))
	for i, tx := range msg.Transactions {
		utilTxs[i] = btcutil.NewTx(tx)
	}
	merkles := blockchain.BuildMerkleTreeStore(utilTxs, false)
	msg.Header.MerkleRoot = *merkles[len(merkles)-1]

	if cfg.mutate != nil {
		cfg.mutate(msg)
	}
	g.solve(&msg.Header, cfg.unsolved)

	block := btcutil.NewBlock(msg)
	g.heights[*block.Hash()] = height
	for _, tx := range msg.Transactions {
		hash := tx.TxHash()
		for i, out := range tx.TxOut {
			g.values[wire.OutPoint{Hash: hash, Index: uint32(i)}] = out.Value
		}
	}
	return block
}

// Chain builds n blocks on top of parent. Options apply to every block.
func (g *Generator) Chain(parent *btcutil.Block, n int, opts ...Option) []*btcutil.Block {
	g.t.Helper()
	out := make([]*btcutil.Block, 0, n)
	for i := 0; i < n; i++ {
		parent = g.NextBlock(parent, opts...)
		out = append(out, parent)
	}
	return out
}

// Spend returns a transaction spending output vout of from to a single
// OP_TRUE output worth the input minus fee.
func (g *Generator) Spend(from *wire.MsgTx, vout uint32, fee int64) *wire.MsgTx {
	g.t.Helper()
	op := wire.OutPoint{Hash: from.TxHash(), Index: vout}
	value, ok := g.values[op]
	if !ok {
		g.t.Fatalf("chaingen: unknown output %s", op)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value-fee, OpTrueScript))
	return tx
}

// Split spends output vout of from into n equal OP_TRUE outputs.
func (g *Generator) Split(from *wire.MsgTx, vout uint32, n int) *wire.MsgTx {
	g.t.Helper()
	op := wire.OutPoint{Hash: from.TxHash(), Index: vout}
	value := g.values[op]
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	for i := 0; i < n; i++ {
		tx.AddTxOut(wire.NewTxOut(value/int64(n), OpTrueScript))
	}
	return tx
}

func (g *Generator) coinbase(height int32, value int64) *wire.MsgTx {
	sig, err := txscript.NewScriptBuilder().
		AddInt64(int64(height)).
		AddInt64(int64(g.nonce)).
		AddData([]byte("chaingen")).
		Script()
	if err != nil {
		g.t.Fatalf("chaingen: coinbase script: %v", err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  sig,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, OpTrueScript))
	return tx
}

func (g *Generator) solve(header *wire.BlockHeader, unsolved bool) {
	target := blockchain.CompactToBig(header.Bits)
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		meets := blockchain.HashToBig(&hash).Cmp(target) <= 0
		if meets != unsolved {
			return
		}
		if nonce == ^uint32(0) {
			g.t.Fatalf("chaingen: nonce space exhausted")
		}
	}
}

// Bytes serializes block.
func Bytes(t testing.TB, block *btcutil.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := block.MsgBlock().Serialize(&buf); err != nil {
		t.Fatalf("chaingen: serialize block: %v", err)
	}
	return buf.Bytes()
}
