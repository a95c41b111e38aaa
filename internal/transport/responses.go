package transport

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
)

// BlockHeader describes a block tree entry.
type BlockHeader struct {
	Hash       string `json:"hash"`
	PrevHash   string `json:"prev_hash,omitempty"`
	Height     int32  `json:"height"`
	Version    int32  `json:"version"`
	MerkleRoot string `json:"merkle_root"`
	Time       int64  `json:"time"`
	Bits       uint32 `json:"bits"`
	Nonce      uint32 `json:"nonce"`
	ChainWork  string `json:"chain_work"`
	Status     string `json:"status"`
	TxCount    uint32 `json:"tx_count"`
	InActive   bool   `json:"in_active_chain"`
}

// Block is a header plus the transaction ids of a stored block.
type Block struct {
	BlockHeader
	Size int      `json:"size"`
	Txs  []string `json:"txs"`
}

// Coin is an unspent output.
type Coin struct {
	TxID       string   `json:"txid"`
	Vout       uint32   `json:"vout"`
	Amount     int64    `json:"amount"`
	PkScript   string   `json:"pk_script"`
	ScriptType string   `json:"script_type"`
	Addresses  []string `json:"addresses,omitempty"`
	Height     int32    `json:"height"`
	IsCoinbase bool     `json:"is_coinbase"`
}

// Tip is the active chain tip.
type Tip struct {
	Height int32  `json:"height"`
	Hash   string `json:"hash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newBlockHeader(entry *blocktree.Entry, active *chain.Chain) BlockHeader {
	h := entry.Header()
	out := BlockHeader{
		Hash:       entry.Hash().String(),
		Height:     entry.Height(),
		Version:    h.Version,
		MerkleRoot: h.MerkleRoot.String(),
		Time:       h.Timestamp.Unix(),
		Bits:       h.Bits,
		Nonce:      h.Nonce,
		ChainWork:  entry.Work().Text(16),
		Status:     entry.Status().String(),
		TxCount:    entry.TxCount(),
		InActive:   active.Contains(entry),
	}
	if prev := entry.Previous(); prev != nil {
		out.PrevHash = prev.Hash().String()
	}
	return out
}

func newBlock(entry *blocktree.Entry, active *chain.Chain, block *btcutil.Block) Block {
	out := Block{
		BlockHeader: newBlockHeader(entry, active),
		Size:        block.MsgBlock().SerializeSize(),
		Txs:         make([]string, 0, len(block.Transactions())),
	}
	for _, tx := range block.Transactions() {
		out.Txs = append(out.Txs, tx.Hash().String())
	}
	return out
}

func newCoin(txid chainhash.Hash, vout uint32, coin utxo.Coin, decoder scriptDecoder) Coin {
	class, addresses := decoder.decode(coin.PkScript)
	return Coin{
		TxID:       txid.String(),
		Vout:       vout,
		Amount:     coin.Amount,
		PkScript:   hex.EncodeToString(coin.PkScript),
		ScriptType: class,
		Addresses:  addresses,
		Height:     coin.Height,
		IsCoinbase: coin.IsCoinbase,
	}
}

func outPoint(txid chainhash.Hash, vout uint32) wire.OutPoint {
	return wire.OutPoint{Hash: txid, Index: vout}
}
