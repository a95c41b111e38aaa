package chainstate

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/primitives"
	"github.com/goodnatureofminers/btckernel/internal/script"
	"github.com/goodnatureofminers/btckernel/internal/utxo"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// deployments are the buried activation heights btcd does not carry in
// chaincfg.Params.
type deployments struct {
	csv    int32
	segwit int32
}

var buried = map[wire.BitcoinNet]deployments{
	wire.MainNet:  {csv: 419328, segwit: 481824},
	wire.TestNet3: {csv: 770112, segwit: 834624},
	wire.SigNet:   {csv: 1, segwit: 1},
	wire.TestNet:  {csv: 1, segwit: 0},
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

var (
	// Mainnet blocks connected under relaxed script rules.
	scriptFlagExceptions = map[chainhash.Hash]script.Flags{
		mustHash("00000000000002dc756eebf4f49723ed8d30cc28a5f108eb94b1ba88ac4f9c22"): script.FlagNone,
		mustHash("0000000000000000000f14c35b2d841e986ab5441de8c585d5ffe55ea1e395ad"): script.FlagP2SH | script.FlagWitness,
	}

	// Mainnet blocks whose coinbases duplicate earlier ones.
	bip30Exceptions = map[int32]chainhash.Hash{
		91842: mustHash("00000000000a4d0a398161ffc163c503763b1f4360639393e0e4c8e300e0caec"),
		91880: mustHash("00000000000743f190a18c5577a3c2d2a1f610ae9601ac046a38084ccb7cd721"),
	}
)

func (m *Manager) deployments() deployments {
	return buried[m.params.Net]
}

// scriptFlags returns the script rules that apply to the block hash at
// height.
func (m *Manager) scriptFlags(hash chainhash.Hash, height int32) script.Flags {
	flags := script.FlagP2SH | script.FlagWitness | script.FlagTaproot
	if m.params.Net == wire.MainNet {
		if f, ok := scriptFlagExceptions[hash]; ok {
			flags = f
		}
	}
	d := m.deployments()
	if height >= m.params.BIP0066Height {
		flags |= script.FlagDERSig
	}
	if height >= m.params.BIP0065Height {
		flags |= script.FlagCheckLockTimeVerify
	}
	if height >= d.csv {
		flags |= script.FlagCheckSequenceVerify
	}
	if height >= d.segwit {
		flags |= script.FlagNullDummy
	}
	return flags
}

// enforceBIP30 reports whether outputs of the block may not replace unspent
// coins. BIP34 makes coinbases unique, so the check stops there.
func (m *Manager) enforceBIP30(hash chainhash.Hash, height int32) bool {
	if m.params.Net == wire.MainNet {
		if h, ok := bip30Exceptions[height]; ok && h == hash {
			return false
		}
	}
	return height < m.params.BIP0034Height
}

func (m *Manager) rules(entry *blocktree.Entry) utxo.Rules {
	return utxo.Rules{
		Subsidy:          blockchain.CalcBlockSubsidy(entry.Height(), m.params),
		CoinbaseMaturity: int32(m.params.CoinbaseMaturity),
		EnforceBIP30:     m.enforceBIP30(entry.Hash(), entry.Height()),
		ScriptFlags:      m.scriptFlags(entry.Hash(), entry.Height()),
	}
}

func consensus(reason string, cause error) error {
	return validation.Wrap(validation.ResultConsensus, reason, cause)
}

func mutated(reason string) error {
	return validation.New(validation.ResultMutated, reason)
}

// checkBlock runs the checks that need nothing but the block itself.
func checkBlock(block *btcutil.Block) error {
	msg := block.MsgBlock()
	txs := block.Transactions()
	if len(txs) == 0 {
		return validation.New(validation.ResultConsensus, "bad-blk-length")
	}

	root, isMutated := primitives.BlockMerkleRoot(block)
	if root != msg.Header.MerkleRoot {
		return mutated("bad-txnmrklroot")
	}
	if isMutated {
		return mutated("bad-txns-duplicate")
	}

	if len(txs)*blockchain.WitnessScaleFactor > blockchain.MaxBlockWeight ||
		msg.SerializeSizeStripped()*blockchain.WitnessScaleFactor > blockchain.MaxBlockWeight {
		return validation.New(validation.ResultConsensus, "bad-blk-length")
	}

	if !blockchain.IsCoinBase(txs[0]) {
		return validation.New(validation.ResultConsensus, "bad-cb-missing")
	}
	seen := make(map[chainhash.Hash]struct{}, len(txs))
	var sigOps int
	for i, tx := range txs {
		if i > 0 && blockchain.IsCoinBase(tx) {
			return validation.New(validation.ResultConsensus, "bad-cb-multiple")
		}
		if err := blockchain.CheckTransactionSanity(tx); err != nil {
			return consensus("bad-txns-sanity", err)
		}
		if _, ok := seen[*tx.Hash()]; ok {
			return mutated("bad-txns-duplicate")
		}
		seen[*tx.Hash()] = struct{}{}
		sigOps += blockchain.CountSigOps(tx) * blockchain.WitnessScaleFactor
	}
	if sigOps > blockchain.MaxBlockSigOpsCost {
		return validation.New(validation.ResultConsensus, "bad-blk-sigops")
	}
	return nil
}

// checkContextual runs the block checks that depend on the position of the
// block in the tree.
func (m *Manager) checkContextual(block *btcutil.Block, entry *blocktree.Entry) error {
	height := entry.Height()
	d := m.deployments()

	lockTime := entry.Timestamp()
	if prev := entry.Previous(); prev != nil && height >= d.csv {
		lockTime = prev.MedianTimePast()
	}
	for _, tx := range block.Transactions() {
		if !blockchain.IsFinalizedTransaction(tx, height, lockTime) {
			return validation.New(validation.ResultConsensus, "bad-txns-nonfinal")
		}
	}

	if height >= m.params.BIP0034Height {
		got, err := blockchain.ExtractCoinbaseHeight(block.Transactions()[0])
		if err != nil || got != height {
			return consensus("bad-cb-height", err)
		}
	}

	if height >= d.segwit {
		if err := blockchain.ValidateWitnessCommitment(block); err != nil {
			return validation.Wrap(validation.ResultMutated, "bad-witness-commitment", err)
		}
	} else {
		for _, tx := range block.Transactions() {
			if tx.HasWitness() {
				return mutated("unexpected-witness")
			}
		}
	}

	if weight := blockchain.GetBlockWeight(block); weight > blockchain.MaxBlockWeight {
		return consensus("bad-blk-weight", fmt.Errorf("weight %d", weight))
	}
	return nil
}

// isInitialDownload reports whether the tip is more than a day old.
func isInitialDownload(tip *blocktree.Entry, now time.Time) bool {
	return tip == nil || tip.Timestamp().Before(now.Add(-24*time.Hour))
}

