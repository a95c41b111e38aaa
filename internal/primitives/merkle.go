package primitives

import (
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MerkleRoot computes the merkle root over leaves. mutated is set when some
// level pairs two identical hashes: such a tree has the same root as the one
// with the duplicate dropped, so a block built that way must not be trusted.
func MerkleRoot(leaves []chainhash.Hash) (root chainhash.Hash, mutated bool) {
	if len(leaves) == 0 {
		return chainhash.Hash{}, false
	}

	level := slices.Clone(leaves)
	var buf [chainhash.HashSize * 2]byte
	for len(level) > 1 {
		for i := 0; i+1 < len(level); i += 2 {
			if level[i] == level[i+1] {
				mutated = true
			}
		}
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		for i := 0; i < len(level); i += 2 {
			copy(buf[:chainhash.HashSize], level[i][:])
			copy(buf[chainhash.HashSize:], level[i+1][:])
			level[i/2] = chainhash.DoubleHashH(buf[:])
		}
		level = level[:len(level)/2]
	}
	return level[0], mutated
}

// BlockMerkleRoot computes the txid merkle root of block.
func BlockMerkleRoot(block *btcutil.Block) (chainhash.Hash, bool) {
	txs := block.Transactions()
	leaves := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = *tx.Hash()
	}
	return MerkleRoot(leaves)
}
