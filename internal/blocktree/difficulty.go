package blocktree

import (
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
)

// NextRequiredBits returns the compact target a child of parent with the
// given timestamp must carry.
func (t *Tree) NextRequiredBits(parent *Entry, timestamp time.Time) (uint32, error) {
	return t.nextRequiredBits(parent, timestamp)
}

func (t *Tree) nextRequiredBits(parent *Entry, timestamp time.Time) (uint32, error) {
	p := t.params
	if parent == nil {
		return p.PowLimitBits, nil
	}
	if p.PoWNoRetargeting {
		return parent.header.Bits, nil
	}

	targetTimespan := int64(p.TargetTimespan / time.Second)
	blocksPerRetarget := int32(p.TargetTimespan / p.TargetTimePerBlock)
	if blocksPerRetarget <= 0 {
		return 0, fmt.Errorf("bad retarget interval for %s", p.Name)
	}

	if (parent.height+1)%blocksPerRetarget != 0 {
		if !p.ReduceMinDifficulty {
			return parent.header.Bits, nil
		}
		// A block more than the reduction time after its parent may use
		// the minimum difficulty. Otherwise it inherits the last real one.
		allowMin := parent.header.Timestamp.Add(p.MinDiffReductionTime)
		if timestamp.After(allowMin) {
			return p.PowLimitBits, nil
		}
		n := parent
		for n.prev != nil && n.height%blocksPerRetarget != 0 && n.header.Bits == p.PowLimitBits {
			n = n.prev
		}
		return n.header.Bits, nil
	}

	first := parent.Ancestor(parent.height - (blocksPerRetarget - 1))
	if first == nil {
		return 0, fmt.Errorf("no ancestor for retarget at height %d", parent.height+1)
	}

	actual := parent.header.Timestamp.Unix() - first.header.Timestamp.Unix()
	minSpan := targetTimespan / p.RetargetAdjustmentFactor
	maxSpan := targetTimespan * p.RetargetAdjustmentFactor
	actual = min(max(actual, minSpan), maxSpan)

	target := blockchain.CompactToBig(parent.header.Bits)
	target.Mul(target, big.NewInt(actual))
	target.Div(target, big.NewInt(targetTimespan))
	if target.Cmp(p.PowLimit) > 0 {
		target.Set(p.PowLimit)
	}
	return blockchain.BigToCompact(target), nil
}
