package blocktree

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goodnatureofminers/btckernel/internal/chaingen"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

func TestTree_NextRequiredBits_NoRetargeting(t *testing.T) {
	params := chaingen.RegtestParams(100)
	gen := chaingen.New(t, params)
	tree, _ := newTree(t, params)

	entries := insertAll(t, tree, gen.Chain(gen.Genesis(), 3))
	bits, err := tree.NextRequiredBits(entries[2], entries[2].Timestamp().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, params.PowLimitBits, bits)
}

func TestTree_NextRequiredBits_Retarget(t *testing.T) {
	params := chaingen.RegtestParams(100)
	params.PoWNoRetargeting = false
	params.ReduceMinDifficulty = false
	params.TargetTimespan = 10 * time.Minute
	params.TargetTimePerBlock = time.Minute
	params.RetargetAdjustmentFactor = 4

	gen := chaingen.New(t, params)
	tree, _ := newTree(t, params)

	const spacing = 30 * time.Second
	parent := gen.Genesis()
	var blocks []*btcutil.Block
	for i := 0; i < 9; i++ {
		ts := parent.MsgBlock().Header.Timestamp.Add(spacing)
		parent = gen.NextBlock(parent, chaingen.WithTimestamp(ts))
		blocks = append(blocks, parent)
	}
	entries := insertAll(t, tree, blocks)
	last := entries[len(entries)-1]

	target := blockchain.CompactToBig(params.PowLimitBits)
	target.Mul(target, big.NewInt(int64(9*spacing/time.Second)))
	target.Div(target, big.NewInt(int64(params.TargetTimespan/time.Second)))
	want := blockchain.BigToCompact(target)

	next := last.Timestamp().Add(spacing)
	got, err := tree.NextRequiredBits(last, next)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stale := gen.NextBlock(parent, chaingen.WithTimestamp(next))
	_, err = tree.InsertHeader(&stale.MsgBlock().Header)
	assert.Equal(t, validation.ResultInvalidHeader, validation.ResultOf(err))

	retargeted := gen.NextBlock(parent, chaingen.WithTimestamp(next), chaingen.WithBits(want))
	e, err := tree.InsertHeader(&retargeted.MsgBlock().Header)
	require.NoError(t, err)
	assert.Equal(t, int32(10), e.Height())

	// Outside the retarget boundary the parent's bits carry over.
	got, err = tree.NextRequiredBits(e, next.Add(spacing))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
