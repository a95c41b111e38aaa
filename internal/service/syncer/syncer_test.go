package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/golang/mock/gomock"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/chain"
	"github.com/goodnatureofminers/btckernel/internal/chaingen"
	"github.com/goodnatureofminers/btckernel/internal/chainstate"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

func genesisChain(t *testing.T) *chain.Chain {
	tree := blocktree.New(chaingen.RegtestParams(1), clock.NewDefaultClock(), zap.NewNop())
	return chain.New(tree.InitGenesis(), nil)
}

// localChain returns the active chain genesis..blocks with headers only.
func localChain(t *testing.T, blocks []*btcutil.Block) *chain.Chain {
	t.Helper()
	tree := blocktree.New(chaingen.RegtestParams(1), clock.NewDefaultClock(), zap.NewNop())
	tip := tree.InitGenesis()
	for _, b := range blocks {
		entry, err := tree.InsertHeader(&b.MsgBlock().Header)
		require.NoError(t, err)
		tip = entry
	}
	return chain.New(tip, nil)
}

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockBlockSource(ctrl)
	cs := NewMockChainstate(ctrl)
	m := NewMockMetrics(ctrl)

	_, err := New(nil, cs, m, Config{}, zap.NewNop())
	require.Error(t, err)
	_, err = New(source, nil, m, Config{}, zap.NewNop())
	require.Error(t, err)
	_, err = New(source, cs, nil, Config{}, zap.NewNop())
	require.Error(t, err)

	s, err := New(source, cs, m, Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(defaultBatchSize), s.batchSize)
	assert.Equal(t, defaultWorkerCount, s.workers)
	assert.Equal(t, defaultPollInterval, s.pollInterval)
}

func TestService_run(t *testing.T) {
	gen := chaingen.New(t, chaingen.RegtestParams(1))
	blocks := gen.Chain(gen.Genesis(), 3)
	side := gen.Chain(blocks[0], 1)
	active := genesisChain(t)
	local := localChain(t, blocks)
	invalid := validation.New(validation.ResultConsensus, "bad-cb-amount")

	type fields struct {
		source     *MockBlockSource
		chainstate *MockChainstate
		metrics    *MockMetrics
	}
	tests := []struct {
		name       string
		rewind     int32
		prepare    func(f fields)
		wantIdle   bool
		wantErr    bool
		wantRewind int32
	}{
		{
			name: "caught up",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(0), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(0), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(active)
			},
			wantIdle: true,
		},
		{
			name: "tip error",
			prepare: func(f fields) {
				err := errors.New("rpc down")
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(0), err)
				f.metrics.EXPECT().ObserveFetchTip(int64(0), err, gomock.Any())
			},
			wantErr: true,
		},
		{
			name: "batch in height order",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(3), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(3), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(active)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(1)).Return(blocks[0], nil)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(blocks[1], nil)
				gomock.InOrder(
					f.chainstate.EXPECT().ProcessBlock(gomock.Any(), blocks[0]).Return(chainstate.ProcessResult{Accepted: true, IsNewBlock: true}, nil),
					f.metrics.EXPECT().ObserveProcessBlock(nil, int64(1), gomock.Any()),
					f.chainstate.EXPECT().ProcessBlock(gomock.Any(), blocks[1]).Return(chainstate.ProcessResult{}, chainstate.ErrDuplicate),
					f.metrics.EXPECT().ObserveProcessBlock(chainstate.ErrDuplicate, int64(2), gomock.Any()),
					f.metrics.EXPECT().ObserveProcessBatch(nil, 2, gomock.Any()),
				)
			},
		},
		{
			name: "fetch error",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(3), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(3), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(active)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(1)).Return(nil, errors.New("timeout"))
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(blocks[1], nil).MaxTimes(1)
				f.metrics.EXPECT().ObserveProcessBatch(gomock.Not(gomock.Nil()), 0, gomock.Any())
			},
			wantErr: true,
		},
		{
			name: "remote fork rewinds",
			prepare: func(f fields) {
				missing := validation.New(validation.ResultMissingPrev, "prev-blk-not-found")
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(3), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(3), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(active)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(1)).Return(blocks[1], nil)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(blocks[2], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), blocks[1]).Return(chainstate.ProcessResult{}, missing)
				f.metrics.EXPECT().ObserveProcessBlock(missing, int64(1), gomock.Any())
				f.metrics.EXPECT().ObserveProcessBatch(nil, 0, gomock.Any())
			},
			wantRewind: 1,
		},
		{
			name:   "rewind is reset after a full batch",
			rewind: 4,
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(1), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(1), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(active)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(1)).Return(blocks[0], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), blocks[0]).Return(chainstate.ProcessResult{Accepted: true, IsNewBlock: true}, nil)
				f.metrics.EXPECT().ObserveProcessBlock(nil, int64(1), gomock.Any())
				f.metrics.EXPECT().ObserveProcessBatch(nil, 1, gomock.Any())
			},
		},
		{
			name: "remote tip below local on the active chain",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(2), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(2), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(local)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(blocks[1], nil)
			},
			wantIdle: true,
		},
		{
			name: "shorter remote branch is submitted",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(2), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(2), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(local)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(side[0], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), side[0]).Return(chainstate.ProcessResult{Accepted: true, IsNewBlock: true}, nil)
				f.metrics.EXPECT().ObserveProcessBlock(nil, int64(2), gomock.Any())
			},
		},
		{
			name: "known shorter remote branch is idle",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(2), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(2), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(local)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(side[0], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), side[0]).Return(chainstate.ProcessResult{Accepted: true}, nil)
				f.metrics.EXPECT().ObserveProcessBlock(nil, int64(2), gomock.Any())
			},
			wantIdle: true,
		},
		{
			name: "shorter remote branch forked deeper rewinds",
			prepare: func(f fields) {
				missing := validation.New(validation.ResultMissingPrev, "prev-blk-not-found")
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(2), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(2), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(local)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(side[0], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), side[0]).Return(chainstate.ProcessResult{}, missing)
				f.metrics.EXPECT().ObserveProcessBlock(missing, int64(2), gomock.Any())
			},
			wantRewind: 1,
		},
		{
			name:   "rewind counts from the shorter remote tip",
			rewind: 1,
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(2), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(2), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(local)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(2)).Return(side[0], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), side[0]).Return(chainstate.ProcessResult{Accepted: true, IsNewBlock: true}, nil)
				f.metrics.EXPECT().ObserveProcessBlock(nil, int64(2), gomock.Any())
				f.metrics.EXPECT().ObserveProcessBatch(nil, 1, gomock.Any())
			},
		},
		{
			name: "remote tip fetch error",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(3), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(3), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(local)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(3)).Return(nil, errors.New("timeout"))
			},
			wantErr: true,
		},
		{
			name: "invalid block",
			prepare: func(f fields) {
				f.source.EXPECT().TipHeight(gomock.Any()).Return(int32(1), nil)
				f.metrics.EXPECT().ObserveFetchTip(int64(1), nil, gomock.Any())
				f.chainstate.EXPECT().ActiveChain().Return(active)
				f.source.EXPECT().FetchBlock(gomock.Any(), int32(1)).Return(blocks[0], nil)
				f.chainstate.EXPECT().ProcessBlock(gomock.Any(), blocks[0]).Return(chainstate.ProcessResult{}, invalid)
				f.metrics.EXPECT().ObserveProcessBlock(invalid, int64(1), gomock.Any())
				f.metrics.EXPECT().ObserveProcessBatch(gomock.Not(gomock.Nil()), 0, gomock.Any())
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			f := fields{
				source:     NewMockBlockSource(ctrl),
				chainstate: NewMockChainstate(ctrl),
				metrics:    NewMockMetrics(ctrl),
			}
			tt.prepare(f)

			s, err := New(f.source, f.chainstate, f.metrics, Config{BatchSize: 2, Workers: 2}, zaptest.NewLogger(t))
			require.NoError(t, err)
			s.rewind = tt.rewind

			idle, err := s.run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if idle != tt.wantIdle {
				t.Fatalf("run() idle = %v, want %v", idle, tt.wantIdle)
			}
			if s.rewind != tt.wantRewind {
				t.Fatalf("run() rewind = %d, want %d", s.rewind, tt.wantRewind)
			}
		})
	}
}

func TestService_RunStops(t *testing.T) {
	t.Run("halted manager", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := NewMockBlockSource(ctrl)
		cs := NewMockChainstate(ctrl)
		m := NewMockMetrics(ctrl)

		gen := chaingen.New(t, chaingen.RegtestParams(1))
		block := gen.NextBlock(gen.Genesis())
		source.EXPECT().TipHeight(gomock.Any()).Return(int32(1), nil)
		source.EXPECT().FetchBlock(gomock.Any(), int32(1)).Return(block, nil)
		cs.EXPECT().ActiveChain().Return(genesisChain(t))
		cs.EXPECT().ProcessBlock(gomock.Any(), block).Return(chainstate.ProcessResult{}, chainstate.ErrHalted)
		m.EXPECT().ObserveFetchTip(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
		m.EXPECT().ObserveProcessBlock(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
		m.EXPECT().ObserveProcessBatch(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

		s, err := New(source, cs, m, Config{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		s.sleep = func(context.Context, time.Duration) error {
			t.Fatal("unexpected sleep")
			return nil
		}
		require.ErrorIs(t, s.Run(context.Background()), chainstate.ErrHalted)
	})

	t.Run("backs off then stops with the context", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := NewMockBlockSource(ctrl)
		cs := NewMockChainstate(ctrl)
		m := NewMockMetrics(ctrl)

		source.EXPECT().TipHeight(gomock.Any()).Return(int32(0), errors.New("rpc down")).Times(3)
		m.EXPECT().ObserveFetchTip(gomock.Any(), gomock.Any(), gomock.Any()).Times(3)

		s, err := New(source, cs, m, Config{MaxBackoff: 3 * time.Second}, zaptest.NewLogger(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var sleeps []time.Duration
		s.sleep = func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				cancel()
				return context.Canceled
			}
			return nil
		}
		require.ErrorIs(t, s.Run(ctx), context.Canceled)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeps)
	})
}

// remoteNode serves a mutable chain of blocks by height.
type remoteNode struct {
	mu     sync.Mutex
	blocks []*btcutil.Block
}

func (r *remoteNode) set(blocks []*btcutil.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = blocks
}

func (r *remoteNode) TipHeight(context.Context) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int32(len(r.blocks)), nil
}

func (r *remoteNode) FetchBlock(_ context.Context, height int32) (*btcutil.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if height < 1 || int(height) > len(r.blocks) {
		return nil, errors.New("height out of range")
	}
	return r.blocks[height-1], nil
}

func TestService_FollowsRemoteReorg(t *testing.T) {
	params := chaingen.RegtestParams(1)
	gen := chaingen.New(t, params)
	m, err := chainstate.New(chainstate.Options{
		Params:             params,
		BlockTreeInMemory:  true,
		ChainstateInMemory: true,
		Clock:              clock.NewTestClock(params.GenesisBlock.Header.Timestamp.Add(365 * 24 * time.Hour)),
		Logger:             zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer m.Close()

	base := gen.Chain(gen.Genesis(), 5)
	remote := &remoteNode{blocks: base}

	ctrl := gomock.NewController(t)
	metrics := NewMockMetrics(ctrl)
	metrics.EXPECT().ObserveFetchTip(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().ObserveProcessBlock(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().ObserveProcessBatch(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	s, err := New(remote, m, metrics, Config{BatchSize: 2, Workers: 2}, zaptest.NewLogger(t))
	require.NoError(t, err)

	syncUp := func() {
		t.Helper()
		for i := 0; i < 50; i++ {
			idle, err := s.run(context.Background())
			require.NoError(t, err)
			if idle {
				return
			}
		}
		t.Fatal("syncer did not catch up")
	}

	syncUp()
	assert.Equal(t, int32(5), m.ActiveChain().Height())
	assert.Equal(t, *base[4].Hash(), m.ActiveChain().Tip().Hash())

	// The remote drops its last three blocks for a longer branch.
	fork := gen.Chain(base[1], 5)
	remote.set(append(append([]*btcutil.Block{}, base[:2]...), fork...))
	syncUp()
	assert.Equal(t, int32(7), m.ActiveChain().Height())
	assert.Equal(t, *fork[4].Hash(), m.ActiveChain().Tip().Hash())
	assert.Zero(t, s.rewind)

	// A shorter remote branch is downloaded so the manager can weigh it.
	// With equal work per block it loses and the syncer settles.
	short := gen.Chain(fork[0], 2)
	remote.set(append(append(append([]*btcutil.Block{}, base[:2]...), fork[0]), short...))
	syncUp()
	assert.Equal(t, *fork[4].Hash(), m.ActiveChain().Tip().Hash())
	for _, b := range short {
		entry := m.LookupEntry(*b.Hash())
		require.NotNil(t, entry)
		assert.True(t, entry.Status().Has(blocktree.StatusHaveData))
	}
	assert.Zero(t, s.rewind)
}
