package main

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goodnatureofminers/btckernel/internal/primitives"
	"github.com/goodnatureofminers/btckernel/internal/script"
)

func spendingTx(t *testing.T) string {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(900, []byte{txscript.OP_TRUE}))
	raw, err := primitives.SerializeTransaction(tx)
	require.NoError(t, err)
	return hex.EncodeToString(raw)
}

func TestRun(t *testing.T) {
	txHex := spendingTx(t)
	opTrue := hex.EncodeToString([]byte{txscript.OP_TRUE})
	opFalse := hex.EncodeToString([]byte{txscript.OP_FALSE})

	tests := []struct {
		name    string
		cfg     config
		wantErr error
		errText string
	}{
		{
			name: "anyone can spend",
			cfg:  config{ScriptPubKey: opTrue, Tx: txHex, Amount: 1000, Flags: "ALL_PRE_TAPROOT"},
		},
		{
			name: "taproot with spent outputs",
			cfg:  config{ScriptPubKey: opTrue, Tx: txHex, Amount: 1000, Flags: "ALL", Spent: []string{"1000:" + opTrue}},
		},
		{
			name:    "taproot without spent outputs",
			cfg:     config{ScriptPubKey: opTrue, Tx: txHex, Amount: 1000, Flags: "ALL"},
			wantErr: script.ErrSpentOutputsRequired,
		},
		{
			name:    "false script",
			cfg:     config{ScriptPubKey: opFalse, Tx: txHex, Flags: "P2SH"},
			wantErr: script.ErrScriptFailure,
		},
		{
			name:    "input out of range",
			cfg:     config{ScriptPubKey: opTrue, Tx: txHex, Input: 1, Flags: "NONE"},
			wantErr: script.ErrTxInputIndexOutOfBounds,
		},
		{
			name:    "unknown raw bits",
			cfg:     config{ScriptPubKey: opTrue, Tx: txHex, Flags: "0x2"},
			wantErr: script.ErrInvalidFlags,
		},
		{
			name:    "spent output count mismatch",
			cfg:     config{ScriptPubKey: opTrue, Tx: txHex, Flags: "NONE", Spent: []string{"1:51", "2:51"}},
			wantErr: script.ErrSpentOutputsMismatch,
		},
		{
			name:    "bad script hex",
			cfg:     config{ScriptPubKey: "zz", Tx: txHex, Flags: "NONE"},
			errText: "decode script pubkey",
		},
		{
			name:    "truncated tx",
			cfg:     config{ScriptPubKey: opTrue, Tx: txHex[:20], Flags: "NONE"},
			errText: "parse tx",
		},
		{
			name:    "unknown flag name",
			cfg:     config{ScriptPubKey: opTrue, Tx: txHex, Flags: "SCHNORR"},
			errText: `unknown script flags "SCHNORR"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.cfg, zaptest.NewLogger(t))
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.ErrorContains(t, err, tt.errText)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	tests := map[string]script.Flags{
		"":                       script.FlagNone,
		"0":                      script.FlagNone,
		"2049":                   script.FlagP2SH | script.FlagWitness,
		"0x20000":                script.FlagTaproot,
		"p2sh, witness":          script.FlagP2SH | script.FlagWitness,
		"ALL":                    script.FlagsAll,
		"ALL_PRE_TAPROOT,DERSIG": script.FlagsAllPreTaproot,
	}
	for in, want := range tests {
		got, err := parseFlags(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseSpentOutputs(t *testing.T) {
	outs, err := parseSpentOutputs(nil)
	require.NoError(t, err)
	assert.Nil(t, outs)

	outs, err = parseSpentOutputs([]string{"1000:51", "0:"})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, wire.NewTxOut(1000, []byte{0x51}), outs[0])
	assert.Equal(t, int64(0), outs[1].Value)
	assert.Empty(t, outs[1].PkScript)

	for _, bad := range []string{"1000", "x:51", "10:zz"} {
		_, err := parseSpentOutputs([]string{bad})
		assert.Error(t, err, bad)
	}
}
