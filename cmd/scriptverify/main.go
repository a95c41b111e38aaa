package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/btcsuite/btcd/wire"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/internal/logging"
	"github.com/goodnatureofminers/btckernel/internal/primitives"
	"github.com/goodnatureofminers/btckernel/internal/script"
)

type config struct {
	ScriptPubKey string   `long:"script-pubkey" env:"SCRIPTVERIFY_SCRIPT_PUBKEY" description:"hex scriptPubKey of the spent output" required:"true"`
	Tx           string   `long:"tx" env:"SCRIPTVERIFY_TX" description:"hex serialized spending transaction" required:"true"`
	Input        int      `long:"input" env:"SCRIPTVERIFY_INPUT" description:"index of the input to verify" default:"0"`
	Amount       int64    `long:"amount" env:"SCRIPTVERIFY_AMOUNT" description:"value of the spent output in satoshi"`
	Flags        string   `long:"flags" env:"SCRIPTVERIFY_FLAGS" description:"comma separated flag names, ALL, ALL_PRE_TAPROOT or a number" default:"ALL_PRE_TAPROOT"`
	Spent        []string `long:"spent" description:"amount:hexscript of every spent output in input order, repeatable"`

	Log logging.Config `group:"logging" namespace:"log" env-namespace:"SCRIPTVERIFY_LOG"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("verification failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}
	logger.Info("verification succeeded")
	_ = closeLog()
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pkScript, err := hex.DecodeString(cfg.ScriptPubKey)
	if err != nil {
		return fmt.Errorf("decode script pubkey: %w", err)
	}
	rawTx, err := hex.DecodeString(cfg.Tx)
	if err != nil {
		return fmt.Errorf("decode tx: %w", err)
	}
	tx, err := primitives.ParseTransaction(rawTx)
	if err != nil {
		return fmt.Errorf("parse tx: %w", err)
	}
	verifyFlags, err := parseFlags(cfg.Flags)
	if err != nil {
		return err
	}
	spent, err := parseSpentOutputs(cfg.Spent)
	if err != nil {
		return err
	}

	logger.Debug("verifying input",
		zap.Stringer("txid", tx.Hash()),
		zap.Int("input", cfg.Input),
		zap.Int64("amount", cfg.Amount),
		zap.Stringer("flags", verifyFlags),
		zap.Int("spent_outputs", len(spent)),
	)
	v := script.NewVerifier(logger.Named(logging.CategoryValidation))
	return v.Verify(pkScript, cfg.Amount, tx.MsgTx(), cfg.Input, spent, verifyFlags)
}

// parseFlags accepts flag names understood by script.ParseFlags or a raw
// bitset in decimal or 0x-prefixed hex. Unknown bits in a raw bitset are
// passed through so the verifier reports them.
func parseFlags(s string) (script.Flags, error) {
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		return script.Flags(n), nil
	}
	f, ok := script.ParseFlags(s)
	if !ok {
		return 0, fmt.Errorf("unknown script flags %q", s)
	}
	return f, nil
}

func parseSpentOutputs(values []string) ([]*wire.TxOut, error) {
	if len(values) == 0 {
		return nil, nil
	}
	outs := make([]*wire.TxOut, 0, len(values))
	for i, v := range values {
		amountStr, scriptHex, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("spent output %d: want amount:hexscript, got %q", i, v)
		}
		amount, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("spent output %d: amount: %w", i, err)
		}
		pkScript, err := hex.DecodeString(scriptHex)
		if err != nil {
			return nil, fmt.Errorf("spent output %d: script: %w", i, err)
		}
		outs = append(outs, wire.NewTxOut(amount, pkScript))
	}
	return outs, nil
}
