package script

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/btckernel/pkg/workerpool"
)

// DefaultSigCacheSize is the number of signature checks remembered.
const DefaultSigCacheSize = 50000

// MaxWorkers bounds the script check pool.
const MaxWorkers = 15

// Verifier runs the txscript engine with a shared signature cache.
type Verifier struct {
	sigCache *txscript.SigCache
	workers  int
	metrics  Metrics
	logger   *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSigCacheSize replaces the default signature cache. Zero disables caching.
func WithSigCacheSize(size uint) Option {
	return func(v *Verifier) {
		if size == 0 {
			v.sigCache = nil
			return
		}
		v.sigCache = txscript.NewSigCache(size)
	}
}

// WithWorkers sets how many goroutines VerifyAll uses; 0 checks inline.
func WithWorkers(n int) Option {
	return func(v *Verifier) {
		v.workers = min(max(n, 0), MaxWorkers)
	}
}

// WithMetrics attaches a metrics observer.
func WithMetrics(m Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// NewVerifier constructs a Verifier.
func NewVerifier(logger *zap.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		sigCache: txscript.NewSigCache(DefaultSigCacheSize),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Workers returns the configured pool size.
func (v *Verifier) Workers() int {
	return v.workers
}

// Verify checks that input inputIndex of tx satisfies scriptPubKey under
// flags. spentOutputs, when given, must hold the output spent by every input
// of tx in input order; taproot checks require it.
func (v *Verifier) Verify(
	scriptPubKey []byte,
	amount int64,
	tx *wire.MsgTx,
	inputIndex int,
	spentOutputs []*wire.TxOut,
	flags Flags,
) error {
	if tx == nil || inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		inputs := 0
		if tx != nil {
			inputs = len(tx.TxIn)
		}
		return newError(CodeTxInputIndexOutOfBounds, "input %d of %d", inputIndex, inputs)
	}
	if err := checkFlags(flags); err != nil {
		return err
	}
	if flags.Has(FlagTaproot) && len(spentOutputs) == 0 {
		return ErrSpentOutputsRequired
	}
	if len(spentOutputs) != 0 {
		if len(spentOutputs) != len(tx.TxIn) {
			return newError(CodeSpentOutputsMismatch, "%d spent outputs for %d inputs", len(spentOutputs), len(tx.TxIn))
		}
		for i, out := range spentOutputs {
			if out == nil {
				return newError(CodeSpentOutputsMismatch, "spent output %d is missing", i)
			}
		}
	}

	fetcher := prevOutputFetcher(scriptPubKey, amount, tx, spentOutputs)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	return v.execute(scriptPubKey, amount, tx, inputIndex, flags, sigHashes, fetcher)
}

func checkFlags(flags Flags) error {
	if !flags.Known() {
		return newError(CodeInvalidFlags, "unknown bits %#x", uint32(flags&^FlagsAll))
	}
	if flags.Has(FlagWitness) && !flags.Has(FlagP2SH) {
		return newError(CodeInvalidFlagsCombination, "WITNESS requires P2SH")
	}
	return nil
}

func prevOutputFetcher(
	scriptPubKey []byte,
	amount int64,
	tx *wire.MsgTx,
	spentOutputs []*wire.TxOut,
) txscript.PrevOutputFetcher {
	if len(spentOutputs) == 0 {
		return txscript.NewCannedPrevOutputFetcher(scriptPubKey, amount)
	}
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, spentOutputs[i])
	}
	return fetcher
}

func (v *Verifier) execute(
	scriptPubKey []byte,
	amount int64,
	tx *wire.MsgTx,
	inputIndex int,
	flags Flags,
	sigHashes *txscript.TxSigHashes,
	fetcher txscript.PrevOutputFetcher,
) error {
	vm, err := txscript.NewEngine(scriptPubKey, tx, inputIndex, flags.engineFlags(), v.sigCache, sigHashes, amount, fetcher)
	if err != nil {
		return scriptFailure(err)
	}
	if err := vm.Execute(); err != nil {
		return scriptFailure(err)
	}
	return nil
}

// Job is one input check. The spent output must already be resolved, so
// jobs can run in any order on any goroutine.
type Job struct {
	Tx         *wire.MsgTx
	TxHash     chainhash.Hash
	InputIndex int
	PrevOut    *wire.TxOut
	Fetcher    txscript.PrevOutputFetcher
	SigHashes  *txscript.TxSigHashes
}

// InputError ties a failure to the input that produced it.
type InputError struct {
	TxHash     chainhash.Hash
	InputIndex int
	Err        error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s:%d: %v", e.TxHash, e.InputIndex, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// VerifyAll runs every job on the worker pool and returns the first failure.
func (v *Verifier) VerifyAll(ctx context.Context, jobs []Job, flags Flags) (err error) {
	if err := checkFlags(flags); err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	started := time.Now()
	defer func() {
		if v.metrics != nil {
			v.metrics.ObserveChecks(len(jobs), err, started)
		}
	}()

	err = workerpool.Process(ctx, v.workers, jobs, func(_ context.Context, job Job) error {
		if job.PrevOut == nil {
			return &InputError{TxHash: job.TxHash, InputIndex: job.InputIndex, Err: ErrSpentOutputsRequired}
		}
		err := v.execute(job.PrevOut.PkScript, job.PrevOut.Value, job.Tx, job.InputIndex, flags, job.SigHashes, job.Fetcher)
		if err != nil {
			return &InputError{TxHash: job.TxHash, InputIndex: job.InputIndex, Err: err}
		}
		return nil
	}, nil)
	if err != nil {
		v.logger.Debug("script check failed", zap.Int("inputs", len(jobs)), zap.Error(err))
	}
	return err
}
