package utxo

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/goodnatureofminers/btckernel/internal/script"
	"github.com/goodnatureofminers/btckernel/internal/validation"
	"github.com/goodnatureofminers/btckernel/pkg/safe"
)

// Rules are the consensus parameters of one block connection. Subsidy is
// the new coin the coinbase may claim on top of the fees; EnforceBIP30
// rejects outputs that would replace an unspent coin.
type Rules struct {
	Subsidy          int64
	CoinbaseMaturity int32
	EnforceBIP30     bool
	ScriptFlags      script.Flags
}

// View stages block connections and disconnections on top of a Set. Nothing
// reaches the set until Commit, so a failed reorg is dropped by discarding
// the view.
type View struct {
	set     *Set
	changes map[wire.OutPoint]*Coin
	best    chainhash.Hash
}

// BestBlock returns the block the view is consistent with.
func (v *View) BestBlock() chainhash.Hash {
	return v.best
}

// GetCoin returns the unspent coin at op as seen by the view.
func (v *View) GetCoin(op wire.OutPoint) (Coin, bool, error) {
	c, err := v.lookup(op)
	if err != nil || c == nil {
		return Coin{}, false, err
	}
	return *c.clone(), true, nil
}

func (v *View) lookup(op wire.OutPoint) (*Coin, error) {
	if c, ok := v.changes[op]; ok {
		return c, nil
	}
	return v.set.fetch(op)
}

// Commit applies the staged changes to the set.
func (v *View) Commit() {
	v.set.apply(v.changes, v.best)
	v.changes = make(map[wire.OutPoint]*Coin)
}

// stage holds the changes of a single block until it is fully checked.
type stage struct {
	view    *View
	changes map[wire.OutPoint]*Coin
}

// lookup reports spent as true when op was spent earlier in this block.
func (s *stage) lookup(op wire.OutPoint) (c *Coin, spent bool, err error) {
	if c, ok := s.changes[op]; ok {
		return c, c == nil, nil
	}
	c, err = s.view.lookup(op)
	return c, false, err
}

func (s *stage) merge(best chainhash.Hash) {
	for op, c := range s.changes {
		s.view.changes[op] = c
	}
	s.view.best = best
}

func consensusErr(reason string, err error) error {
	return validation.Wrap(validation.ResultConsensus, reason, err)
}

func moneyRange(v int64) bool {
	return v >= 0 && v <= btcutil.MaxSatoshi
}

// ConnectBlock spends the inputs and adds the outputs of block at height.
// Coins are resolved for every input before any script runs; checker nil
// skips script verification. The returned undo data lists the spent coins.
// On error the view is unchanged.
func (v *View) ConnectBlock(
	ctx context.Context,
	block *btcutil.Block,
	height int32,
	rules Rules,
	checker ScriptChecker,
) (*BlockUndo, error) {
	txs := block.Transactions()
	if len(txs) == 0 {
		return nil, consensusErr("bad-blk-length", errors.New("block has no transactions"))
	}

	st := &stage{view: v, changes: make(map[wire.OutPoint]*Coin)}
	undo := &BlockUndo{Txs: make([]TxUndo, 0, len(txs)-1)}
	var (
		fees int64
		jobs []script.Job
	)
	for i, tx := range txs {
		if i > 0 {
			txUndo, fee, err := st.spendInputs(tx, height, rules)
			if err != nil {
				return nil, err
			}
			if fees, err = safe.AddInt64(fees, fee); err != nil || !moneyRange(fees) {
				return nil, consensusErr("bad-txns-fee-outofrange", ErrAmountOverflow)
			}
			undo.Txs = append(undo.Txs, txUndo)
			if checker != nil {
				jobs = append(jobs, scriptJobs(tx, txUndo)...)
			}
		}
		if err := st.addOutputs(tx, height, i == 0, rules.EnforceBIP30); err != nil {
			return nil, err
		}
	}

	var claimed int64
	for _, out := range txs[0].MsgTx().TxOut {
		var err error
		if claimed, err = safe.AddInt64(claimed, out.Value); err != nil {
			return nil, consensusErr("bad-txns-txouttotal-toolarge", ErrAmountOverflow)
		}
	}
	allowed, err := safe.AddInt64(rules.Subsidy, fees)
	if err != nil {
		return nil, consensusErr("bad-cb-amount", ErrAmountOverflow)
	}
	if claimed > allowed {
		return nil, consensusErr("bad-cb-amount",
			fmt.Errorf("%w: %d > %d", ErrBadCoinbaseValue, claimed, allowed))
	}

	if len(jobs) > 0 {
		if err := checker.VerifyAll(ctx, jobs, rules.ScriptFlags); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var inputErr *script.InputError
			if !errors.As(err, &inputErr) && !isScriptError(err) {
				return nil, fmt.Errorf("verify scripts: %w", err)
			}
			return nil, consensusErr("mandatory-script-verify-flag-failed", err)
		}
	}

	st.merge(*block.Hash())
	return undo, nil
}

func isScriptError(err error) bool {
	var serr *script.Error
	return errors.As(err, &serr)
}

func (s *stage) spendInputs(tx *btcutil.Tx, height int32, rules Rules) (TxUndo, int64, error) {
	msg := tx.MsgTx()
	txUndo := TxUndo{Coins: make([]Coin, 0, len(msg.TxIn))}
	var in int64
	for idx, txIn := range msg.TxIn {
		op := txIn.PreviousOutPoint
		c, spent, err := s.lookup(op)
		if err != nil {
			return TxUndo{}, 0, fmt.Errorf("fetch coin %s: %w", op, err)
		}
		if c == nil {
			cause := ErrMissingInput
			if spent {
				cause = ErrDoubleSpend
			}
			return TxUndo{}, 0, consensusErr("bad-txns-inputs-missingorspent",
				fmt.Errorf("tx %s input %d: %w: %s", tx.Hash(), idx, cause, op))
		}
		if c.IsCoinbase && height-c.Height < rules.CoinbaseMaturity {
			return TxUndo{}, 0, consensusErr("bad-txns-premature-spend-of-coinbase",
				fmt.Errorf("tx %s input %d: %w: depth %d", tx.Hash(), idx, ErrImmatureSpend, height-c.Height))
		}
		if !moneyRange(c.Amount) {
			return TxUndo{}, 0, consensusErr("bad-txns-inputvalues-outofrange", ErrAmountOverflow)
		}
		if in, err = safe.AddInt64(in, c.Amount); err != nil || !moneyRange(in) {
			return TxUndo{}, 0, consensusErr("bad-txns-inputvalues-outofrange", ErrAmountOverflow)
		}
		txUndo.Coins = append(txUndo.Coins, *c)
		s.changes[op] = nil
	}

	var out int64
	for _, txOut := range msg.TxOut {
		var err error
		if out, err = safe.AddInt64(out, txOut.Value); err != nil || !moneyRange(out) {
			return TxUndo{}, 0, consensusErr("bad-txns-txouttotal-toolarge", ErrAmountOverflow)
		}
	}
	if in < out {
		return TxUndo{}, 0, consensusErr("bad-txns-in-belowout",
			fmt.Errorf("tx %s: %w: %d < %d", tx.Hash(), ErrInsufficientFunds, in, out))
	}
	return txUndo, in - out, nil
}

func (s *stage) addOutputs(tx *btcutil.Tx, height int32, coinbase, bip30 bool) error {
	hash := *tx.Hash()
	for vout, out := range tx.MsgTx().TxOut {
		if txscript.IsUnspendable(out.PkScript) {
			continue
		}
		index, err := safe.Uint32(vout)
		if err != nil {
			return consensusErr("bad-txns-vout-toolarge", err)
		}
		op := wire.OutPoint{Hash: hash, Index: index}
		if bip30 {
			existing, _, err := s.lookup(op)
			if err != nil {
				return fmt.Errorf("fetch coin %s: %w", op, err)
			}
			if existing != nil {
				return consensusErr("bad-txns-BIP30", fmt.Errorf("%w: %s", ErrOverwrite, op))
			}
		}
		s.changes[op] = &Coin{
			Amount:     out.Value,
			PkScript:   out.PkScript,
			Height:     height,
			IsCoinbase: coinbase,
		}
	}
	return nil
}

func scriptJobs(tx *btcutil.Tx, undo TxUndo) []script.Job {
	msg := tx.MsgTx()
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range msg.TxIn {
		fetcher.AddPrevOut(txIn.PreviousOutPoint, undo.Coins[i].TxOut())
	}
	sigHashes := txscript.NewTxSigHashes(msg, fetcher)

	jobs := make([]script.Job, len(msg.TxIn))
	for i := range msg.TxIn {
		jobs[i] = script.Job{
			Tx:         msg,
			TxHash:     *tx.Hash(),
			InputIndex: i,
			PrevOut:    undo.Coins[i].TxOut(),
			Fetcher:    fetcher,
			SigHashes:  sigHashes,
		}
	}
	return jobs
}

// DisconnectBlock removes the outputs of block and restores the coins its
// inputs spent, walking transactions and inputs in reverse. The undo data
// must be the one produced when block was connected; any disagreement
// fails with ErrUndoMismatch and leaves the view unchanged.
func (v *View) DisconnectBlock(block *btcutil.Block, undo *BlockUndo) error {
	txs := block.Transactions()
	if undo == nil || len(undo.Txs)+1 != len(txs) {
		return fmt.Errorf("%w: block %s has %d transactions", ErrUndoMismatch, block.Hash(), len(txs))
	}

	st := &stage{view: v, changes: make(map[wire.OutPoint]*Coin)}
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		msg := tx.MsgTx()
		for vout, out := range msg.TxOut {
			if txscript.IsUnspendable(out.PkScript) {
				continue
			}
			index, err := safe.Uint32(vout)
			if err != nil {
				return fmt.Errorf("%w: output %d of %s", ErrUndoMismatch, vout, tx.Hash())
			}
			op := wire.OutPoint{Hash: *tx.Hash(), Index: index}
			c, _, err := st.lookup(op)
			if err != nil {
				return fmt.Errorf("fetch coin %s: %w", op, err)
			}
			if c == nil || c.Amount != out.Value || !bytes.Equal(c.PkScript, out.PkScript) {
				return fmt.Errorf("%w: output %s is not unspent", ErrUndoMismatch, op)
			}
			st.changes[op] = nil
		}
		if i == 0 {
			break
		}

		coins := undo.Txs[i-1].Coins
		if len(coins) != len(msg.TxIn) {
			return fmt.Errorf("%w: tx %s has %d inputs and %d undo coins",
				ErrUndoMismatch, tx.Hash(), len(msg.TxIn), len(coins))
		}
		for j := len(msg.TxIn) - 1; j >= 0; j-- {
			op := msg.TxIn[j].PreviousOutPoint
			existing, _, err := st.lookup(op)
			if err != nil {
				return fmt.Errorf("fetch coin %s: %w", op, err)
			}
			if existing != nil {
				return fmt.Errorf("%w: input %s is already unspent", ErrUndoMismatch, op)
			}
			st.changes[op] = coins[j].clone()
		}
	}

	st.merge(block.MsgBlock().Header.PrevBlock)
	return nil
}

// ConnectBlock connects block directly to the set.
func (s *Set) ConnectBlock(
	ctx context.Context,
	block *btcutil.Block,
	height int32,
	rules Rules,
	checker ScriptChecker,
) (*BlockUndo, error) {
	v := s.NewView()
	undo, err := v.ConnectBlock(ctx, block, height, rules, checker)
	if err != nil {
		return nil, err
	}
	v.Commit()
	return undo, nil
}

// DisconnectBlock disconnects block directly from the set.
func (s *Set) DisconnectBlock(block *btcutil.Block, undo *BlockUndo) error {
	v := s.NewView()
	if err := v.DisconnectBlock(block, undo); err != nil {
		return err
	}
	v.Commit()
	return nil
}
