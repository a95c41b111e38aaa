package chainstate

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// SyncState tells listeners how far the node is from the network tip.
type SyncState uint8

const (
	SyncInitReindex SyncState = iota
	SyncInitDownload
	SyncPostInit
)

func (s SyncState) String() string {
	switch s {
	case SyncInitReindex:
		return "init-reindex"
	case SyncInitDownload:
		return "init-download"
	case SyncPostInit:
		return "post-init"
	default:
		return fmt.Sprintf("sync-state(%d)", uint8(s))
	}
}

// Warning identifies a condition that is set and later cleared.
type Warning uint8

const (
	WarningUnknownNewRulesActivated Warning = iota
	WarningLargeWorkInvalidChain
)

func (w Warning) String() string {
	switch w {
	case WarningUnknownNewRulesActivated:
		return "unknown-new-rules-activated"
	case WarningLargeWorkInvalidChain:
		return "large-work-invalid-chain"
	default:
		return fmt.Sprintf("warning(%d)", uint8(w))
	}
}

// Notifications receives kernel events. Calls are made synchronously while
// the manager holds its write lock, so implementations must not call back
// into write operations.
type Notifications interface {
	BlockTip(state SyncState, entry *blocktree.Entry, verificationProgress float64)
	HeaderTip(state SyncState, height int32, timestamp time.Time, presync bool)
	Progress(title string, percent int, resumePossible bool)
	WarningSet(w Warning, message string)
	WarningUnset(w Warning)
	FlushError(message string)
	FatalError(message string)
}

// NotificationCallbacks adapts optional funcs to Notifications.
type NotificationCallbacks struct {
	OnBlockTip     func(state SyncState, entry *blocktree.Entry, verificationProgress float64)
	OnHeaderTip    func(state SyncState, height int32, timestamp time.Time, presync bool)
	OnProgress     func(title string, percent int, resumePossible bool)
	OnWarningSet   func(w Warning, message string)
	OnWarningUnset func(w Warning)
	OnFlushError   func(message string)
	OnFatalError   func(message string)
}

func (n NotificationCallbacks) BlockTip(state SyncState, entry *blocktree.Entry, progress float64) {
	if n.OnBlockTip != nil {
		n.OnBlockTip(state, entry, progress)
	}
}

func (n NotificationCallbacks) HeaderTip(state SyncState, height int32, timestamp time.Time, presync bool) {
	if n.OnHeaderTip != nil {
		n.OnHeaderTip(state, height, timestamp, presync)
	}
}

func (n NotificationCallbacks) Progress(title string, percent int, resumePossible bool) {
	if n.OnProgress != nil {
		n.OnProgress(title, percent, resumePossible)
	}
}

func (n NotificationCallbacks) WarningSet(w Warning, message string) {
	if n.OnWarningSet != nil {
		n.OnWarningSet(w, message)
	}
}

func (n NotificationCallbacks) WarningUnset(w Warning) {
	if n.OnWarningUnset != nil {
		n.OnWarningUnset(w)
	}
}

func (n NotificationCallbacks) FlushError(message string) {
	if n.OnFlushError != nil {
		n.OnFlushError(message)
	}
}

func (n NotificationCallbacks) FatalError(message string) {
	if n.OnFatalError != nil {
		n.OnFatalError(message)
	}
}

// ValidationInterface receives the outcome of block validation. The same
// locking rules as for Notifications apply.
type ValidationInterface interface {
	BlockChecked(block *btcutil.Block, state validation.State)
	PoWValidBlock(block *btcutil.Block, entry *blocktree.Entry)
	BlockConnected(block *btcutil.Block, entry *blocktree.Entry)
	BlockDisconnected(block *btcutil.Block, entry *blocktree.Entry)
}

// ValidationCallbacks adapts optional funcs to ValidationInterface.
type ValidationCallbacks struct {
	OnBlockChecked      func(block *btcutil.Block, state validation.State)
	OnPoWValidBlock     func(block *btcutil.Block, entry *blocktree.Entry)
	OnBlockConnected    func(block *btcutil.Block, entry *blocktree.Entry)
	OnBlockDisconnected func(block *btcutil.Block, entry *blocktree.Entry)
}

func (v ValidationCallbacks) BlockChecked(block *btcutil.Block, state validation.State) {
	if v.OnBlockChecked != nil {
		v.OnBlockChecked(block, state)
	}
}

func (v ValidationCallbacks) PoWValidBlock(block *btcutil.Block, entry *blocktree.Entry) {
	if v.OnPoWValidBlock != nil {
		v.OnPoWValidBlock(block, entry)
	}
}

func (v ValidationCallbacks) BlockConnected(block *btcutil.Block, entry *blocktree.Entry) {
	if v.OnBlockConnected != nil {
		v.OnBlockConnected(block, entry)
	}
}

func (v ValidationCallbacks) BlockDisconnected(block *btcutil.Block, entry *blocktree.Entry) {
	if v.OnBlockDisconnected != nil {
		v.OnBlockDisconnected(block, entry)
	}
}
