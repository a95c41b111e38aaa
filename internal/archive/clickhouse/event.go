package clickhouse

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/goodnatureofminers/btckernel/internal/blocktree"
)

// EventKind tells whether a block joined or left the active chain.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
)

// Event is one row of chain_events.
type Event struct {
	Network    string
	Kind       EventKind
	Height     uint32
	Hash       string
	PrevHash   string
	Timestamp  time.Time
	TxCount    uint32
	RecordedAt time.Time
}

func newEvent(network string, kind EventKind, block *btcutil.Block, entry *blocktree.Entry, now time.Time) Event {
	header := block.MsgBlock().Header
	return Event{
		Network:    network,
		Kind:       kind,
		Height:     uint32(max(entry.Height(), 0)),
		Hash:       entry.Hash().String(),
		PrevHash:   header.PrevBlock.String(),
		Timestamp:  header.Timestamp.UTC(),
		TxCount:    uint32(len(block.Transactions())),
		RecordedAt: now.UTC(),
	}
}
