package clickhouse

import (
	"context"
	"fmt"
	"time"
)

// InsertEvents appends rows to chain_events.
func (r *Repository) InsertEvents(ctx context.Context, events []Event) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_events", firstNetwork(events), len(events), err, start)
	}()

	if len(events) == 0 {
		return nil
	}

	const query = `
INSERT INTO chain_events (
	network,
	event,
	height,
	hash,
	prev_hash,
	timestamp,
	tx_count,
	recorded_at
) VALUES`

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare events batch: %w", err)
	}

	for _, e := range events {
		if err = batch.Append(
			e.Network,
			string(e.Kind),
			e.Height,
			e.Hash,
			e.PrevHash,
			e.Timestamp,
			e.TxCount,
			e.RecordedAt,
		); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

func firstNetwork(events []Event) string {
	if len(events) == 0 {
		return ""
	}
	return events[0].Network
}
