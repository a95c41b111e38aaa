package clickhouse

import (
	"context"
	"fmt"
	"time"
)

// LatestEvent returns the most recently recorded event of a network.
func (r *Repository) LatestEvent(ctx context.Context, network string) (event Event, found bool, err error) {
	start := time.Now()
	defer func() {
		rows := 0
		if found {
			rows = 1
		}
		r.metrics.Observe("latest_event", network, rows, err, start)
	}()

	const query = `
SELECT network, event, height, hash, prev_hash, timestamp, tx_count, recorded_at
FROM chain_events
WHERE network = ?
ORDER BY recorded_at DESC, height DESC
LIMIT 1`

	rows, err := r.conn.Query(ctx, query, network)
	if err != nil {
		return Event{}, false, fmt.Errorf("query latest event: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return Event{}, false, fmt.Errorf("iterate latest event: %w", err)
		}
		return Event{}, false, nil
	}

	var kind string
	if err = rows.Scan(
		&event.Network,
		&kind,
		&event.Height,
		&event.Hash,
		&event.PrevHash,
		&event.Timestamp,
		&event.TxCount,
		&event.RecordedAt,
	); err != nil {
		return Event{}, false, fmt.Errorf("scan latest event: %w", err)
	}
	event.Kind = EventKind(kind)
	return event, true, nil
}
