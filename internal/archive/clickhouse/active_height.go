package clickhouse

import (
	"context"
	"fmt"
	"time"
)

// ActiveHeight returns the highest block the journal currently lists as
// connected, replaying disconnects. found is false for an empty journal.
func (r *Repository) ActiveHeight(ctx context.Context, network string) (height uint32, found bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("active_height", network, 0, err, start)
	}()

	const query = `
SELECT max(height), count()
FROM active_blocks
WHERE network = ?`

	rows, err := r.conn.Query(ctx, query, network)
	if err != nil {
		return 0, false, fmt.Errorf("query active height: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	if !rows.Next() {
		return 0, false, fmt.Errorf("active height not found")
	}
	var count uint64
	if err = rows.Scan(&height, &count); err != nil {
		return 0, false, fmt.Errorf("scan active height: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, false, fmt.Errorf("iterate active height: %w", err)
	}
	return height, count > 0, nil
}
