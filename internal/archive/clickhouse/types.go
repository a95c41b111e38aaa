package clickhouse

import (
	"context"
	"time"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation, network string, rows int, err error, started time.Time)
	}
	EventWriter interface {
		InsertEvents(ctx context.Context, events []Event) error
	}
)
