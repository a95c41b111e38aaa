package script

import "time"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Metrics observes batches of input checks.
	Metrics interface {
		ObserveChecks(inputs int, err error, started time.Time)
	}
)
