package syncer

import "time"

const (
	defaultBatchSize    = 100
	defaultWorkerCount  = 8
	defaultPollInterval = 5 * time.Second
	defaultMaxBackoff   = time.Minute
	initialBackoff      = time.Second

	// maxRewind bounds how far below the local tip the syncer searches for
	// the fork point of a remote reorg.
	maxRewind int32 = 1 << 12
)
