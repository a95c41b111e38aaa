package chainstate

import "time"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Metrics observes the chainstate. metrics.Chainstate implements it.
	Metrics interface {
		ObserveProcessBlock(err error, started time.Time)
		ObserveConnectBlock(txs int, err error, started time.Time)
		ObserveReorg(disconnected int)
		ObserveFlush(err error, started time.Time)
		SetTip(height int32, cachedCoins int)
	}
)

type nopMetrics struct{}

func (nopMetrics) ObserveProcessBlock(error, time.Time)      {}
func (nopMetrics) ObserveConnectBlock(int, error, time.Time) {}
func (nopMetrics) ObserveReorg(int)                          {}
func (nopMetrics) ObserveFlush(error, time.Time)             {}
func (nopMetrics) SetTip(int32, int)                         {}
