package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
)

func TestRepository_InsertEventsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := NewMockMetrics(ctrl)
	metrics.EXPECT().Observe("insert_events", "", 0, gomock.Nil(), gomock.AssignableToTypeOf(time.Time{}))

	r := &Repository{metrics: metrics}
	if err := r.InsertEvents(context.Background(), nil); err != nil {
		t.Fatalf("InsertEvents() error = %v", err)
	}
}

func TestFirstNetwork(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   string
	}{
		{name: "empty", want: ""},
		{name: "first wins", events: []Event{{Network: "mainnet"}, {Network: "regtest"}}, want: "mainnet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstNetwork(tt.events); got != tt.want {
				t.Fatalf("firstNetwork() = %v, want %v", got, tt.want)
			}
		})
	}
}
