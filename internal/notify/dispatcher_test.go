package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
)

type captureSink struct {
	mu   sync.Mutex
	got  []Notification
	fail bool
}

func (s *captureSink) Deliver(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	if s.fail {
		return errors.New("collaborator unavailable")
	}
	return nil
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 8, zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.EventCompleted(ctx, EventCompleted{EventID: "e1", ParticipantIDs: []string{"a", "b"}, RewardPoints: 50})
	d.PointsChanged(ctx, PointsChanged{UserID: "a", NewBalance: 50, NewLevel: 1})

	require.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "e1", sink.got[0].Completed.EventID)
	assert.Equal(t, int64(50), sink.got[1].Points.NewBalance)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	sink := &captureSink{}
	d := NewDispatcher(sink, 1, zap.NewNop(), m)

	assert.True(t, d.enqueue(Notification{Points: &PointsChanged{UserID: "a"}}))
	assert.False(t, d.enqueue(Notification{Points: &PointsChanged{UserID: "b"}}))
	d.PointsChanged(context.Background(), PointsChanged{UserID: "c"})

	assert.Equal(t, 2.0, counterValue(t, reg, "ecopoints_notifications_dropped_total"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestDispatcherFlushesOnShutdown(t *testing.T) {
	sink := &captureSink{fail: true}
	d := NewDispatcher(sink, 4, zaptest.NewLogger(t), nil)
	d.PointsChanged(context.Background(), PointsChanged{UserID: "a"})
	d.PointsChanged(context.Background(), PointsChanged{UserID: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 2, sink.len())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.EventCompleted(context.Background(), EventCompleted{EventID: "e1"})
	r.PointsChanged(context.Background(), PointsChanged{UserID: "u1"})
	assert.Len(t, r.Completed(), 1)
	assert.Len(t, r.Points(), 1)
}
