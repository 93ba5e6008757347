package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	router := fanout.NewRouter(rdb, zap.NewNop())
	return New(router, zap.NewNop(), 20*time.Millisecond)
}

func TestStartIsIdempotentPerSession(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx, "sess-1")
	b.Start(ctx, "sess-1")

	b.mu.Lock()
	running := len(b.cancel)
	b.mu.Unlock()
	require.Equal(t, 1, running)

	b.Stop("sess-1")
	b.mu.Lock()
	running = len(b.cancel)
	b.mu.Unlock()
	require.Equal(t, 0, running)
}

func TestStopIsIdempotent(t *testing.T) {
	b := newTestBroadcaster(t)
	require.NotPanics(t, func() { b.Stop("never-started") })
}

func TestSampleAndBroadcastPublishesSystemMetrics(t *testing.T) {
	b := newTestBroadcaster(t)
	require.NotPanics(t, func() { b.sampleAndBroadcast(context.Background(), "sess-1") })
}

func TestMemoryUsagePercentIsBounded(t *testing.T) {
	pct := memoryUsagePercent()
	require.GreaterOrEqual(t, pct, 0.0)
	require.LessOrEqual(t, pct, 100.0)
}

func TestCPUSamplerFirstCallReturnsZero(t *testing.T) {
	var c cpuSampler
	require.Equal(t, 0.0, c.sample())
}

func TestCPUSamplerSecondCallIsBounded(t *testing.T) {
	var c cpuSampler
	c.sample()
	time.Sleep(5 * time.Millisecond)
	pct := c.sample()
	require.GreaterOrEqual(t, pct, 0.0)
	require.LessOrEqual(t, pct, 100.0)
}
