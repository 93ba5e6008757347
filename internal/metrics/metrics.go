// Package metrics implements the Prometheus-backed system-metrics
// broadcaster resolving spec.md §9's open point on where `system_metrics`
// numbers come from: real gauges fed by the fanout connection registry
// and process-level sampling, not an implementation-defined stub.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

var (
	activeConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quiz_active_connections",
		Help: "Locally-registered WebSocket connections per session.",
	}, []string{"session_id"})

	averageLatencyMs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quiz_average_latency_ms",
		Help: "Mean ping/pong round trip across a session's connections, in milliseconds.",
	}, []string{"session_id"})

	processCPUUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_process_cpu_usage_percent",
		Help: "Process CPU utilization, normalized to [0,100] across all cores.",
	})

	processMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_process_memory_usage_percent",
		Help: "Process heap allocation as a percentage of memory reserved from the OS.",
	})

	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_system_metrics_broadcasts_total",
		Help: "Total system_metrics events broadcast per session.",
	}, []string{"session_id"})
)

// Broadcaster owns the process-wide registry of (sessionId -> periodic
// task) described in spec.md §5: starting an already-broadcasting
// session is a no-op, stopping is idempotent.
type Broadcaster struct {
	router   *fanout.Router
	log      *zap.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel map[string]context.CancelFunc

	cpu cpuSampler
}

func New(router *fanout.Router, log *zap.Logger, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Broadcaster{router: router, log: log, interval: interval, cancel: make(map[string]context.CancelFunc)}
}

// Start begins periodic system_metrics broadcasting for a session. A
// second Start for the same session while one is already running is a
// no-op.
func (b *Broadcaster) Start(ctx context.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, running := b.cancel[sessionID]; running {
		return
	}
	taskCtx, cancel := context.WithCancel(ctx)
	b.cancel[sessionID] = cancel
	go b.run(taskCtx, sessionID)
}

// Stop ends broadcasting for a session. Idempotent.
func (b *Broadcaster) Stop(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.cancel[sessionID]; ok {
		cancel()
		delete(b.cancel, sessionID)
	}
	activeConnections.DeleteLabelValues(sessionID)
	averageLatencyMs.DeleteLabelValues(sessionID)
}

func (b *Broadcaster) run(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sampleAndBroadcast(ctx, sessionID)
		}
	}
}

func (b *Broadcaster) sampleAndBroadcast(ctx context.Context, sessionID string) {
	conns := b.router.ConnectionCount(sessionID)
	latency := b.router.AverageLatencyMs(sessionID)
	cpuPct := b.cpu.sample()
	memPct := memoryUsagePercent()

	activeConnections.WithLabelValues(sessionID).Set(float64(conns))
	averageLatencyMs.WithLabelValues(sessionID).Set(latency)
	processCPUUsage.Set(cpuPct)
	processMemoryUsage.Set(memPct)

	payload := wsproto.SystemMetricsPayload{
		ActiveConnections: conns, AverageLatency: latency, CPUUsage: cpuPct, MemoryUsage: memPct,
	}
	if err := b.router.PublishController(ctx, sessionID, wsproto.Event{Event: wsproto.EventSystemMetrics, Payload: payload}); err != nil {
		b.log.Warn("system_metrics broadcast failed", zap.String("sessionId", sessionID), zap.Error(err))
		return
	}
	broadcastsTotal.WithLabelValues(sessionID).Inc()
}

// memoryUsagePercent normalizes heap allocation against memory reserved
// from the OS, avoiding a dependency on a configured container limit.
func memoryUsagePercent() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.Sys == 0 {
		return 0
	}
	pct := float64(ms.Alloc) / float64(ms.Sys) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// cpuSampler measures process CPU utilization between successive calls
// to sample using the process's own rusage counters (user+system time),
// avoiding a gopsutil-style external dependency.
type cpuSampler struct {
	mu       sync.Mutex
	lastWall time.Time
	lastCPU  time.Duration
}

func (c *cpuSampler) sample() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cpu := processCPUTime()

	if c.lastWall.IsZero() {
		c.lastWall, c.lastCPU = now, cpu
		return 0
	}

	wallDelta := now.Sub(c.lastWall)
	cpuDelta := cpu - c.lastCPU
	c.lastWall, c.lastCPU = now, cpu

	if wallDelta <= 0 {
		return 0
	}
	pct := cpuDelta.Seconds() / wallDelta.Seconds() / float64(runtime.NumCPU()) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

func processCPUTime() time.Duration {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return user + sys
}
