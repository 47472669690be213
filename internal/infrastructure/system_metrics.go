package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics records Go runtime health for long-lived scheduled runs.
type RuntimeMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcPause         metric.Float64Histogram
	processUptime   metric.Float64Gauge
}

// NewRuntimeMetrics creates a runtime metrics recorder
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	memoryUsage, err := meter.Int64Gauge(
		"system_memory_usage_bytes",
		metric.WithDescription("Memory usage in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memorySystem, err := meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcPause, err := meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	processUptime, err := meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		goRoutines:    goRoutines,
		memoryUsage:   memoryUsage,
		memorySystem:  memorySystem,
		gcPause:       gcPause,
		processUptime: processUptime,
	}, nil
}

// RuntimeStats holds one sample of runtime statistics
type RuntimeStats struct {
	GoRoutines    int64
	MemoryUsage   int64
	MemorySystem  int64
	GCCount       uint32
	LastGCPause   time.Duration
	ProcessUptime time.Duration
	Timestamp     time.Time
}

// Collect samples and records runtime metrics
func (rm *RuntimeMetrics) Collect(ctx context.Context, startTime time.Time) *RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &RuntimeStats{
		GoRoutines:    int64(runtime.NumGoroutine()),
		MemoryUsage:   int64(memStats.Alloc),
		MemorySystem:  int64(memStats.Sys),
		GCCount:       memStats.NumGC,
		LastGCPause:   time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256]),
		ProcessUptime: time.Since(startTime),
		Timestamp:     time.Now(),
	}

	rm.goRoutines.Record(ctx, stats.GoRoutines)
	rm.memoryUsage.Record(ctx, stats.MemoryUsage)
	rm.memorySystem.Record(ctx, stats.MemorySystem)
	rm.processUptime.Record(ctx, stats.ProcessUptime.Seconds())

	if stats.LastGCPause > 0 {
		rm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}

	return stats
}

// RuntimeMetricsCollector manages periodic runtime metrics collection
type RuntimeMetricsCollector struct {
	metrics   *RuntimeMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewRuntimeMetricsCollector creates a new runtime metrics collector
func NewRuntimeMetricsCollector(meter metric.Meter, interval time.Duration) (*RuntimeMetricsCollector, error) {
	metrics, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	return &RuntimeMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins periodic metrics collection and blocks until stopped
func (c *RuntimeMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.metrics.Collect(ctx, c.startTime)

	for {
		select {
		case <-ticker.C:
			c.metrics.Collect(ctx, c.startTime)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collection
func (c *RuntimeMetricsCollector) Stop() {
	close(c.stopCh)
}

// GetCurrentStats returns the current runtime statistics
func (c *RuntimeMetricsCollector) GetCurrentStats(ctx context.Context) *RuntimeStats {
	return c.metrics.Collect(ctx, c.startTime)
}
