package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricStrategyBuildsTotal = "leverage_builder_strategy_builds_total"
	MetricStrategyFailedTotal = "leverage_builder_strategy_failed_total"
	MetricFindingsTotal       = "leverage_builder_validation_findings_total"
	MetricLatencyQuote        = "leverage_builder_latency_quote_ms"
	MetricLatencyStateRead    = "leverage_builder_latency_state_read_ms"
	MetricOperationActions    = "leverage_builder_operation_actions"
)

// MetricsHolder holds initialized instruments. Recording before InitMetrics is a no-op.
type MetricsHolder struct {
	StrategyBuildsTotal metric.Int64Counter
	StrategyFailedTotal metric.Int64Counter
	FindingsTotal       metric.Int64Counter
	LatencyQuote        metric.Float64Histogram
	LatencyStateRead    metric.Float64Histogram
	OperationActions    metric.Int64Histogram

	mu          sync.RWMutex
	initialized bool
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error

	m.StrategyBuildsTotal, err = meter.Int64Counter(MetricStrategyBuildsTotal, metric.WithDescription("Strategy results built"))
	if err != nil {
		return err
	}

	m.StrategyFailedTotal, err = meter.Int64Counter(MetricStrategyFailedTotal, metric.WithDescription("Strategy calls that returned an error"))
	if err != nil {
		return err
	}

	m.FindingsTotal, err = meter.Int64Counter(MetricFindingsTotal, metric.WithDescription("Validation findings by kind and severity"))
	if err != nil {
		return err
	}

	m.LatencyQuote, err = meter.Float64Histogram(MetricLatencyQuote, metric.WithDescription("Latency of swap quote requests"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.LatencyStateRead, err = meter.Float64Histogram(MetricLatencyStateRead, metric.WithDescription("Latency of on-chain position reads"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.OperationActions, err = meter.Int64Histogram(MetricOperationActions, metric.WithDescription("Top level slots per assembled operation"))
	if err != nil {
		return err
	}

	m.initialized = true
	return nil
}

func (m *MetricsHolder) ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// RecordBuild counts a built strategy result
func (m *MetricsHolder) RecordBuild(ctx context.Context, protocol, intent string, actions int) {
	if !m.ready() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("protocol", protocol), attribute.String("intent", intent))
	m.StrategyBuildsTotal.Add(ctx, 1, attrs)
	m.OperationActions.Record(ctx, int64(actions), attrs)
}

// RecordFailure counts a strategy call that failed
func (m *MetricsHolder) RecordFailure(ctx context.Context, protocol, intent string) {
	if !m.ready() {
		return
	}
	m.StrategyFailedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("protocol", protocol), attribute.String("intent", intent)))
}

// RecordFinding counts one validation finding
func (m *MetricsHolder) RecordFinding(ctx context.Context, kind, severity string) {
	if !m.ready() {
		return
	}
	m.FindingsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("severity", severity)))
}

// RecordQuoteLatency records a quote round trip
func (m *MetricsHolder) RecordQuoteLatency(ctx context.Context, ms float64, source string) {
	if !m.ready() {
		return
	}
	m.LatencyQuote.Record(ctx, ms, metric.WithAttributes(attribute.String("source", source)))
}

// RecordStateReadLatency records a position read
func (m *MetricsHolder) RecordStateReadLatency(ctx context.Context, ms float64, protocol string) {
	if !m.ready() {
		return
	}
	m.LatencyStateRead.Record(ctx, ms, metric.WithAttributes(attribute.String("protocol", protocol)))
}
