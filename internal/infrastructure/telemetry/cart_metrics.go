package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Merge line outcomes
const (
	MergeOutcomeMerged  = "merged"
	MergeOutcomeSkipped = "skipped"
)

// CartMetrics tracks cart operations, merge outcomes and backend latency.
// A nil *CartMetrics is valid and records nothing.
type CartMetrics struct {
	operationsTotal *Counter
	mergeLinesTotal *Counter
	backendDuration *Histogram
}

// NewCartMetrics registers the cart instruments on meter
func NewCartMetrics(meter metric.Meter) (*CartMetrics, error) {
	if meter == nil {
		return nil, &MetricsError{Op: "NewCartMetrics", Err: "meter cannot be nil"}
	}

	var (
		cm  CartMetrics
		err error
	)

	cm.operationsTotal, err = NewCounter(meter,
		"cart_operations_total",
		"Total number of cart operations by backend, operation and outcome",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	cm.mergeLinesTotal, err = NewCounter(meter,
		"cart_merge_lines_total",
		"Anonymous cart lines processed during merge",
		"{lines}",
	)
	if err != nil {
		return nil, err
	}

	cm.backendDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "cart_backend_duration_seconds",
		Description: "Duration of authenticated cart store calls",
		Unit:        "s",
		Boundaries:  BackendDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &cm, nil
}

// RecordOperation counts one cart service operation
func (m *CartMetrics) RecordOperation(ctx context.Context, backend, op, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.Inc(ctx,
		AttrCartBackend.String(backend),
		AttrCartOperation.String(op),
		AttrOutcome.String(outcome),
	)
}

// RecordMergeLine counts one merged or skipped anonymous line
func (m *CartMetrics) RecordMergeLine(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.mergeLinesTotal.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordBackendDuration observes one store call
func (m *CartMetrics) RecordBackendDuration(ctx context.Context, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backendDuration.RecordDuration(ctx, d,
		AttrCartOperation.String(op),
		AttrOutcome.String(outcome),
	)
}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
