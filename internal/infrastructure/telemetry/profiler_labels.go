package telemetry

import (
	"context"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys attached to cart work
const (
	ProfilingLabelBackend   = "cart_backend"
	ProfilingLabelOperation = "cart_operation"
)

// WithCartProfilingLabels runs fn with pprof labels naming the cart backend
// and operation, so profiles can be sliced per operation and merge cost
// stands out. Labels never carry user or item ids.
func WithCartProfilingLabels(ctx context.Context, backend, operation string, fn func(context.Context)) {
	var pairs []string
	if backend != "" {
		pairs = append(pairs, ProfilingLabelBackend, backend)
	}
	if operation != "" {
		pairs = append(pairs, ProfilingLabelOperation, operation)
	}
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}
