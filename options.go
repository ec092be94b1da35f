package spectra

import (
	"log/slog"
	"runtime"

	"github.com/manogenome/Spectra/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	maxConcurrency   int
	controller       *resource.Controller
}

// Option configures collection construction.
type Option func(*options)

// WithLogger configures structured logging for collection operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets
// it. Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxConcurrency caps the number of storage partitions read in
// parallel. Values below 1 restore the default (GOMAXPROCS).
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithResourceController attaches a resource controller. Dispatch
// workers carry it in their context, so file-reading backends charge
// their IO against the collection's budget; unless WithMaxConcurrency
// overrides it, the controller's worker budget also caps partition
// parallelism.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o options) concurrency() int {
	if o.maxConcurrency > 0 {
		return o.maxConcurrency
	}
	if n := o.controller.Workers(); n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
