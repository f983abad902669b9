package vtab

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vtab/fetch"
	"github.com/hupe1980/vtab/partition"
)

// DefaultDebounceInterval is how long the view waits after the most recent
// SetCompoundFilter call before applying the filter. Filter changes are
// driven by rapid UI interactions; coalescing them avoids a full rebuild per
// checkbox toggle.
const DefaultDebounceInterval = 100 * time.Millisecond

type options struct {
	logger        *Logger
	clock         Clock
	metrics       MetricsCollector
	notifier      Notifier
	debounce      time.Duration
	governor      *fetch.Governor
	trailing      bool
	partitionOpts func(key string) []partition.Option
}

// Option configures CompoundView constructor behavior.
type Option func(*options)

// WithLogger sets the logger used by the view.
//
// If nil is passed, a default text logger is used.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NewLogger(nil)
		}
		o.logger = logger
	}
}

// WithLogLevel is a convenience that sets a default text logger at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithClock injects the clock backing the filter-change debounce.
// Tests use this to drive the debounce window deterministically.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c == nil {
			c = RealClock{}
		}
		o.clock = c
	}
}

// WithMetricsCollector sets the metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithNotifier attaches the UI consumer's change-notification sink.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n == nil {
			n = NoopNotifier{}
		}
		o.notifier = n
	}
}

// WithDebounceInterval overrides the filter-change debounce interval.
// Zero applies filter changes synchronously, with a rebuild per call.
func WithDebounceInterval(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithFetchGovernor bounds the rate and concurrency of fetch requests issued
// to the storage collaborator. Without one, every FetchMore call that finds a
// fetchable partition issues a request.
func WithFetchGovernor(g *fetch.Governor) Option {
	return func(o *options) {
		o.governor = g
	}
}

// WithTrailingRow enables the trailing empty partition: an always-present,
// always-last partition holding one perpetually blank default row for
// new-entry input. The default row comes from the schema.
func WithTrailingRow() Option {
	return func(o *options) {
		o.trailing = true
	}
}

// WithPartitionOptions supplies per-grouping-key partition configuration,
// such as sort orders and edit validators. It is consulted once per
// partition, at creation.
func WithPartitionOptions(fn func(key string) []partition.Option) Option {
	return func(o *options) {
		o.partitionOpts = fn
	}
}

func applyOptions(optFns []Option) options {
	opts := options{
		logger:   NewLogger(nil),
		clock:    RealClock{},
		metrics:  NoopMetricsCollector{},
		notifier: NoopNotifier{},
		debounce: DefaultDebounceInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}
