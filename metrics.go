package vtab

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordRebuild is called after each full row-map rebuild.
	// rows is the resulting visible row count, duration the time taken.
	RecordRebuild(rows int, duration time.Duration)

	// RecordPatchInsert is called after each incremental insert patch.
	// rows is the number of newly visible rows.
	RecordPatchInsert(rows int)

	// RecordPatchRemove is called after each incremental remove patch.
	// rows is the number of visible rows removed.
	RecordPatchRemove(rows int)

	// RecordFetch is called after each fetch-more attempt.
	// appended is the number of records appended synchronously
	// (0 for pending asynchronous fetches), err is nil if successful.
	RecordFetch(appended int, duration time.Duration, err error)

	// RecordEdit is called after each SetCells call.
	// cells is the number of cell edits attempted, failed the number rejected
	// by validation or storage.
	RecordEdit(cells, failed int, duration time.Duration)

	// RecordFilterCoalesced is called when a pending debounced filter state
	// is superseded by a newer one before it was applied.
	RecordFilterCoalesced()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRebuild(int, time.Duration)      {}
func (NoopMetricsCollector) RecordPatchInsert(int)                 {}
func (NoopMetricsCollector) RecordPatchRemove(int)                 {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordEdit(int, int, time.Duration)    {}
func (NoopMetricsCollector) RecordFilterCoalesced()                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RebuildCount      atomic.Int64
	RebuildTotalNanos atomic.Int64
	PatchInsertCount  atomic.Int64
	PatchInsertRows   atomic.Int64
	PatchRemoveCount  atomic.Int64
	PatchRemoveRows   atomic.Int64
	FetchCount        atomic.Int64
	FetchErrors       atomic.Int64
	FetchAppended     atomic.Int64
	EditCount         atomic.Int64
	EditCells         atomic.Int64
	EditFailed        atomic.Int64
	FilterCoalesced   atomic.Int64
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(rows int, duration time.Duration) {
	b.RebuildCount.Add(1)
	b.RebuildTotalNanos.Add(duration.Nanoseconds())
}

// RecordPatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPatchInsert(rows int) {
	b.PatchInsertCount.Add(1)
	b.PatchInsertRows.Add(int64(rows))
}

// RecordPatchRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPatchRemove(rows int) {
	b.PatchRemoveCount.Add(1)
	b.PatchRemoveRows.Add(int64(rows))
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(appended int, duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchAppended.Add(int64(appended))
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordEdit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEdit(cells, failed int, duration time.Duration) {
	b.EditCount.Add(1)
	b.EditCells.Add(int64(cells))
	b.EditFailed.Add(int64(failed))
}

// RecordFilterCoalesced implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilterCoalesced() {
	b.FilterCoalesced.Add(1)
}
