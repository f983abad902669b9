package vtab

import (
	"context"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vtab/fetch"
	"github.com/hupe1980/vtab/partition"
	"github.com/hupe1980/vtab/record"
	"github.com/hupe1980/vtab/rowmap"
)

// CompoundView presents a set of partitions as one logical table. It owns its
// partitions and its row map exclusively; lifetime ends when the view is
// dropped.
//
// All methods must be called from a single goroutine, typically a UI event
// loop. Invariants hold at operation boundaries, never mid-operation.
type CompoundView struct {
	schema  record.Schema
	storage Storage

	logger   *Logger
	metrics  MetricsCollector
	notifier Notifier
	clock    Clock
	governor *fetch.Governor

	parts    []*partition.Partition
	byKey    map[string]*partition.Partition
	trailing *partition.Trailing
	rm       *rowmap.Map
	cursors  map[string]Cursor

	partitionOpts func(key string) []partition.Option

	filter    CompoundFilter
	pending   *CompoundFilter
	pendingAt time.Time
	debounce  time.Duration
}

// New creates an empty compound view over the given schema and storage
// collaborator. storage may be nil for purely in-memory tables; SetCells then
// applies edits directly and FetchMore is a no-op.
func New(schema record.Schema, storage Storage, optFns ...Option) *CompoundView {
	opts := applyOptions(optFns)

	v := &CompoundView{
		schema:        schema,
		storage:       storage,
		logger:        opts.logger,
		metrics:       opts.metrics,
		notifier:      opts.notifier,
		clock:         opts.clock,
		governor:      opts.governor,
		byKey:         make(map[string]*partition.Partition),
		rm:            rowmap.New(),
		cursors:       make(map[string]Cursor),
		partitionOpts: opts.partitionOpts,
		debounce:      opts.debounce,
	}

	if opts.trailing {
		v.trailing = partition.NewTrailing(schema)
		v.parts = append(v.parts, v.trailing.Partition)
		v.rebuild()
	}
	return v
}

// RowCount returns the current visible row count.
func (v *CompoundView) RowCount() int { return v.rm.Len() }

// Cell resolves a logical row and returns the given field of its record.
func (v *CompoundView) Cell(row int, field string) (record.Value, error) {
	e, err := v.rm.At(row)
	if err != nil {
		return record.Value{}, err
	}
	rec, err := e.Part.Record(e.Local)
	if err != nil {
		return record.Value{}, err
	}
	return rec.Get(field), nil
}

// RowRecord returns a copy of the record behind a logical row.
func (v *CompoundView) RowRecord(row int) (record.Record, error) {
	e, err := v.rm.At(row)
	if err != nil {
		return nil, err
	}
	rec, err := e.Part.Record(e.Local)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// HasPartition reports whether a live partition exists for the grouping key.
func (v *CompoundView) HasPartition(key string) bool {
	_, ok := v.byKey[key]
	return ok
}

// PartitionKeys returns the grouping keys of live partitions, in partition
// order. The trailing empty partition is not included.
func (v *CompoundView) PartitionKeys() []string {
	keys := make([]string, 0, len(v.parts))
	for _, p := range v.parts {
		if p.Immortal() {
			continue
		}
		keys = append(keys, p.Key())
	}
	return keys
}

// SubmittedRows returns the trailing partition's rows as an accepted edit
// session submits them: every row except the final always-default one.
// Without a trailing partition it returns nil.
func (v *CompoundView) SubmittedRows() []record.Record {
	if v.trailing == nil {
		return nil
	}
	return v.trailing.SubmittedRows()
}

// CheckInvariants verifies the forward/inverse row-map bijection.
func (v *CompoundView) CheckInvariants() error { return v.rm.Check() }

// SetCompoundFilter stores a new filter state and schedules a debounced
// rebuild. A newer call supersedes a pending one; only the last state before
// the debounce window closes is applied, once.
func (v *CompoundView) SetCompoundFilter(f CompoundFilter) {
	if v.debounce <= 0 {
		v.filter = f
		v.applyFilter()
		return
	}

	if v.pending != nil {
		v.metrics.RecordFilterCoalesced()
	}
	v.pending = &f
	v.pendingAt = v.clock.Now().Add(v.debounce)
}

// Dirty reports whether a filter change is pending application.
func (v *CompoundView) Dirty() bool { return v.pending != nil }

// PendingRebuildAt returns the deadline of the pending debounced rebuild, if
// any. The host event loop can use it to schedule a Tick.
func (v *CompoundView) PendingRebuildAt() (time.Time, bool) {
	if v.pending == nil {
		return time.Time{}, false
	}
	return v.pendingAt, true
}

// Tick applies a pending filter state whose debounce deadline has passed.
// Mutating operations call it implicitly; the host loop should also call it
// at the time reported by PendingRebuildAt so a quiet view still rebuilds.
func (v *CompoundView) Tick() {
	if v.pending == nil || v.clock.Now().Before(v.pendingAt) {
		return
	}
	v.filter = *v.pending
	v.pending = nil
	v.applyFilter()
}

func (v *CompoundView) applyFilter() {
	for _, p := range v.parts {
		if p.Immortal() {
			// Trailing rows stay visible for entry regardless of filter.
			continue
		}
		p.SetAutoFilter(v.filter.Records)
	}
	v.rebuild()
	v.notifier.FilterApplied()
	v.notifier.RowCountChanged(v.rm.Len())
}

func (v *CompoundView) rebuild() {
	start := v.clock.Now()
	v.rm.Rebuild(v.parts, v.filter.AcceptsPartition)
	v.metrics.RecordRebuild(v.rm.Len(), v.clock.Now().Sub(start))
	v.logger.LogRebuild(v.rm.Len(), len(v.parts))
}

// patched runs an incremental row-map mutation. A panic inside the patch is
// an internal fault: the map is declared suspect and fully rebuilt, so the
// consumer never observes a partially patched table.
func (v *CompoundView) patched(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.LogPatchFallback(r)
			v.rebuild()
			v.notifier.FilterApplied()
		}
	}()
	fn()
}

func (v *CompoundView) accepts(p *partition.Partition) bool {
	return v.filter.AcceptsPartition(p)
}

// ensurePartition returns the live partition for a grouping key, creating it
// in partition-order position (before the trailing partition) if absent.
func (v *CompoundView) ensurePartition(key string) *partition.Partition {
	if p, ok := v.byKey[key]; ok {
		return p
	}

	var opts []partition.Option
	if v.partitionOpts != nil {
		opts = v.partitionOpts(key)
	}
	p := partition.New(key, v.schema, opts...)
	p.SetAutoFilter(v.filter.Records)

	at := len(v.parts)
	if v.trailing != nil {
		at-- // trailing stays last
	}
	v.parts = slices.Insert(v.parts, at, p)
	v.byKey[key] = p
	return p
}

func (v *CompoundView) dropIfEmpty(p *partition.Partition) {
	if p.Len() > 0 || p.Immortal() {
		return
	}
	if p.FetchState() == partition.Fetching {
		// Late records for a dropped partition land in a fresh one that never
		// resolves this fetch; release the governor slot now.
		v.resolveFetch(p, false)
	}
	v.rm.RemovePartition(p)
	if i := slices.Index(v.parts, p); i >= 0 {
		v.parts = slices.Delete(v.parts, i, i+1)
	}
	delete(v.byKey, p.Key())
	delete(v.cursors, p.Key())
	v.logger.WithPartition(p.Key()).Debug("partition dropped")
}

// resolveFetch settles an outstanding asynchronous fetch on the partition and
// releases the governor slot held for it.
func (v *CompoundView) resolveFetch(p *partition.Partition, exhausted bool) {
	if p.FetchState() == partition.Fetching && v.governor != nil {
		v.governor.Done()
	}
	p.EndFetch(exhausted)
}

// ReceiveRecordsAdded routes an added-records event to the matching
// partition, creating it if absent, and patches the row map incrementally.
// Batches are applied in delivery order.
func (v *CompoundView) ReceiveRecordsAdded(key string, recs []record.Record) {
	v.Tick()
	if len(recs) == 0 {
		return
	}
	if key == partition.TrailingKey {
		v.logger.Warn("records added under reserved trailing key, ignored")
		return
	}

	p := v.ensurePartition(key)
	if p.FetchState() == partition.Fetching {
		v.resolveFetch(p, false)
	}

	before := v.rm.Len()
	v.patched(func() {
		if p.Sorted() {
			for _, rec := range recs {
				local, ok := p.InsertSorted(rec)
				if !ok {
					v.logger.WithPartition(key).Debug("duplicate record skipped")
					continue
				}
				if !v.accepts(p) {
					continue
				}
				rowFrom, n := v.rm.PatchInsert(v.parts, p, local, 1)
				v.metrics.RecordPatchInsert(n)
				if n > 0 {
					v.notifier.RowsInserted(rowFrom, rowFrom+n)
				}
			}
			return
		}

		from, n := p.Append(recs)
		if n < len(recs) {
			v.logger.WithPartition(key).Debug("duplicate records skipped",
				"skipped", len(recs)-n,
			)
		}
		if n == 0 || !v.accepts(p) {
			return
		}
		rowFrom, vis := v.rm.PatchInsert(v.parts, p, from, n)
		v.metrics.RecordPatchInsert(vis)
		if vis > 0 {
			v.notifier.RowsInserted(rowFrom, rowFrom+vis)
		}
	})
	if v.rm.Len() != before {
		v.notifier.RowCountChanged(v.rm.Len())
	}
}

// ReceiveRecordsRemoved routes a removed-records event to the owning
// partition. An unknown grouping key is a no-op: the partition may have been
// emptied and dropped in the same event cycle.
func (v *CompoundView) ReceiveRecordsRemoved(key string, ids []string) {
	v.Tick()
	p, ok := v.byKey[key]
	if !ok {
		v.logger.WithPartition(key).Debug("records removed for unknown partition",
			"error", ErrPartitionNotFound,
		)
		return
	}

	locals := p.LocalsByID(ids)
	if locals.IsEmpty() {
		return
	}
	if _, err := p.Remove(locals); err != nil {
		v.logger.WithPartition(key).Error("remove failed", "error", err)
		return
	}

	before := v.rm.Len()
	v.patched(func() {
		rowFrom, n := v.rm.PatchRemove(p, locals)
		v.metrics.RecordPatchRemove(n)
		if n > 0 {
			v.notifier.RowsRemoved(rowFrom, rowFrom+n)
		}
	})
	v.dropIfEmpty(p)
	if v.rm.Len() != before {
		v.notifier.RowCountChanged(v.rm.Len())
	}
}

// ReceiveRecordsUpdated applies in-place record updates. Row count and order
// never change; only a narrow cell-change notification is emitted.
func (v *CompoundView) ReceiveRecordsUpdated(key string, recs []record.Record) {
	v.Tick()
	p, ok := v.byKey[key]
	if !ok {
		v.logger.WithPartition(key).Debug("records updated for unknown partition",
			"error", ErrPartitionNotFound,
		)
		return
	}

	minRow, maxRow := -1, -1
	for _, rec := range recs {
		local, ok := p.LocalByID(v.schema.ID(rec))
		if !ok {
			v.logger.WithPartition(key).Debug("update for unknown record")
			continue
		}
		if err := p.Update(local, rec); err != nil {
			v.logger.WithPartition(key).Warn("update failed", "error", err)
			continue
		}
		if row, vis := v.rm.LogicalRow(p, local); vis {
			if minRow < 0 || row < minRow {
				minRow = row
			}
			if row > maxRow {
				maxRow = row
			}
		}
	}
	if minRow >= 0 {
		v.notifier.CellsChanged(minRow, maxRow+1, v.schema.Fields)
	}
}

// MarkKeyFetched records the storage collaborator's signal that a grouping
// key is exhausted: no further rows exist beyond what was delivered.
func (v *CompoundView) MarkKeyFetched(key string) {
	p, ok := v.byKey[key]
	if !ok {
		return
	}
	v.resolveFetch(p, true)
}

// CanFetchMore reports whether any partition, in partition order, may still
// have unfetched backing rows.
func (v *CompoundView) CanFetchMore() bool {
	for _, p := range v.parts {
		if p.CanFetchMore() {
			return true
		}
	}
	return false
}

// FetchMore fetches the first partition in partition order that still can and
// is not already mid-fetch. One partition per call bounds per-call latency;
// consumers invoke it repeatedly, typically on scroll.
//
// The collaborator either returns records synchronously, which are appended
// and patched in immediately, or reports the request as pending, in which
// case the records arrive later through ReceiveRecordsAdded. The engine
// never blocks the event loop waiting on I/O.
func (v *CompoundView) FetchMore(ctx context.Context) error {
	v.Tick()
	if v.storage == nil {
		return nil
	}

	var target *partition.Partition
	for _, p := range v.parts {
		// A partition mid-fetch does not block the ones after it.
		if p.CanFetchMore() && p.FetchState() != partition.Fetching {
			target = p
			break
		}
	}
	if target == nil {
		return nil
	}
	if v.governor != nil && !v.governor.Admit() {
		return nil
	}

	start := v.clock.Now()
	res, err := v.storage.RequestFetch(ctx, target.Key(), v.cursors[target.Key()])
	if err != nil {
		if v.governor != nil {
			v.governor.Done()
		}
		v.metrics.RecordFetch(0, v.clock.Now().Sub(start), err)
		return &StorageError{Key: target.Key(), Op: "fetch", cause: err}
	}

	v.cursors[target.Key()] = res.Next

	if res.Pending {
		target.BeginFetch()
		// The governor slot stays held until the records arrive.
		v.metrics.RecordFetch(0, v.clock.Now().Sub(start), nil)
		return nil
	}

	from, n := target.FetchMore(res.Records, res.Exhausted)
	if v.governor != nil {
		v.governor.Done()
	}
	v.metrics.RecordFetch(n, v.clock.Now().Sub(start), nil)

	if n == 0 || !v.accepts(target) {
		return nil
	}

	before := v.rm.Len()
	v.patched(func() {
		rowFrom, vis := v.rm.PatchInsert(v.parts, target, from, n)
		v.metrics.RecordPatchInsert(vis)
		if vis > 0 {
			v.notifier.RowsInserted(rowFrom, rowFrom+vis)
		}
	})
	if v.rm.Len() != before {
		v.notifier.RowCountChanged(v.rm.Len())
	}
	return nil
}

// InsertRows inserts count default rows. beforeRow positions them in front of
// an existing logical row; nil targets the trailing partition, or the last
// partition when no trailing partition exists.
func (v *CompoundView) InsertRows(count int, beforeRow *int) error {
	v.Tick()
	if count <= 0 {
		return nil
	}

	var p *partition.Partition
	var local int
	switch {
	case beforeRow != nil:
		e, err := v.rm.At(*beforeRow)
		if err != nil {
			return err
		}
		p, local = e.Part, e.Local
	case v.trailing != nil:
		// Keep the blank entry row last.
		p = v.trailing.Partition
		local = max(p.Len()-1, 0)
	case len(v.parts) > 0:
		p = v.parts[len(v.parts)-1]
		local = p.Len()
	default:
		return ErrPartitionNotFound
	}

	rows := make([]record.Record, count)
	for i := range rows {
		rows[i] = v.schema.DefaultRow(nil)
	}
	from, n, err := p.InsertAt(local, rows)
	if err != nil {
		return err
	}
	if n == 0 || !v.accepts(p) {
		return nil
	}

	v.patched(func() {
		rowFrom, vis := v.rm.PatchInsert(v.parts, p, from, n)
		v.metrics.RecordPatchInsert(vis)
		if vis > 0 {
			v.notifier.RowsInserted(rowFrom, rowFrom+vis)
		}
	})
	v.notifier.RowCountChanged(v.rm.Len())
	return nil
}

// RemoveRows removes the given logical rows, grouping them by owning
// partition. A partition emptied by the removal is dropped, unless immortal.
// Any out-of-range row aborts the whole operation with no mutation.
func (v *CompoundView) RemoveRows(rows []int) error {
	v.Tick()
	if len(rows) == 0 {
		return nil
	}

	groups, err := v.groupByPartition(rows)
	if err != nil {
		return err
	}

	before := v.rm.Len()
	touchedTrailing := false
	for _, p := range slices.Clone(v.parts) {
		locals, ok := groups[p]
		if !ok {
			continue
		}
		if _, err := p.Remove(locals); err != nil {
			v.logger.WithPartition(p.Key()).Error("remove failed", "error", err)
			continue
		}
		if p.Immortal() {
			touchedTrailing = true
		}
		v.patched(func() {
			rowFrom, n := v.rm.PatchRemove(p, locals)
			v.metrics.RecordPatchRemove(n)
			if n > 0 {
				v.notifier.RowsRemoved(rowFrom, rowFrom+n)
			}
		})
		v.dropIfEmpty(p)
	}

	if touchedTrailing {
		v.ensureTrailingDefault()
	}
	if v.rm.Len() != before {
		v.notifier.RowCountChanged(v.rm.Len())
	}
	return nil
}

// groupByPartition resolves logical rows to per-partition local-row sets,
// validating every row before anything mutates.
func (v *CompoundView) groupByPartition(rows []int) (map[*partition.Partition]*roaring.Bitmap, error) {
	groups := make(map[*partition.Partition]*roaring.Bitmap)
	for _, row := range rows {
		e, err := v.rm.At(row)
		if err != nil {
			return nil, err
		}
		g, ok := groups[e.Part]
		if !ok {
			g = roaring.New()
			groups[e.Part] = g
		}
		g.AddInt(e.Local)
	}
	return groups, nil
}

// ensureTrailingDefault re-establishes the trailing partition's blank final
// row and patches it into the row map.
func (v *CompoundView) ensureTrailingDefault() {
	if v.trailing == nil {
		return
	}
	local, appended := v.trailing.EnsureDefaultRow()
	if !appended {
		return
	}
	v.patched(func() {
		rowFrom, vis := v.rm.PatchInsert(v.parts, v.trailing.Partition, local, 1)
		v.metrics.RecordPatchInsert(vis)
		if vis > 0 {
			v.notifier.RowsInserted(rowFrom, rowFrom+vis)
		}
	})
}
