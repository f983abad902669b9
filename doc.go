// Package vtab implements a compound virtual-table engine: many independently
// loaded, independently filtered row partitions presented as one logically
// contiguous, randomly addressable table.
//
// The engine maintains a bijection between a single global row index and
// (partition, local-row) pairs while partitions are lazily fetched, inserted
// in sorted or unsorted order, filtered in and out dynamically, and mutated by
// UI-driven edits. It never talks to storage directly; it receives already
// fetched record batches and forwards edit intents to a Storage collaborator.
//
// # Quick start
//
//	schema := record.Schema{
//	    GroupKey: func(r record.Record) string { return r.Get("class").StringValue() },
//	    ID:       func(r record.Record) string { return r.Get("id").StringValue() },
//	    Fields:   []string{"id", "class", "name"},
//	    Default:  record.Record{"name": record.Null()},
//	}
//
//	view := vtab.New(schema, store, vtab.WithTrailingRow())
//	view.ReceiveRecordsAdded("wall", batch)
//
//	for row := 0; row < view.RowCount(); row++ {
//	    v, _ := view.Cell(row, "name")
//	    ...
//	}
//
// # Model
//
// A consumer addresses the table exclusively through logical rows. The view
// owns an ordered set of partitions, one per grouping key, and a row map
// translating logical rows to and from (partition, local-row) pairs. Each
// partition's contribution to the logical sequence is contiguous; partitions
// are never interleaved row by row.
//
// The engine is single-threaded by contract: it is designed to live on a UI
// event loop, and none of its methods may be called concurrently. Fetches may
// be asynchronous on the storage side; their results re-enter the engine
// through ReceiveRecordsAdded on the same loop.
//
// # Filtering
//
// Two predicate layers exist. The compound filter decides which whole
// partitions are in scope and pushes record-level predicates down to the
// partitions; a partition's auto-filter decides per-record visibility.
// Compound filter changes are debounced: rapid successive SetCompoundFilter
// calls coalesce into a single rebuild of the last state once the debounce
// interval has passed (see Tick and PendingRebuildAt).
package vtab
