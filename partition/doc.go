// Package partition implements the row partitions of the virtual-table
// engine: ordered, growable record sequences keyed by grouping key, each with
// its own fetch state, optional sort order and local auto-filter.
//
// A partition owns local row order only. The mapping from local rows to the
// table's logical rows lives in package rowmap and is maintained by the
// compound view; partitions never see logical indices.
package partition
