package vtab

import (
	"github.com/hupe1980/vtab/partition"
	"github.com/hupe1980/vtab/record"
)

// CompoundFilter scopes the table. Keys selects which whole partitions are
// visible; Records is pushed down to every visible partition as its
// auto-filter, deciding per-record visibility.
//
// The zero value accepts everything.
type CompoundFilter struct {
	// Keys is the set of visible grouping keys. nil means all partitions are
	// visible; an empty non-nil set hides every regular partition.
	Keys map[string]struct{}

	// Records filters individual records within visible partitions.
	Records *record.FilterSet
}

// AcceptsPartition reports whether the partition as a whole is in scope.
// The trailing empty partition is always in scope.
func (f CompoundFilter) AcceptsPartition(p *partition.Partition) bool {
	if p.Immortal() {
		return true
	}
	if f.Keys == nil {
		return true
	}
	_, ok := f.Keys[p.Key()]
	return ok
}

// SelectKeys builds a filter scoped to the given grouping keys.
func SelectKeys(keys ...string) CompoundFilter {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return CompoundFilter{Keys: set}
}
