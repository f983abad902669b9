// Package rowmap maintains the bijection between the table's logical rows and
// (partition, local-row) pairs.
//
// The forward mapping is a flat slice in logical-row order; the inverse is a
// hash map for O(1) partition-row lookups. Each partition's mapped local rows
// are additionally tracked in a roaring bitmap, which is what lets the patch
// paths find splice points and renumber survivors without scanning the whole
// table.
package rowmap

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vtab/partition"
)

// Entry locates one logical row inside a partition.
type Entry struct {
	Part  *partition.Partition
	Local int
}

type key struct {
	part  *partition.Partition
	local int
}

// Map is the logical-row index. It is mutated only by the compound view that
// owns it, never by partitions.
type Map struct {
	forward []Entry
	inverse map[key]int

	// blocks tracks, per partition, which local rows are currently mapped.
	blocks map[*partition.Partition]*roaring.Bitmap
}

// New creates an empty map.
func New() *Map {
	return &Map{
		inverse: make(map[key]int),
		blocks:  make(map[*partition.Partition]*roaring.Bitmap),
	}
}

// Len returns the visible row count.
func (m *Map) Len() int { return len(m.forward) }

// At resolves a logical row to its (partition, local-row) pair.
func (m *Map) At(row int) (Entry, error) {
	if row < 0 || row >= len(m.forward) {
		return Entry{}, fmt.Errorf("rowmap: logical row %d of %d: %w", row, len(m.forward), partition.ErrIndexOutOfRange)
	}
	return m.forward[row], nil
}

// LogicalRow returns the logical row a (partition, local-row) pair is mapped
// to, if it is currently visible.
func (m *Map) LogicalRow(p *partition.Partition, local int) (int, bool) {
	row, ok := m.inverse[key{p, local}]
	return row, ok
}

// Mapped reports whether the partition currently contributes any rows.
func (m *Map) Mapped(p *partition.Partition) bool {
	blk, ok := m.blocks[p]
	return ok && !blk.IsEmpty()
}

// Rebuild recomputes the map from scratch: for each accepted partition in
// order, every visible local row is appended. O(total visible rows).
func (m *Map) Rebuild(parts []*partition.Partition, accept func(*partition.Partition) bool) {
	m.forward = m.forward[:0]
	clear(m.inverse)
	clear(m.blocks)

	for _, p := range parts {
		if accept != nil && !accept(p) {
			continue
		}
		blk := roaring.New()
		for local := range p.VisibleLocalRows() {
			m.inverse[key{p, local}] = len(m.forward)
			m.forward = append(m.forward, Entry{Part: p, Local: local})
			blk.AddInt(local)
		}
		if !blk.IsEmpty() {
			m.blocks[p] = blk
		}
	}
}

// PatchInsert splices in rows the partition gained at local range
// [from, from+count), without a full rebuild. The partition must already hold
// the new rows; order is the view's current partition order, used only when
// the partition had no mapped rows yet.
//
// The forward splice and inverse renumbering are O(inserted + shifted): only
// entries at or after the splice point are touched.
//
// It returns the logical range [rowFrom, rowFrom+n) of newly visible rows;
// n is 0 when every inserted row is filtered out (the renumbering of the
// partition's subsequent local rows still happens).
func (m *Map) PatchInsert(order []*partition.Partition, p *partition.Partition, from, count int) (rowFrom, n int) {
	if count <= 0 {
		return 0, 0
	}

	blk, ok := m.blocks[p]
	if !ok {
		blk = roaring.New()
		m.blocks[p] = blk
	}

	// Local rows the partition already had at or after the insertion point.
	// They keep their relative order but their local index grows by count.
	var tail []uint32
	it := blk.Iterator()
	it.AdvanceIfNeeded(uint32(from))
	for it.HasNext() {
		tail = append(tail, it.Next())
	}

	insertAt := m.spliceRow(order, p, blk, tail)

	// Which of the new rows are visible under the partition's auto-filter.
	var visible []int
	for local := from; local < from+count; local++ {
		if p.Visible(local) {
			visible = append(visible, local)
		}
	}

	// Drop stale keys before any re-keying; old and new tail keys may overlap.
	for _, l := range tail {
		delete(m.inverse, key{p, int(l)})
		blk.Remove(l)
	}
	for i := range tail {
		m.forward[insertAt+i].Local += count
	}

	entries := make([]Entry, len(visible))
	for i, local := range visible {
		entries[i] = Entry{Part: p, Local: local}
		blk.AddInt(local)
	}
	m.forward = slices.Insert(m.forward, insertAt, entries...)

	for _, l := range tail {
		blk.Add(l + uint32(count))
	}
	m.renumberFrom(insertAt)

	return insertAt, len(visible)
}

// spliceRow computes the logical insertion point: the logical row of the
// partition's first surviving row after the inserted range, else the row just
// after the partition's last mapped row, else the start of the next mapped
// partition, else end of map.
func (m *Map) spliceRow(order []*partition.Partition, p *partition.Partition, blk *roaring.Bitmap, tail []uint32) int {
	if len(tail) > 0 {
		return m.inverse[key{p, int(tail[0])}]
	}
	if !blk.IsEmpty() {
		return m.inverse[key{p, int(blk.Maximum())}] + 1
	}

	after := false
	for _, q := range order {
		if q == p {
			after = true
			continue
		}
		if !after {
			continue
		}
		if qblk, ok := m.blocks[q]; ok && !qblk.IsEmpty() {
			return m.inverse[key{q, int(qblk.Minimum())}]
		}
	}
	return len(m.forward)
}

// PatchRemove deletes entries for local rows removed from the partition and
// renumbers the partition's surviving higher rows. locals uses the local
// numbering in effect before the partition's own Remove ran.
//
// Removing rows that contributed nothing (already filtered out, or the
// partition was never mapped) is a no-op for the logical row sequence; only
// the survivors' local keys are re-based.
//
// It returns the logical range [rowFrom, rowFrom+n) the removed visible rows
// occupied; n is 0 for a pure no-op.
func (m *Map) PatchRemove(p *partition.Partition, locals *roaring.Bitmap) (rowFrom, n int) {
	blk, ok := m.blocks[p]
	if !ok || locals == nil || locals.IsEmpty() {
		return 0, 0
	}

	// Everything at or above the smallest removed local is affected: removed
	// entries leave the map, survivors shift down by the number of removed
	// locals below them.
	minRemoved := locals.Minimum()
	var tail []uint32
	it := blk.Iterator()
	it.AdvanceIfNeeded(minRemoved)
	for it.HasNext() {
		tail = append(tail, it.Next())
	}
	if len(tail) == 0 {
		return 0, 0
	}

	segStart := m.inverse[key{p, int(tail[0])}]

	for _, l := range tail {
		delete(m.inverse, key{p, int(l)})
		blk.Remove(l)
	}

	kept := make([]Entry, 0, len(tail))
	dropped := 0
	for _, l := range tail {
		if locals.Contains(l) {
			dropped++
			continue
		}
		// Rank counts removed locals <= l; l itself is not removed.
		newLocal := int(l) - int(locals.Rank(l))
		kept = append(kept, Entry{Part: p, Local: newLocal})
		blk.AddInt(newLocal)
	}

	m.forward = slices.Delete(m.forward, segStart, segStart+len(tail))
	m.forward = slices.Insert(m.forward, segStart, kept...)
	m.renumberFrom(segStart)

	if blk.IsEmpty() {
		delete(m.blocks, p)
	}
	return segStart, dropped
}

// RemovePartition drops every entry of the partition, typically because the
// compound filter now excludes it or the partition itself was emptied.
//
// It returns the logical range [rowFrom, rowFrom+n) the partition occupied.
func (m *Map) RemovePartition(p *partition.Partition) (rowFrom, n int) {
	blk, ok := m.blocks[p]
	if !ok || blk.IsEmpty() {
		delete(m.blocks, p)
		return 0, 0
	}

	segStart := m.inverse[key{p, int(blk.Minimum())}]
	segLen := int(blk.GetCardinality())

	it := blk.Iterator()
	for it.HasNext() {
		delete(m.inverse, key{p, int(it.Next())})
	}
	delete(m.blocks, p)

	m.forward = slices.Delete(m.forward, segStart, segStart+segLen)
	m.renumberFrom(segStart)
	return segStart, segLen
}

func (m *Map) renumberFrom(row int) {
	for i := row; i < len(m.forward); i++ {
		e := m.forward[i]
		m.inverse[key{e.Part, e.Local}] = i
	}
}

// Check verifies the forward/inverse bijection. A non-nil error is an
// internal fault; the owning view reacts with a self-healing full rebuild.
func (m *Map) Check() error {
	if len(m.forward) != len(m.inverse) {
		return fmt.Errorf("rowmap: forward has %d entries, inverse has %d", len(m.forward), len(m.inverse))
	}
	for i, e := range m.forward {
		if got, ok := m.inverse[key{e.Part, e.Local}]; !ok || got != i {
			return fmt.Errorf("rowmap: inverse of (%s, %d) is %d, want %d", e.Part.Key(), e.Local, got, i)
		}
	}
	return nil
}
