package vtab

import (
	"context"
	"slices"
	"sort"

	"github.com/hupe1980/vtab/partition"
	"github.com/hupe1980/vtab/record"
)

// CellEdit is one intended cell change, addressed by logical row and field.
type CellEdit struct {
	Row   int
	Field string
	Value record.Value
}

// PartitionOutcome is the result of forwarding one partition's edit batch to
// the storage collaborator. Outcomes are independent: one partition's
// rejection does not roll back another's applied edits.
type PartitionOutcome struct {
	// Key is the partition's grouping key.
	Key string

	// Rows are the logical rows edited in this partition.
	Rows []int

	// Err is nil on success, or a *StorageError when the collaborator
	// rejected or failed the batch. On failure none of this partition's
	// edits were applied.
	Err error
}

// EditResult reports the per-partition and per-row outcomes of a SetCells
// call.
type EditResult struct {
	// Outcomes holds one entry per partition that had edits forwarded.
	Outcomes []PartitionOutcome

	// Rejected lists rows that failed partition-level validation. Rejected
	// rows were excluded from their partition's batch and remain editable.
	Rejected []*ValidationError
}

// Ok reports whether every edit was applied.
func (r *EditResult) Ok() bool {
	if len(r.Rejected) > 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// editGroup accumulates one partition's pending edits.
type editGroup struct {
	part    *partition.Partition
	locals  []int                 // in first-edit order
	rows    map[int]int           // local -> logical row
	updated map[int]record.Record // local -> edited record
	fields  map[string]struct{}
}

// SetCells applies a batch of cell edits. Edits are grouped by target
// partition, validated, forwarded to the storage collaborator per partition,
// and applied in memory only after the collaborator confirms them. The
// trailing partition's speculative rows have no storage identity and are
// edited directly.
//
// An out-of-range row aborts the whole call with no mutation. All other
// failures are partial: each partition's outcome is reported separately in
// the EditResult.
func (v *CompoundView) SetCells(ctx context.Context, edits []CellEdit) (*EditResult, error) {
	v.Tick()
	res := &EditResult{}
	if len(edits) == 0 {
		return res, nil
	}
	start := v.clock.Now()

	groups, order, err := v.groupEdits(edits)
	if err != nil {
		return nil, err
	}

	// Validation first: rejected rows never reach storage.
	failed := 0
	for _, g := range groups {
		kept := g.locals[:0]
		for _, local := range g.locals {
			verr := g.part.Validate(g.updated[local])
			if verr == nil {
				kept = append(kept, local)
				continue
			}
			failed++
			res.Rejected = append(res.Rejected, &ValidationError{
				Row:    g.rows[local],
				Fields: editedFields(edits, g.rows[local]),
				cause:  verr,
			})
		}
		g.locals = kept
	}

	minRow, maxRow := -1, -1
	fields := make(map[string]struct{})
	touchedTrailing := false

	for _, g := range order {
		if len(g.locals) == 0 {
			continue
		}

		outcome := PartitionOutcome{Key: g.part.Key()}
		for _, local := range g.locals {
			outcome.Rows = append(outcome.Rows, g.rows[local])
		}

		applied, err := v.forwardEdits(ctx, g)
		if err != nil {
			outcome.Err = err
			failed += len(g.locals)
			res.Outcomes = append(res.Outcomes, outcome)
			continue
		}

		for i, local := range g.locals {
			if uerr := g.part.Update(local, applied[i]); uerr != nil {
				v.logger.WithPartition(g.part.Key()).WithRow(g.rows[local]).Error("edit apply failed", "error", uerr)
				continue
			}
			row := g.rows[local]
			if minRow < 0 || row < minRow {
				minRow = row
			}
			if row > maxRow {
				maxRow = row
			}
		}
		for f := range g.fields {
			fields[f] = struct{}{}
		}
		if g.part.Immortal() {
			touchedTrailing = true
		}
		res.Outcomes = append(res.Outcomes, outcome)
	}

	if touchedTrailing {
		before := v.rm.Len()
		v.ensureTrailingDefault()
		if v.rm.Len() != before {
			v.notifier.RowCountChanged(v.rm.Len())
		}
	}
	if minRow >= 0 {
		v.notifier.CellsChanged(minRow, maxRow+1, sortedFields(fields))
	}
	v.metrics.RecordEdit(len(edits), failed, v.clock.Now().Sub(start))
	return res, nil
}

// groupEdits resolves and groups edits by target partition, building the
// edited record clones. Multiple edits to the same row accumulate on one
// clone. Resolution failures abort before any mutation.
func (v *CompoundView) groupEdits(edits []CellEdit) (map[*partition.Partition]*editGroup, []*editGroup, error) {
	groups := make(map[*partition.Partition]*editGroup)
	var order []*editGroup

	for _, e := range edits {
		ent, err := v.rm.At(e.Row)
		if err != nil {
			return nil, nil, err
		}

		g, ok := groups[ent.Part]
		if !ok {
			g = &editGroup{
				part:    ent.Part,
				rows:    make(map[int]int),
				updated: make(map[int]record.Record),
				fields:  make(map[string]struct{}),
			}
			groups[ent.Part] = g
			order = append(order, g)
		}

		rec, ok := g.updated[ent.Local]
		if !ok {
			orig, err := ent.Part.Record(ent.Local)
			if err != nil {
				return nil, nil, err
			}
			rec = orig.Clone()
			g.updated[ent.Local] = rec
			g.rows[ent.Local] = e.Row
			g.locals = append(g.locals, ent.Local)
		}
		rec.Set(e.Field, e.Value)
		g.fields[e.Field] = struct{}{}
	}
	return groups, order, nil
}

// forwardEdits sends one partition's batch to storage and returns the records
// as applied. Trailing-partition rows and storage-less views apply as-is.
func (v *CompoundView) forwardEdits(ctx context.Context, g *editGroup) ([]record.Record, error) {
	recs := make([]record.Record, len(g.locals))
	for i, local := range g.locals {
		recs[i] = g.updated[local]
	}

	if v.storage == nil || g.part.Immortal() {
		return recs, nil
	}

	applied, err := v.storage.RequestUpdate(ctx, g.part.Key(), recs)
	if err != nil {
		return nil, &StorageError{Key: g.part.Key(), Op: "update", cause: err}
	}
	if len(applied) != len(recs) {
		// Collaborators returning nothing mean "applied as sent".
		return recs, nil
	}
	return applied, nil
}

// editedFields returns the distinct fields edited on a row, in edit order.
func editedFields(edits []CellEdit, row int) []string {
	var fields []string
	for _, e := range edits {
		if e.Row == row && !slices.Contains(fields, e.Field) {
			fields = append(fields, e.Field)
		}
	}
	return fields
}

func sortedFields(set map[string]struct{}) []string {
	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
