package partition

import "github.com/hupe1980/vtab/record"

// TrailingKey is the grouping key of the trailing empty partition. Records
// delivered under this key by a storage collaborator would shadow speculative
// rows, so collaborators must never use it.
const TrailingKey = "\x00trailing"

// Trailing is the always-present, always-last partition holding speculative
// new rows. It is immortal, insertion-ordered, exempt from partition-level
// compound filtering, and keeps exactly one default row at its end.
//
// Its rows carry no storage identity; identity tracking is disabled because
// several identical default rows may legitimately coexist.
type Trailing struct {
	*Partition
}

// NewTrailing creates the trailing empty partition, pre-populated with one
// default row. It never fetches; its rows exist only in memory until the
// edit session is accepted.
func NewTrailing(schema record.Schema) *Trailing {
	t := &Trailing{
		Partition: New(TrailingKey, schema, withImmortal(), withoutIdentity()),
	}
	t.MarkFetched()
	t.recs = append(t.recs, schema.DefaultRow(nil))
	return t
}

// EnsureDefaultRow re-establishes the invariant that the final row equals the
// current default row, appending one if needed. Called by the compound view
// after every edit or removal touching this partition.
//
// It compares full row contents, so an edit that merely sets one field back
// to its default never suppresses the append, and two default rows may
// legitimately coexist until accept-time cleanup.
func (t *Trailing) EnsureDefaultRow() (local int, appended bool) {
	def := t.schema.DefaultRow(nil)
	if n := len(t.recs); n > 0 && t.recs[n-1].Equal(def) {
		return -1, false
	}
	t.recs = append(t.recs, def)
	return len(t.recs) - 1, true
}

// SubmittedRows returns the rows an accepted edit session submits: every row
// except the final always-default one.
func (t *Trailing) SubmittedRows() []record.Record {
	if len(t.recs) <= 1 {
		return nil
	}
	out := make([]record.Record, len(t.recs)-1)
	for i := range out {
		out[i] = t.recs[i].Clone()
	}
	return out
}
