package partition

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vtab/record"
)

// ErrIndexOutOfRange is returned when a local row index is outside the
// partition's current bounds.
//
// This is a partition-layer sentinel used internally; the vtab package
// re-exports it as part of its public error contract. Hitting it means the
// caller presented an index the partition never produced, which is a
// programmer error, not a recoverable condition.
var ErrIndexOutOfRange = errors.New("row index out of range")

// FetchState tracks how much of a partition's backing data has been loaded.
type FetchState uint8

const (
	// Unfetched means no fetch has been issued yet beyond the initial batch.
	Unfetched FetchState = iota
	// Fetching means a fetch request is outstanding.
	Fetching
	// Fetched means the collaborator signalled exhaustion; no more rows exist.
	Fetched
)

// String implements fmt.Stringer.
func (s FetchState) String() string {
	switch s {
	case Unfetched:
		return "unfetched"
	case Fetching:
		return "fetching"
	case Fetched:
		return "fetched"
	default:
		return fmt.Sprintf("fetchstate(%d)", uint8(s))
	}
}

// LessFunc orders records for sorted partitions. Insertion is stable: a new
// record lands after existing records it compares equal to.
type LessFunc func(a, b record.Record) bool

// Validator checks an edited record before it is forwarded to storage.
// A non-nil error classifies as a validation failure: the edit is rejected,
// the row stays editable, and no row-map change occurs.
type Validator func(rec record.Record) error

// Option configures a Partition.
type Option func(*Partition)

// WithLess sets the sort order. Partitions without a LessFunc keep pure
// insertion order, which is what the trailing empty partition uses.
func WithLess(less LessFunc) Option {
	return func(p *Partition) {
		p.less = less
	}
}

// WithValidator sets the per-record edit validator.
func WithValidator(v Validator) Option {
	return func(p *Partition) {
		p.validator = v
	}
}

// withImmortal marks the partition as never dropped when emptied.
// Reserved for the trailing empty partition.
func withImmortal() Option {
	return func(p *Partition) {
		p.immortal = true
	}
}

// withoutIdentity disables duplicate-identity tracking. Reserved for the
// trailing empty partition, whose speculative rows have no storage identity
// and may repeat.
func withoutIdentity() Option {
	return func(p *Partition) {
		p.ids = nil
	}
}

// Partition is an ordered, growable sequence of records sharing one grouping
// key. Local row order is insertion order unless a LessFunc is set.
//
// A partition is exclusively owned by the compound view that created it and
// is not safe for concurrent use.
type Partition struct {
	key       string
	schema    record.Schema
	less      LessFunc
	validator Validator
	immortal  bool

	recs  []record.Record
	ids   map[string]struct{}
	state FetchState

	autoFilter *record.FilterSet
}

// New creates an empty partition for the given grouping key.
func New(key string, schema record.Schema, opts ...Option) *Partition {
	p := &Partition{
		key:    key,
		schema: schema,
		ids:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the grouping key.
func (p *Partition) Key() string { return p.key }

// Len returns the number of records, visible or not.
func (p *Partition) Len() int { return len(p.recs) }

// Immortal reports whether the partition survives being emptied.
func (p *Partition) Immortal() bool { return p.immortal }

// Sorted reports whether the partition maintains a sort order.
func (p *Partition) Sorted() bool { return p.less != nil }

// Record returns the record at the given local row.
func (p *Partition) Record(local int) (record.Record, error) {
	if local < 0 || local >= len(p.recs) {
		return nil, fmt.Errorf("partition %q: local row %d of %d: %w", p.key, local, len(p.recs), ErrIndexOutOfRange)
	}
	return p.recs[local], nil
}

// Contains reports whether a record with the given identity is present.
func (p *Partition) Contains(id string) bool {
	_, ok := p.ids[id]
	return ok
}

// filterNew drops records whose identity already exists in the partition, as
// well as duplicates within the batch itself.
func (p *Partition) filterNew(recs []record.Record) []record.Record {
	if p.ids == nil {
		return recs
	}

	fresh := recs[:0:0]
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		id := p.schema.ID(rec)
		if _, dup := p.ids[id]; dup {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh
}

// Append adds records at the end, skipping duplicate identities.
// It returns the local row range [from, from+n) actually inserted.
func (p *Partition) Append(recs []record.Record) (from, n int) {
	fresh := p.filterNew(recs)
	from = len(p.recs)
	p.recs = append(p.recs, fresh...)
	p.trackIdentities(fresh)
	return from, len(fresh)
}

// InsertAt splices records in at the given local row, skipping duplicate
// identities. at == Len() is an append.
func (p *Partition) InsertAt(at int, recs []record.Record) (from, n int, err error) {
	if at < 0 || at > len(p.recs) {
		return 0, 0, fmt.Errorf("partition %q: insert at %d of %d: %w", p.key, at, len(p.recs), ErrIndexOutOfRange)
	}

	fresh := p.filterNew(recs)
	if len(fresh) == 0 {
		return at, 0, nil
	}

	p.recs = append(p.recs, make([]record.Record, len(fresh))...)
	copy(p.recs[at+len(fresh):], p.recs[at:])
	copy(p.recs[at:], fresh)
	p.trackIdentities(fresh)
	return at, len(fresh), nil
}

func (p *Partition) trackIdentities(recs []record.Record) {
	if p.ids == nil {
		return
	}
	for _, rec := range recs {
		p.ids[p.schema.ID(rec)] = struct{}{}
	}
}

// InsertSorted places one record at its sort position via binary search.
// Equal keys insert after existing equal-key entries (stable). Without a
// LessFunc it appends.
//
// The bool result is false when the record was a duplicate and was skipped.
func (p *Partition) InsertSorted(rec record.Record) (local int, inserted bool) {
	if p.ids != nil {
		if _, dup := p.ids[p.schema.ID(rec)]; dup {
			return -1, false
		}
	}

	at := len(p.recs)
	if p.less != nil {
		at = sort.Search(len(p.recs), func(i int) bool {
			return p.less(rec, p.recs[i])
		})
	}

	p.recs = append(p.recs, nil)
	copy(p.recs[at+1:], p.recs[at:])
	p.recs[at] = rec
	p.trackIdentities([]record.Record{rec})
	return at, true
}

// Remove deletes the given local rows, preserving the relative order of
// survivors. It returns the number of rows removed.
func (p *Partition) Remove(locals *roaring.Bitmap) (int, error) {
	if locals == nil || locals.IsEmpty() {
		return 0, nil
	}
	if int(locals.Maximum()) >= len(p.recs) {
		return 0, fmt.Errorf("partition %q: remove local row %d of %d: %w", p.key, locals.Maximum(), len(p.recs), ErrIndexOutOfRange)
	}

	kept := p.recs[:0]
	removed := 0
	for i, rec := range p.recs {
		if locals.ContainsInt(i) {
			if p.ids != nil {
				delete(p.ids, p.schema.ID(rec))
			}
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	// Release the tail so removed records can be collected.
	for i := len(kept); i < len(p.recs); i++ {
		p.recs[i] = nil
	}
	p.recs = kept
	return removed, nil
}

// LocalByID resolves a single record identity to its local row.
func (p *Partition) LocalByID(id string) (int, bool) {
	if p.ids == nil {
		return 0, false
	}
	if _, ok := p.ids[id]; !ok {
		return 0, false
	}
	for i, rec := range p.recs {
		if p.schema.ID(rec) == id {
			return i, true
		}
	}
	return 0, false
}

// LocalsByID resolves record identities to local rows. Unknown identities are
// ignored; records may legitimately be removed twice across event cycles.
func (p *Partition) LocalsByID(ids []string) *roaring.Bitmap {
	if p.ids == nil {
		return roaring.New()
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	locals := roaring.New()
	for i, rec := range p.recs {
		if _, ok := want[p.schema.ID(rec)]; ok {
			locals.AddInt(i)
		}
	}
	return locals
}

// Update replaces the record at the given local row in place. Row count and
// order never change, even in sorted partitions; re-sorting on edit is the
// caller's concern, matching the engine's remove-then-insert edit flow.
func (p *Partition) Update(local int, rec record.Record) error {
	if local < 0 || local >= len(p.recs) {
		return fmt.Errorf("partition %q: update local row %d of %d: %w", p.key, local, len(p.recs), ErrIndexOutOfRange)
	}

	if p.ids != nil {
		old := p.recs[local]
		oldID, newID := p.schema.ID(old), p.schema.ID(rec)
		if oldID != newID {
			if _, dup := p.ids[newID]; dup {
				return fmt.Errorf("partition %q: update would duplicate identity %q", p.key, newID)
			}
			delete(p.ids, oldID)
			p.ids[newID] = struct{}{}
		}
	}
	p.recs[local] = rec
	return nil
}

// Validate runs the partition's edit validator, if any.
func (p *Partition) Validate(rec record.Record) error {
	if p.validator == nil {
		return nil
	}
	return p.validator(rec)
}

// SetAutoFilter replaces the partition-local record visibility predicate.
// nil clears it. Visible rows are recomputed on demand, never cached across
// filter changes.
func (p *Partition) SetAutoFilter(fs *record.FilterSet) {
	p.autoFilter = fs
}

// Visible reports whether the record at the given local row passes the
// auto-filter. Out-of-range rows are not visible.
func (p *Partition) Visible(local int) bool {
	if local < 0 || local >= len(p.recs) {
		return false
	}
	return p.autoFilter.Matches(p.recs[local])
}

// VisibleLocalRows yields the local rows passing the auto-filter, in local
// row order. The sequence is finite and restartable.
func (p *Partition) VisibleLocalRows() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i, rec := range p.recs {
			if !p.autoFilter.Matches(rec) {
				continue
			}
			if !yield(i) {
				return
			}
		}
	}
}

// VisibleBitmap returns the set of visible local rows.
func (p *Partition) VisibleBitmap() *roaring.Bitmap {
	visible := roaring.New()
	for local := range p.VisibleLocalRows() {
		visible.AddInt(local)
	}
	return visible
}

// FetchState returns the current fetch state.
func (p *Partition) FetchState() FetchState { return p.state }

// CanFetchMore reports whether more backing rows may exist.
func (p *Partition) CanFetchMore() bool { return p.state != Fetched }

// BeginFetch transitions to Fetching. It is a no-op once Fetched.
func (p *Partition) BeginFetch() {
	if p.state == Unfetched {
		p.state = Fetching
	}
}

// FetchMore appends a fetched batch. exhausted marks the collaborator's
// signal that no further rows exist, transitioning to Fetched.
func (p *Partition) FetchMore(batch []record.Record, exhausted bool) (from, n int) {
	from, n = p.Append(batch)
	if exhausted {
		p.state = Fetched
	} else {
		p.state = Unfetched
	}
	return from, n
}

// EndFetch resolves an outstanding asynchronous fetch whose records arrived
// through the ordinary records-added path.
func (p *Partition) EndFetch(exhausted bool) {
	if exhausted {
		p.state = Fetched
		return
	}
	p.state = Unfetched
}

// MarkFetched force-transitions to Fetched.
func (p *Partition) MarkFetched() { p.state = Fetched }
