package partition

import (
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vtab/record"
)

func testSchema() record.Schema {
	return record.Schema{
		GroupKey: func(r record.Record) string { return r.Get("class").StringValue() },
		ID:       func(r record.Record) string { return r.Get("id").StringValue() },
		Default:  record.Record{"name": record.Null()},
	}
}

func row(id, name string) record.Record {
	return record.Record{"id": record.String(id), "name": record.String(name)}
}

func names(t *testing.T, p *Partition) []string {
	t.Helper()
	out := make([]string, 0, p.Len())
	for i := 0; i < p.Len(); i++ {
		rec, err := p.Record(i)
		require.NoError(t, err)
		out = append(out, rec.Get("name").StringValue())
	}
	return out
}

func bitmap(locals ...int) *roaring.Bitmap {
	b := roaring.New()
	for _, l := range locals {
		b.AddInt(l)
	}
	return b
}

func TestAppendSkipsDuplicates(t *testing.T) {
	p := New("p1", testSchema())

	from, n := p.Append([]record.Record{row("1", "a"), row("2", "b")})
	assert.Equal(t, 0, from)
	assert.Equal(t, 2, n)

	// Same identity again, plus a batch-internal duplicate.
	from, n = p.Append([]record.Record{row("2", "b2"), row("3", "c"), row("3", "c2")})
	assert.Equal(t, 2, from)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b", "c"}, names(t, p))
}

func TestInsertAt(t *testing.T) {
	p := New("p1", testSchema())
	p.Append([]record.Record{row("1", "a"), row("2", "c")})

	from, n, err := p.InsertAt(1, []record.Record{row("3", "b")})
	require.NoError(t, err)
	assert.Equal(t, 1, from)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b", "c"}, names(t, p))

	_, _, err = p.InsertAt(7, []record.Record{row("4", "d")})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestInsertSortedStable(t *testing.T) {
	byName := func(a, b record.Record) bool {
		return a.Get("name").Less(b.Get("name"))
	}
	p := New("p1", testSchema(), WithLess(byName))

	for _, rec := range []record.Record{row("1", "b"), row("2", "d"), row("3", "a")} {
		_, ok := p.InsertSorted(rec)
		require.True(t, ok)
	}
	assert.Equal(t, []string{"a", "b", "d"}, names(t, p))

	// Equal keys insert after existing equal-key entries.
	local, ok := p.InsertSorted(row("4", "b"))
	require.True(t, ok)
	assert.Equal(t, 2, local)

	// Duplicate identity is skipped.
	_, ok = p.InsertSorted(row("4", "x"))
	assert.False(t, ok)
}

func TestRemovePreservesSurvivorOrder(t *testing.T) {
	p := New("p1", testSchema())
	p.Append([]record.Record{row("1", "a"), row("2", "b"), row("3", "c"), row("4", "d")})

	removed, err := p.Remove(bitmap(1, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"a", "c"}, names(t, p))
	assert.False(t, p.Contains("2"))

	// Removed identities can be re-added.
	_, n := p.Append([]record.Record{row("2", "b")})
	assert.Equal(t, 1, n)
}

func TestRemoveOutOfRange(t *testing.T) {
	p := New("p1", testSchema())
	p.Append([]record.Record{row("1", "a")})

	_, err := p.Remove(bitmap(5))
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	// No partial mutation.
	assert.Equal(t, 1, p.Len())
}

func TestUpdateInPlace(t *testing.T) {
	p := New("p1", testSchema())
	p.Append([]record.Record{row("1", "a"), row("2", "b")})

	require.NoError(t, p.Update(1, row("2", "B")))
	assert.Equal(t, []string{"a", "B"}, names(t, p))

	err := p.Update(9, row("2", "x"))
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	// Identity change onto an existing identity is rejected.
	err = p.Update(1, row("1", "dup"))
	require.Error(t, err)
}

func TestLocalsByID(t *testing.T) {
	p := New("p1", testSchema())
	p.Append([]record.Record{row("1", "a"), row("2", "b"), row("3", "c")})

	locals := p.LocalsByID([]string{"1", "3", "nope"})
	assert.Equal(t, []uint32{0, 2}, locals.ToArray())

	local, ok := p.LocalByID("2")
	require.True(t, ok)
	assert.Equal(t, 1, local)

	_, ok = p.LocalByID("nope")
	assert.False(t, ok)
}

func TestVisibleLocalRows(t *testing.T) {
	p := New("p1", testSchema())
	p.Append([]record.Record{row("1", "a"), row("2", "b"), row("3", "a")})

	p.SetAutoFilter(&record.FilterSet{Filters: []record.Filter{
		{Field: "name", Operator: record.OpEqual, Value: record.String("a")},
	}})

	var visible []int
	for local := range p.VisibleLocalRows() {
		visible = append(visible, local)
	}
	assert.Equal(t, []int{0, 2}, visible)
	assert.Equal(t, []uint32{0, 2}, p.VisibleBitmap().ToArray())

	// The sequence is restartable and recomputed: clearing the filter
	// brings everything back.
	p.SetAutoFilter(nil)
	assert.Equal(t, uint64(3), p.VisibleBitmap().GetCardinality())
}

func TestFetchStateMachine(t *testing.T) {
	p := New("p1", testSchema())
	assert.Equal(t, Unfetched, p.FetchState())
	assert.True(t, p.CanFetchMore())

	p.BeginFetch()
	assert.Equal(t, Fetching, p.FetchState())

	from, n := p.FetchMore([]record.Record{row("1", "a")}, false)
	assert.Equal(t, 0, from)
	assert.Equal(t, 1, n)
	assert.Equal(t, Unfetched, p.FetchState())
	assert.True(t, p.CanFetchMore())

	p.FetchMore([]record.Record{row("2", "b")}, true)
	assert.Equal(t, Fetched, p.FetchState())
	assert.False(t, p.CanFetchMore())
}

func TestValidator(t *testing.T) {
	errMissing := errors.New("name required")
	p := New("p1", testSchema(), WithValidator(func(rec record.Record) error {
		if rec.Get("name").IsNull() {
			return errMissing
		}
		return nil
	}))

	assert.NoError(t, p.Validate(row("1", "a")))
	assert.ErrorIs(t, p.Validate(record.Record{"id": record.String("2")}), errMissing)
}
