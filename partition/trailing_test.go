package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vtab/record"
)

func TestTrailingStartsWithDefaultRow(t *testing.T) {
	tr := NewTrailing(testSchema())

	assert.True(t, tr.Immortal())
	assert.False(t, tr.CanFetchMore())
	require.Equal(t, 1, tr.Len())

	rec, err := tr.Record(0)
	require.NoError(t, err)
	assert.True(t, rec.Get("name").IsNull())
}

func TestTrailingAppendsAfterEdit(t *testing.T) {
	tr := NewTrailing(testSchema())

	// Editing the sole row away from the default grows the partition.
	require.NoError(t, tr.Update(0, record.Record{"name": record.String("x")}))
	local, appended := tr.EnsureDefaultRow()
	require.True(t, appended)
	assert.Equal(t, 1, local)
	assert.Equal(t, 2, tr.Len())

	// Editing back to the default does not delete the trailing default row:
	// two default rows may coexist until accept-time cleanup.
	require.NoError(t, tr.Update(0, record.Record{"name": record.Null()}))
	_, appended = tr.EnsureDefaultRow()
	assert.False(t, appended)
	assert.Equal(t, 2, tr.Len())
}

func TestTrailingAppendsAfterEmptied(t *testing.T) {
	tr := NewTrailing(testSchema())

	_, err := tr.Remove(bitmap(0))
	require.NoError(t, err)
	require.Equal(t, 0, tr.Len())

	local, appended := tr.EnsureDefaultRow()
	require.True(t, appended)
	assert.Equal(t, 0, local)
	assert.Equal(t, 1, tr.Len())
}

func TestTrailingSubmittedRows(t *testing.T) {
	tr := NewTrailing(testSchema())

	assert.Nil(t, tr.SubmittedRows())

	require.NoError(t, tr.Update(0, record.Record{"name": record.String("x")}))
	tr.EnsureDefaultRow()
	require.NoError(t, tr.Update(1, record.Record{"name": record.String("y")}))
	tr.EnsureDefaultRow()

	rows := tr.SubmittedRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "x", rows[0].Get("name").StringValue())
	assert.Equal(t, "y", rows[1].Get("name").StringValue())
}

func TestTrailingDefaultComparedAsFullRow(t *testing.T) {
	schema := testSchema()
	schema.Default = record.Record{"name": record.Null(), "kind": record.String("std")}
	tr := NewTrailing(schema)

	// A row matching the default except one field still triggers the append.
	require.NoError(t, tr.Update(0, record.Record{"name": record.Null(), "kind": record.String("odd")}))
	_, appended := tr.EnsureDefaultRow()
	assert.True(t, appended)
}
