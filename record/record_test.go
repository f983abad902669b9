package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGetMissingField(t *testing.T) {
	r := Record{"name": String("a")}
	assert.True(t, r.Get("age").IsNull())
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := Record{"name": String("a")}
	c := r.Clone()
	c.Set("name", String("b"))

	assert.Equal(t, "a", r.Get("name").StringValue())
	assert.Equal(t, "b", c.Get("name").StringValue())
	assert.Nil(t, Record(nil).Clone())
}

func TestRecordEqualTreatsMissingAsNull(t *testing.T) {
	assert.True(t, Record{"name": Null()}.Equal(Record{}))
	assert.True(t, Record{}.Equal(Record{"name": Null()}))
	assert.False(t, Record{"name": String("a")}.Equal(Record{}))
	assert.True(t, Record{"a": Int(1)}.Equal(Record{"a": Float(1)}))
}

func TestSchemaDefaultRow(t *testing.T) {
	s := Schema{Default: Record{"name": Null(), "kind": String("std")}}

	row := s.DefaultRow(nil)
	assert.True(t, row.Get("name").IsNull())
	assert.Equal(t, "std", row.Get("kind").StringValue())

	// Overrides apply on a fresh copy, never on the template.
	row2 := s.DefaultRow(Record{"name": String("x")})
	assert.Equal(t, "x", row2.Get("name").StringValue())
	assert.True(t, s.Default.Get("name").IsNull())

	// A schema without a template still yields a usable row.
	empty := Schema{}
	require.NotNil(t, empty.DefaultRow(Record{"a": Int(1)}))
}

func TestFilterOperators(t *testing.T) {
	rec := Record{"name": String("widget"), "size": Int(5)}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq match", Filter{Field: "size", Operator: OpEqual, Value: Int(5)}, true},
		{"eq miss", Filter{Field: "size", Operator: OpEqual, Value: Int(6)}, false},
		{"ne", Filter{Field: "size", Operator: OpNotEqual, Value: Int(6)}, true},
		{"gt", Filter{Field: "size", Operator: OpGreaterThan, Value: Int(4)}, true},
		{"gte boundary", Filter{Field: "size", Operator: OpGreaterEqual, Value: Int(5)}, true},
		{"lt miss", Filter{Field: "size", Operator: OpLessThan, Value: Int(5)}, false},
		{"lte boundary", Filter{Field: "size", Operator: OpLessEqual, Value: Int(5)}, true},
		{"in", Filter{Field: "size", Operator: OpIn, Values: []Value{Int(1), Int(5)}}, true},
		{"in miss", Filter{Field: "size", Operator: OpIn, Values: []Value{Int(1)}}, false},
		{"contains", Filter{Field: "name", Operator: OpContains, Value: String("idg")}, true},
		{"contains non-string", Filter{Field: "size", Operator: OpContains, Value: String("5")}, false},
		{"missing field eq null", Filter{Field: "ghost", Operator: OpEqual, Value: Null()}, true},
		{"missing field gt", Filter{Field: "ghost", Operator: OpGreaterThan, Value: Int(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}

func TestFilterSet(t *testing.T) {
	rec := Record{"name": String("widget"), "size": Int(5)}

	fs := &FilterSet{Filters: []Filter{
		{Field: "size", Operator: OpGreaterThan, Value: Int(1)},
		{Field: "name", Operator: OpEqual, Value: String("widget")},
	}}
	assert.True(t, fs.Matches(rec))

	fs.Filters = append(fs.Filters, Filter{Field: "size", Operator: OpEqual, Value: Int(9)})
	assert.False(t, fs.Matches(rec))

	// nil and empty sets match everything.
	assert.True(t, (*FilterSet)(nil).Matches(rec))
	assert.True(t, (&FilterSet{}).Matches(rec))
	assert.True(t, (*FilterSet)(nil).Empty())
}
