package record

import "strings"

// Operator represents a comparison operator for filtering.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreaterThan represents the greater than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLessThan represents the less than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
	// OpIn tests membership in a value set.
	OpIn Operator = "in"
	// OpContains tests substring containment on string values.
	OpContains Operator = "contains"
)

// Filter is a single-field predicate over records. A partition's auto-filter
// is a FilterSet of these.
type Filter struct {
	// Field is the record field the filter reads.
	Field string

	// Operator selects the comparison.
	Operator Operator

	// Value is the comparison operand for scalar operators.
	Value Value

	// Values is the operand set for OpIn.
	Values []Value
}

// Matches checks if the provided record matches this filter.
//
// A missing field reads as null; only OpEqual/OpNotEqual can match nulls.
func (f *Filter) Matches(rec Record) bool {
	value := rec.Get(f.Field)

	switch f.Operator {
	case OpEqual:
		return value.Equal(f.Value)
	case OpNotEqual:
		return !value.Equal(f.Value)
	case OpGreaterThan:
		return f.Value.Less(value)
	case OpGreaterEqual:
		return f.Value.Less(value) || value.Equal(f.Value)
	case OpLessThan:
		return value.Less(f.Value)
	case OpLessEqual:
		return value.Less(f.Value) || value.Equal(f.Value)
	case OpIn:
		for _, candidate := range f.Values {
			if value.Equal(candidate) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := value.AsString()
		if !ok {
			return false
		}
		sub, ok := f.Value.AsString()
		if !ok {
			return false
		}
		return strings.Contains(s, sub)
	default:
		return false
	}
}

// FilterSet is a conjunction of filters. The empty set matches everything.
type FilterSet struct {
	Filters []Filter
}

// Matches checks if the provided record matches all filters in the set.
func (fs *FilterSet) Matches(rec Record) bool {
	if fs == nil {
		return true
	}
	for i := range fs.Filters {
		if !fs.Filters[i].Matches(rec) {
			return false
		}
	}
	return true
}

// Empty reports whether the set contains no filters.
func (fs *FilterSet) Empty() bool {
	return fs == nil || len(fs.Filters) == 0
}
