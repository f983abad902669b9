package record

// Record is a typed key-value document representing one domain entity
// (object, relationship, parameter value, ...).
//
// Fields absent from the map read as Null; the engine treats absence and
// explicit null identically.
type Record map[string]Value

// Get returns the value of a field. Missing fields read as Null.
func (r Record) Get(field string) Value {
	v, ok := r[field]
	if !ok {
		return Null()
	}
	return v
}

// Set stores a field value. Setting Null still stores the field, which keeps
// Clone/Equal behavior symmetric with Get's missing-field semantics.
func (r Record) Set(field string, v Value) {
	r[field] = v
}

// Clone creates a copy of the record.
//
// This is the safe default to prevent external mutation after a record has
// been handed to a partition. Values are plain value types, so a shallow
// map copy is a full copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	clone := make(Record, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Equal reports whether two records hold the same field values.
//
// Missing fields and explicit nulls compare equal, so {"name": Null()} equals
// {}. This full-row comparison backs the trailing empty partition's
// "differs from default row" rule.
func (r Record) Equal(o Record) bool {
	for k, v := range r {
		if !v.Equal(o.Get(k)) {
			return false
		}
	}
	for k, v := range o {
		if _, ok := r[k]; !ok && !v.IsNull() {
			return false
		}
	}
	return true
}

// Schema is the per-table capability the engine is parameterized over.
// It is how the engine reads records without knowing their shape.
type Schema struct {
	// GroupKey extracts the grouping key that routes a record to its
	// partition (e.g. a class id).
	GroupKey func(Record) string

	// ID extracts the record's identity. Identities must be unique within a
	// partition; duplicates are skipped on insert.
	ID func(Record) string

	// Fields lists the visible columns, in display order. Used for
	// bounding-rectangle change notifications; nil means callers address
	// fields by name only.
	Fields []string

	// Default is the default row template for the trailing empty partition.
	// Fields not present default to null.
	Default Record
}

// DefaultRow materializes a fresh default row with the given overrides
// applied on top of the schema's template.
func (s Schema) DefaultRow(overrides Record) Record {
	row := s.Default.Clone()
	if row == nil {
		row = make(Record)
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}
