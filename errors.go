package vtab

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vtab/partition"
)

// ErrIndexOutOfRange is returned when a caller addresses a logical or local
// row outside current bounds. It is always a programmer error: the operation
// is aborted and no partial mutation is applied.
var ErrIndexOutOfRange = partition.ErrIndexOutOfRange

// ErrPartitionNotFound is returned when an update or removal references a
// grouping key with no live partition. Callers handling external record
// events should treat it as a no-op: records may legitimately arrive for a
// partition that was emptied and dropped in the same event cycle.
var ErrPartitionNotFound = errors.New("partition not found")

// ValidationError reports that an edited row failed partition-level
// validation. Validation runs on the row's accumulated edits, so Fields lists
// every field edited on the row; the validator's own error names the
// offending value. The row remains editable and no row-map change occurs.
//
// The original underlying error can be accessed via errors.Unwrap.
type ValidationError struct {
	Row    int
	Fields []string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for row %d fields %q: %v", e.Row, e.Fields, e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// StorageError reports that the storage collaborator rejected or failed a
// request. The engine's in-memory state is left unchanged; it never
// speculatively applies an edit before storage confirms it.
//
// The original underlying error can be accessed via errors.Unwrap.
type StorageError struct {
	Key   string
	Op    string
	cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for partition %q: %v", e.Op, e.Key, e.cause)
}

func (e *StorageError) Unwrap() error { return e.cause }
