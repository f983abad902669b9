package vtab

import (
	"context"

	"github.com/hupe1980/vtab/record"
)

// Cursor is an opaque fetch position within one grouping key. The engine
// stores the cursor returned by each fetch and hands it back on the next one;
// it never interprets the contents.
type Cursor struct {
	// Offset is the number of records fetched so far.
	Offset int

	// Token is a collaborator-defined continuation token.
	Token string
}

// FetchResult is the outcome of a RequestFetch call.
//
// A collaborator with the data at hand returns it synchronously in Records.
// One that must go to its backing store instead sets Pending and delivers the
// records later through ReceiveRecordsAdded on the engine's event loop,
// followed by MarkKeyFetched once the key is exhausted.
type FetchResult struct {
	Records   []record.Record
	Next      Cursor
	Exhausted bool
	Pending   bool
}

// Storage is the engine's outbound contract to the persistent-storage
// collaborator. The collaborator is shared read-only across many views; each
// view's edit requests are independent.
//
// The engine never calls Storage concurrently with itself, but implementations
// may be called from many views and should be safe for concurrent use.
type Storage interface {
	// RequestUpdate forwards one partition's edited records. It returns the
	// records as actually applied (the collaborator may normalize values);
	// on error the engine leaves its in-memory state untouched.
	RequestUpdate(ctx context.Context, key string, recs []record.Record) ([]record.Record, error)

	// RequestFetch asks for the next batch of records for a grouping key.
	RequestFetch(ctx context.Context, key string, cursor Cursor) (FetchResult, error)
}
