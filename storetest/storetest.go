// Package storetest provides test doubles for the engine's collaborators: a
// scripted in-memory storage collaborator, a manually advanced clock for
// debounce tests, and record generators.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vtab"
	"github.com/hupe1980/vtab/record"
)

// Clock is a manually advanced vtab.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at the given instant.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now implements vtab.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Store is a scripted storage collaborator. Fetch pages are queued per
// grouping key and popped in order; updates are recorded and echoed back.
type Store struct {
	mu      sync.Mutex
	pages   map[string][][]record.Record
	pending map[string]bool

	// UpdateErr, if set, fails every RequestUpdate.
	UpdateErr error

	// FetchErr, if set, fails every RequestFetch.
	FetchErr error

	// Normalize, if set, rewrites records before they are echoed back from
	// RequestUpdate, imitating collaborators that canonicalize values.
	Normalize func(record.Record) record.Record

	// Updates logs every RequestUpdate batch, keyed by grouping key.
	Updates map[string][][]record.Record
}

// NewStore creates an empty scripted store.
func NewStore() *Store {
	return &Store{
		pages:   make(map[string][][]record.Record),
		pending: make(map[string]bool),
		Updates: make(map[string][][]record.Record),
	}
}

// QueuePage appends one fetch page for a grouping key.
func (s *Store) QueuePage(key string, recs ...record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key] = append(s.pages[key], recs)
}

// SetPending makes RequestFetch for the key report a pending asynchronous
// request instead of returning records.
func (s *Store) SetPending(key string, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = pending
}

// RequestUpdate implements vtab.Storage.
func (s *Store) RequestUpdate(_ context.Context, key string, recs []record.Record) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	s.Updates[key] = append(s.Updates[key], recs)

	if s.Normalize == nil {
		return recs, nil
	}
	applied := make([]record.Record, len(recs))
	for i, rec := range recs {
		applied[i] = s.Normalize(rec)
	}
	return applied, nil
}

// RequestFetch implements vtab.Storage.
func (s *Store) RequestFetch(_ context.Context, key string, cursor vtab.Cursor) (vtab.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FetchErr != nil {
		return vtab.FetchResult{}, s.FetchErr
	}
	if s.pending[key] {
		return vtab.FetchResult{Pending: true, Next: cursor}, nil
	}

	queue := s.pages[key]
	if len(queue) == 0 {
		return vtab.FetchResult{Exhausted: true, Next: cursor}, nil
	}
	page := queue[0]
	s.pages[key] = queue[1:]

	return vtab.FetchResult{
		Records:   page,
		Next:      vtab.Cursor{Offset: cursor.Offset + len(page)},
		Exhausted: len(queue) == 1,
	}, nil
}

// Schema returns the schema used throughout the engine's tests: records with
// "id", "class" and "name" fields, grouped by class, defaulting to a null
// name.
func Schema() record.Schema {
	return record.Schema{
		GroupKey: func(r record.Record) string { return r.Get("class").StringValue() },
		ID:       func(r record.Record) string { return r.Get("id").StringValue() },
		Fields:   []string{"id", "class", "name"},
		Default:  record.Record{"name": record.Null()},
	}
}

// Row builds a record with a fresh uuid identity.
func Row(class, name string) record.Record {
	return record.Record{
		"id":    record.String(uuid.NewString()),
		"class": record.String(class),
		"name":  record.String(name),
	}
}

// Rows builds one record per name, all in the same class.
func Rows(class string, names ...string) []record.Record {
	recs := make([]record.Record, len(names))
	for i, name := range names {
		recs[i] = Row(class, name)
	}
	return recs
}
