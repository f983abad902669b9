package vtab

// Notifier is the engine's outbound change-notification contract to the UI
// consumer. All row ranges are half-open: [rowFrom, rowTo).
//
// The engine never pushes row contents; the consumer re-queries Cell for any
// range it is notified about. Notifications are delivered synchronously at
// operation boundaries, on the engine's event loop.
type Notifier interface {
	// CellsChanged reports in-place value changes within the bounding
	// rectangle of the given rows and fields. Row count is unchanged.
	CellsChanged(rowFrom, rowTo int, fields []string)

	// RowsInserted reports that the given logical rows now exist; rows at and
	// after rowFrom shifted up.
	RowsInserted(rowFrom, rowTo int)

	// RowsRemoved reports that the rows that occupied the given range are
	// gone; rows after rowTo shifted down.
	RowsRemoved(rowFrom, rowTo int)

	// RowCountChanged reports the new total after any structural change.
	RowCountChanged(count int)

	// FilterApplied reports that a compound filter rebuild completed. The
	// whole table may have changed; consumers should re-query everything.
	FilterApplied()
}

// NoopNotifier is a no-op implementation of Notifier, used when no consumer
// is attached.
type NoopNotifier struct{}

func (NoopNotifier) CellsChanged(int, int, []string) {}
func (NoopNotifier) RowsInserted(int, int)           {}
func (NoopNotifier) RowsRemoved(int, int)            {}
func (NoopNotifier) RowCountChanged(int)             {}
func (NoopNotifier) FilterApplied()                  {}
