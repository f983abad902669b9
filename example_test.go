package vtab_test

import (
	"fmt"

	"github.com/hupe1980/vtab"
	"github.com/hupe1980/vtab/record"
)

func Example() {
	schema := record.Schema{
		GroupKey: func(r record.Record) string { return r.Get("class").StringValue() },
		ID:       func(r record.Record) string { return r.Get("id").StringValue() },
		Fields:   []string{"id", "class", "name"},
		Default:  record.Record{"name": record.Null()},
	}

	// No storage collaborator: a purely in-memory table.
	view := vtab.New(schema, nil, vtab.WithLogger(vtab.NoopLogger()))

	view.ReceiveRecordsAdded("walls", []record.Record{
		{"id": record.String("w1"), "class": record.String("walls"), "name": record.String("north wall")},
		{"id": record.String("w2"), "class": record.String("walls"), "name": record.String("south wall")},
	})
	view.ReceiveRecordsAdded("doors", []record.Record{
		{"id": record.String("d1"), "class": record.String("doors"), "name": record.String("entrance")},
	})

	for row := 0; row < view.RowCount(); row++ {
		name, _ := view.Cell(row, "name")
		fmt.Println(row, name.StringValue())
	}

	// Output:
	// 0 north wall
	// 1 south wall
	// 2 entrance
}
