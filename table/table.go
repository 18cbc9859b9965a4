// Package table holds the in-memory relations produced by pipeline stages.
// A Table is an ordered set of records with a declared column order; the
// Store keeps the last committed version of every table so a failed run
// never clobbers good output.
package table

import (
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/stream"
)

// Table is a named, column-ordered collection of records.
type Table struct {
	Name    string
	Columns []string // declared output column order, used for CSV export and API responses.
	Rows    []stream.Record
}

// New returns an empty table with the given column order.
func New(name string, columns []string) *Table {
	return &Table{Name: name, Columns: columns, Rows: make([]stream.Record, 0)}
}

// FromChan drains the channel into a new table. It blocks until the
// producer closes the channel.
func FromChan(name string, columns []string, ch chan stream.Record) *Table {
	t := New(name, columns)
	for rec := range ch {
		t.Rows = append(t.Rows, rec)
	}
	return t
}

// Append adds a record to the table.
func (t *Table) Append(rec stream.Record) {
	t.Rows = append(t.Rows, rec)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Chan replays the table's rows onto a fresh channel so the table can feed
// a downstream component. The channel is closed after the last row.
func (t *Table) Chan() chan stream.Record {
	ch := make(chan stream.Record, c.ChanSize)
	go func() {
		for _, rec := range t.Rows {
			ch <- rec
		}
		close(ch)
	}()
	return ch
}
