package models

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// RawTable holds the input file as loaded, every cell as text. Only column
// renames mutate it after load.
type RawTable struct {
	frame dataframe.DataFrame
}

// NewRawTable wraps a loaded data frame.
func NewRawTable(df dataframe.DataFrame) *RawTable {
	return &RawTable{frame: df}
}

// EmptyRawTable is what the pipeline continues with when the input is missing.
func EmptyRawTable() *RawTable {
	return &RawTable{frame: dataframe.New()}
}

// HeaderOnlyRawTable builds a table with the given text columns and no rows.
func HeaderOnlyRawTable(columns []string) (*RawTable, error) {
	cols := make([]series.Series, len(columns))
	for i, name := range columns {
		cols[i] = series.New([]string{}, series.String, name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("header-only table: %w", df.Err)
	}
	return &RawTable{frame: df}, nil
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return t.frame.Nrow()
}

// Width returns the number of columns.
func (t *RawTable) Width() int {
	if t == nil {
		return 0
	}
	return t.frame.Ncol()
}

// Columns returns the column names in file order.
func (t *RawTable) Columns() []string {
	if t == nil {
		return nil
	}
	return t.frame.Names()
}

// HasColumn reports whether name is a column of the table.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// Rename renames column from to to. A missing source column is ignored,
// which keeps renames idempotent.
func (t *RawTable) Rename(from, to string) error {
	if !t.HasColumn(from) {
		return nil
	}
	renamed := t.frame.Rename(to, from)
	if renamed.Err != nil {
		return fmt.Errorf("rename column %q to %q: %w", from, to, renamed.Err)
	}
	t.frame = renamed
	return nil
}

// Column returns the raw cells of the named column.
func (t *RawTable) Column(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return t.frame.Col(name).Records(), nil
}
