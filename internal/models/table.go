package models

// Table is a row-major tabular result with a fixed, ordered column set.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: make([][]any, 0)}
}

// Append adds a row. Values are matched to columns by position.
func (t *Table) Append(values ...any) {
	row := make([]any, len(values))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
