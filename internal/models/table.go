package models

import "strconv"

// CellKind tags the variant held by a Cell.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellString
	CellInt
)

// Cell is a single table value: null, a string, or an integer.
type Cell struct {
	Kind CellKind
	Str  string
	Int  int64
}

// NullCell returns a missing value.
func NullCell() Cell { return Cell{Kind: CellNull} }

// StringCell wraps a string value.
func StringCell(s string) Cell { return Cell{Kind: CellString, Str: s} }

// IntCell wraps an integer value.
func IntCell(i int64) Cell { return Cell{Kind: CellInt, Int: i} }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.Kind == CellNull }

// IsString reports whether the cell holds a string.
func (c Cell) IsString() bool { return c.Kind == CellString }

// Text renders the cell for output. Null renders as the empty string.
func (c Cell) Text() string {
	switch c.Kind {
	case CellString:
		return c.Str
	case CellInt:
		return strconv.FormatInt(c.Int, 10)
	default:
		return ""
	}
}

// Column is a named, ordered sequence of cells.
type Column struct {
	Name  string
	Cells []Cell
}

// Table is an ordered set of equally sized columns.
// A Table is owned by a single pipeline run and is not safe for concurrent mutation.
type Table struct {
	Columns []*Column
}

// NewTable creates a table with the given column names and no rows.
func NewTable(names ...string) *Table {
	t := &Table{Columns: make([]*Column, 0, len(names))}
	for _, n := range names {
		t.Columns = append(t.Columns, &Column{Name: n})
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	if i := t.Index(name); i >= 0 {
		return t.Columns[i]
	}
	return nil
}

// AppendRow adds a row. Missing trailing cells are filled with nulls.
func (t *Table) AppendRow(cells ...Cell) {
	for i, col := range t.Columns {
		c := NullCell()
		if i < len(cells) {
			c = cells[i]
		}
		col.Cells = append(col.Cells, c)
	}
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Cell {
	row := make([]Cell, len(t.Columns))
	for j, col := range t.Columns {
		row[j] = col.Cells[i]
	}
	return row
}

// InsertAfter inserts col immediately after position i.
func (t *Table) InsertAfter(i int, col *Column) {
	t.Columns = append(t.Columns, nil)
	copy(t.Columns[i+2:], t.Columns[i+1:])
	t.Columns[i+1] = col
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		cells := make([]Cell, len(c.Cells))
		copy(cells, c.Cells)
		out.Columns[i] = &Column{Name: c.Name, Cells: cells}
	}
	return out
}
