package domain

// ColumnKind is the inferred type of a loaded column.
type ColumnKind string

const (
	KindInteger ColumnKind = "integer"
	KindFloat   ColumnKind = "float"
	KindDate    ColumnKind = "date"
	KindText    ColumnKind = "text"
)

func (k ColumnKind) Numeric() bool {
	return k == KindInteger || k == KindFloat
}

type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Cell is a single loaded value. Missing cells carry no value; after cleaning
// no cell is missing.
type Cell struct {
	Value   string
	Missing bool
}

func Value(v string) Cell { return Cell{Value: v} }

func MissingCell() Cell { return Cell{Missing: true} }

// Table is an in-memory, row-major dataset. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []Column
	Rows    [][]Cell
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so pure stages never mutate their input.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([][]Cell, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell(nil), row...)
	}
	return out
}
