package domain

// CellType classifies the content of a single extracted cell.
type CellType string

const (
	CellTypeText       CellType = "text"
	CellTypeNumber     CellType = "number"
	CellTypeCurrency   CellType = "currency"
	CellTypePercentage CellType = "percentage"
	CellTypeDate       CellType = "date"
	CellTypeFormula    CellType = "formula"
	CellTypeEmpty      CellType = "empty"
)

// Cell is one typed cell from an extracted spreadsheet.
// Formula carries the source formula when the cell was computed;
// the Value is always the precomputed result, never re-evaluated.
type Cell struct {
	Value   interface{} `json:"value"`
	Type    CellType    `json:"type"`
	Formula string      `json:"formula,omitempty"`
	Format  string      `json:"format,omitempty"`
}

// CellRef addresses a cell by zero-based row and column.
type CellRef struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// MergedRegion describes a rectangular merged-cell range (inclusive bounds).
type MergedRegion struct {
	StartRow int `json:"start_row"`
	StartCol int `json:"start_col"`
	EndRow   int `json:"end_row"`
	EndCol   int `json:"end_col"`
}

// Sheet is one rectangular grid of extracted cell values plus formula and
// merge metadata. Data rows are null-padded to a uniform width. A Sheet is
// immutable once extracted; it is owned by the pipeline invocation that
// consumes it.
type Sheet struct {
	Name    string               `json:"name"`
	Data    [][]interface{}      `json:"data"`
	Cells   map[CellRef]Cell     `json:"-"`
	Merged  []MergedRegion       `json:"merged_regions,omitempty"`
}

// RowCount returns the number of rows in the sheet.
func (s *Sheet) RowCount() int {
	return len(s.Data)
}

// ColumnCount returns the sheet width. Rows are null-padded, so the
// first row is authoritative.
func (s *Sheet) ColumnCount() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// ValueAt returns the raw value at the given position, or nil when the
// position is out of bounds.
func (s *Sheet) ValueAt(row, col int) interface{} {
	if row < 0 || row >= len(s.Data) {
		return nil
	}
	if col < 0 || col >= len(s.Data[row]) {
		return nil
	}
	return s.Data[row][col]
}

// CellAt returns the typed cell metadata at the given position.
func (s *Sheet) CellAt(row, col int) (Cell, bool) {
	c, ok := s.Cells[CellRef{Row: row, Col: col}]
	return c, ok
}
