package domain

// StructureType identifies a hypothesis about a sheet's layout.
type StructureType string

const (
	StructureTable      StructureType = "table"
	StructureTimeSeries StructureType = "time_series"
	StructureHierarchy  StructureType = "hierarchy"
	StructureMatrix     StructureType = "matrix"
	StructureUnknown    StructureType = "unknown"
)

// Orientation describes which axis of a time series carries the periods.
type Orientation string

const (
	OrientationColumns Orientation = "columns"
	OrientationRows    Orientation = "rows"
)

// ColumnProfile summarizes one column of a detected table.
type ColumnProfile struct {
	Index    int      `json:"index"`
	Header   string   `json:"header"`
	Type     CellType `json:"type"`
	NonEmpty int      `json:"non_empty"`
}

// StructureCandidate is one detector's hypothesis about a sheet's layout,
// with detector-local confidence in [0,1]. Several candidates may coexist
// for one sheet; none is authoritative on its own.
type StructureCandidate struct {
	Type       StructureType `json:"type"`
	Confidence float64       `json:"confidence"`

	// Table geometry.
	HeaderRow int             `json:"header_row,omitempty"`
	Columns   []ColumnProfile `json:"columns,omitempty"`

	// Time-series geometry.
	Orientation     Orientation `json:"orientation,omitempty"`
	TemporalIndexes []int       `json:"temporal_indexes,omitempty"`

	// Hierarchy geometry: row index to indentation level.
	IndentLevels map[int]int `json:"indent_levels,omitempty"`

	// Matrix geometry.
	NumericFill float64 `json:"numeric_fill,omitempty"`
}
