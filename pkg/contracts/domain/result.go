package domain

import "time"

// Issue is one structured problem attached to an import result. Code is a
// stable machine-readable identifier from the error taxonomy.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Severity    string `json:"severity"`
	Recoverable bool   `json:"recoverable"`
	Row         int    `json:"row,omitempty"`
	Column      int    `json:"column,omitempty"`
}

// PhaseResult reports one pipeline phase's outcome and duration.
type PhaseResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
}

// PipelineReport aggregates per-phase timing for one import.
type PipelineReport struct {
	Phases    []PhaseResult `json:"phases"`
	TotalTime time.Duration `json:"total_time"`
}

// ImportStatistics counts what happened during one import, including rows
// that failed validation and were excluded from record generation.
type ImportStatistics struct {
	TotalRows          int `json:"total_rows"`
	ValidItems         int `json:"valid_items"`
	InvalidItems       int `json:"invalid_items"`
	AccountsCreated    int `json:"accounts_created"`
	TransactionsCreated int `json:"transactions_created"`
	DuplicatesFound    int `json:"duplicates_found"`
	DuplicatesHandled  int `json:"duplicates_handled"`
}

// ImportMetadata records provenance for one import result.
type ImportMetadata struct {
	SheetName     string        `json:"sheet_name"`
	Structure     StructureType `json:"structure"`
	MappingSource string        `json:"mapping_source"`
	TemplateUsed  string        `json:"template_used,omitempty"`
	CacheHit      bool          `json:"cache_hit"`
	ImportedAt    time.Time     `json:"imported_at"`
}

// ImportResult is the external output contract of one pipeline run.
// Confidence is expressed on the 0-100 display scale.
type ImportResult struct {
	Success      bool             `json:"success"`
	Accounts     []Account        `json:"accounts"`
	Transactions []Transaction    `json:"transactions"`
	Metadata     ImportMetadata   `json:"metadata"`
	Statistics   ImportStatistics `json:"statistics"`
	Confidence   float64          `json:"confidence"`
	Errors       []Issue          `json:"errors,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Pipeline     PipelineReport   `json:"pipeline"`
}

// FileResult reports the per-file outcome within a multi-file import.
type FileResult struct {
	FileName string  `json:"file_name"`
	Success  bool    `json:"success"`
	Error    string  `json:"error,omitempty"`
	Accounts int     `json:"accounts"`
	Transactions int `json:"transactions"`
}

// BatchResult aggregates a multi-file import.
type BatchResult struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	Files             []FileResult  `json:"files"`
	DuplicatesFound   int           `json:"duplicates_found"`
	DuplicatesHandled int           `json:"duplicates_handled"`
	Warnings          []string      `json:"warnings,omitempty"`
}
