package domain

import "time"

// RoleMapping assigns a financial role to one column or row index with a
// confidence in [0,1]. Subtype narrows the role: for account roles it is
// the keyword category ("asset", "liability", ...), for value roles one of
// "balance", "change" or "amount", and for temporal roles "month",
// "quarter" or "year".
type RoleMapping struct {
	Index      int        `json:"index"`
	Subtype    string     `json:"subtype"`
	Confidence float64    `json:"confidence"`
	Period     time.Month `json:"period,omitempty"`
	Samples    []string   `json:"samples,omitempty"`
}

// Classification is the full set of role assignments proposed for one
// sheet. It is created fresh per sheet per import attempt and never
// mutated after construction. Confidence is on the internal 0-1 scale;
// the service boundary converts to 0-100 for display.
type Classification struct {
	SheetType        StructureType             `json:"sheet_type"`
	TypeScores       map[StructureType]float64 `json:"type_scores"`
	AccountMappings  []RoleMapping             `json:"account_mappings"`
	ValueMappings    []RoleMapping             `json:"value_mappings"`
	TemporalMappings []RoleMapping             `json:"temporal_mappings"`
	CategoryMappings []RoleMapping             `json:"category_mappings"`
	Suggestions      []MappingSuggestion       `json:"suggested_mappings"`
	Confidence       float64                   `json:"confidence"`
	Warnings         []string                  `json:"warnings,omitempty"`
	Errors           []string                  `json:"errors,omitempty"`
}
