package learning

import (
	"time"

	"finsheet/pkg/contracts/domain"
)

// Template is one learned sheet-to-mapping association. Templates are
// never overwritten destructively; a close re-save only increments usage
// and raises confidence.
type Template struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Signature  Signature              `json:"signature"`
	Mapping    domain.MappingEnvelope `json:"mapping"`
	Confidence float64                `json:"confidence"`
	UsageCount int                    `json:"usage_count"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Correction is a user-supplied mapping fix. Corrections live in their
// own collection so an automatic save can never be promoted to learned
// truth with full confidence.
type Correction struct {
	ID        string                 `json:"id"`
	Signature Signature              `json:"signature"`
	Mapping   domain.MappingEnvelope `json:"mapping"`
	Note      string                 `json:"note,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// MappingRecord pairs an encodable mapping with the confidence it
// earned during the import that produced it.
type MappingRecord struct {
	Envelope   domain.MappingEnvelope `json:"envelope"`
	Confidence float64                `json:"confidence"`
}

// Match is a scored template candidate.
type Match struct {
	Template Template
	Score    float64
}

// Bundle is the serializable export of the full learning corpus.
type Bundle struct {
	Version     string       `json:"version"`
	ExportedAt  time.Time    `json:"exported_at"`
	Templates   []Template   `json:"templates"`
	Corrections []Correction `json:"corrections"`
	Patterns    []Pattern    `json:"patterns"`
}

// Pattern is one entry in the common-patterns collection: a recurring
// normalized header with its observation count.
type Pattern struct {
	Key      string    `json:"key"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}
