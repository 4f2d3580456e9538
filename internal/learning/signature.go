// Package learning persists successful mappings as templates and user
// corrections, and matches new sheets against them by structural
// signature. State lives behind an injectable Store so nothing here is a
// global singleton.
package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"finsheet/internal/analyzer"
	"finsheet/pkg/contracts/domain"
)

// Signature is a deterministic structural fingerprint of one sheet:
// normalized headers, per-column dominant types, keyword-category counts
// and the detected structure type. The same sheet always produces the
// same signature.
type Signature struct {
	Headers       []string          `json:"headers"`
	ColumnTypes   []domain.CellType `json:"column_types"`
	KeywordCounts map[string]int    `json:"keyword_counts"`
	StructureType domain.StructureType `json:"structure_type"`
	ColumnCount   int               `json:"column_count"`
}

// GenerateFileSignature builds the signature for a sheet from its
// analysis. Pure and deterministic; no randomness, no clock.
func GenerateFileSignature(sheet *domain.Sheet, analysis *analyzer.Analysis) Signature {
	sig := Signature{
		KeywordCounts: map[string]int{},
		StructureType: domain.StructureUnknown,
		ColumnCount:   sheet.ColumnCount(),
	}

	headerRow := -1
	if analysis != nil {
		if best, ok := analysis.Best(); ok {
			sig.StructureType = best.Type
		}
		if table, ok := analysis.Candidate(domain.StructureTable); ok {
			headerRow = table.HeaderRow
		}
	}

	if headerRow >= 0 {
		for c := 0; c < sheet.ColumnCount(); c++ {
			header := analyzer.CellString(sheet.ValueAt(headerRow, c))
			sig.Headers = append(sig.Headers, normalizeSignatureHeader(header))
		}
	}

	census := analyzer.TakeCensus(sheet, headerRow)
	for _, col := range census.Columns {
		sig.ColumnTypes = append(sig.ColumnTypes, col.DominantType())
	}

	for r := 0; r < sheet.RowCount(); r++ {
		if r == headerRow {
			continue
		}
		for c := 0; c < sheet.ColumnCount(); c++ {
			text := analyzer.CellString(sheet.ValueAt(r, c))
			if text == "" {
				continue
			}
			if score := analyzer.ScoreText(text, analyzer.AccountRules); score.Value > 0 {
				sig.KeywordCounts[score.Category]++
			}
		}
	}

	return sig
}

// Key returns a stable content-addressed key for the signature, used as
// the template storage key.
func (s Signature) Key() string {
	// json.Marshal sorts map keys, so the encoding is canonical.
	encoded, _ := json.Marshal(s)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func normalizeSignatureHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(header)), " ")
}

// sortedCategories returns the union of keyword categories across two
// signatures in stable order.
func sortedCategories(a, b map[string]int) []string {
	seen := map[string]bool{}
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	categories := make([]string, 0, len(seen))
	for k := range seen {
		categories = append(categories, k)
	}
	sort.Strings(categories)
	return categories
}
