// Package classifier scores sheet columns against the financial-domain
// rule tables and produces ranked role assignments plus concrete mapping
// suggestions. All scoring is deterministic and keyword/statistics
// driven; confidences stay on the internal 0-1 scale.
package classifier

import (
	"fmt"
	"log/slog"
	"time"

	"finsheet/internal/analyzer"
	"finsheet/pkg/contracts/domain"
)

// Value-role subtypes.
const (
	ValueBalance = "balance"
	ValueChange  = "change"
	ValueAmount  = "amount"
)

// Role confidences for value columns. The magnitude cutoff separating
// balances from amounts is a tunable, passed in from config.
const (
	balanceConfidence = 0.8
	changeConfidence  = 0.7
	amountConfidence  = 0.6
)

const maxSamples = 3

// Classifier assigns financial roles to sheet columns.
type Classifier struct {
	logger           *slog.Logger
	balanceMagnitude float64
}

// New creates a classifier. balanceMagnitude is the absolute value above
// which a numeric column is treated as a balance column.
func New(logger *slog.Logger, balanceMagnitude float64) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if balanceMagnitude <= 0 {
		balanceMagnitude = 1000
	}
	return &Classifier{
		logger:           logger.With(slog.String("component", "classifier")),
		balanceMagnitude: balanceMagnitude,
	}
}

// Classify produces the full Classification for one analyzed sheet.
func (c *Classifier) Classify(sheet *domain.Sheet, analysis *analyzer.Analysis) *domain.Classification {
	result := ClassifySheet(sheet, analysis, c.balanceMagnitude)

	c.logger.Debug("classification complete",
		slog.String("sheet", sheet.Name),
		slog.String("sheet_type", string(result.SheetType)),
		slog.Float64("confidence", result.Confidence),
		slog.Int("suggestions", len(result.Suggestions)))

	return result
}

// ClassifySheet is the pure classification function shared by the worker
// pool and the synchronous fallback.
func ClassifySheet(sheet *domain.Sheet, analysis *analyzer.Analysis, balanceMagnitude float64) *domain.Classification {
	result := &domain.Classification{
		SheetType:  domain.StructureUnknown,
		TypeScores: analysis.TypeScores(),
	}
	if best, ok := analysis.Best(); ok {
		result.SheetType = best.Type
	}

	table, hasTable := analysis.Candidate(domain.StructureTable)
	if hasTable {
		result.AccountMappings = classifyAccountColumns(sheet, table)
		result.CategoryMappings = classifyCategoryColumns(table, result.AccountMappings)
	}
	result.ValueMappings = classifyValueColumns(analysis.Census, balanceMagnitude)
	result.TemporalMappings = classifyTemporalAxis(sheet, analysis)

	buildSuggestions(result)
	validate(result)
	result.Confidence = aggregateConfidence(analysis, result)

	return result
}

// classifyAccountColumns scores every text column of the table candidate
// against the account vocabularies. Column confidence is the average
// per-cell score, restricted to non-header cells.
func classifyAccountColumns(sheet *domain.Sheet, table domain.StructureCandidate) []domain.RoleMapping {
	var mappings []domain.RoleMapping
	for _, col := range table.Columns {
		if col.Type != domain.CellTypeText {
			continue
		}

		var sum float64
		categoryVotes := make(map[string]int)
		var samples []string
		cells := 0
		for r := 0; r < sheet.RowCount(); r++ {
			if r == table.HeaderRow {
				continue
			}
			text := analyzer.CellString(sheet.ValueAt(r, col.Index))
			if text == "" {
				continue
			}
			cells++
			if len(samples) < maxSamples {
				samples = append(samples, text)
			}
			score := analyzer.ScoreText(text, analyzer.AccountRules)
			sum += score.Value
			if score.Category != "" {
				categoryVotes[score.Category]++
			}
		}
		if cells == 0 {
			continue
		}

		// Header keywords count too: a column literally named "Account"
		// is an account column even when its values are opaque names.
		headerScore := analyzer.ScoreText(col.Header, analyzer.AccountRules)
		confidence := sum / float64(cells)
		if isAccountHeader(col.Header) {
			confidence = maxFloat(confidence, 0.75)
		} else if headerScore.Value > confidence {
			confidence = headerScore.Value
		}
		if confidence == 0 {
			continue
		}

		mappings = append(mappings, domain.RoleMapping{
			Index:      col.Index,
			Subtype:    topVote(categoryVotes, headerScore.Category),
			Confidence: clamp01(confidence),
			Samples:    samples,
		})
	}
	return mappings
}

// classifyValueColumns labels numeric columns from the census: large
// magnitudes are balances, negative-bearing columns are changes, the rest
// are plain amounts.
func classifyValueColumns(census analyzer.Census, balanceMagnitude float64) []domain.RoleMapping {
	var mappings []domain.RoleMapping
	for _, col := range census.Columns {
		if col.NonEmpty == 0 || col.NumericShare < 0.5 {
			continue
		}
		subtype, confidence := ValueAmount, amountConfidence
		switch {
		case col.MaxAbs >= balanceMagnitude:
			subtype, confidence = ValueBalance, balanceConfidence
		case col.HasNegative:
			subtype, confidence = ValueChange, changeConfidence
		}
		mappings = append(mappings, domain.RoleMapping{
			Index:      col.Index,
			Subtype:    subtype,
			Confidence: confidence,
		})
	}
	return mappings
}

// classifyTemporalAxis reuses the time-series candidate, resolving each
// matched header to its calendar month where possible.
func classifyTemporalAxis(sheet *domain.Sheet, analysis *analyzer.Analysis) []domain.RoleMapping {
	ts, ok := analysis.Candidate(domain.StructureTimeSeries)
	if !ok {
		return nil
	}

	var mappings []domain.RoleMapping
	for _, idx := range ts.TemporalIndexes {
		var header string
		if ts.Orientation == domain.OrientationColumns {
			header = analyzer.CellString(sheet.ValueAt(0, idx))
		} else {
			header = analyzer.CellString(sheet.ValueAt(idx, 0))
		}
		mapping := domain.RoleMapping{
			Index:      idx,
			Subtype:    "year",
			Confidence: ts.Confidence,
			Samples:    []string{header},
		}
		if month, found := analyzer.MonthFromText(header); found {
			mapping.Subtype = "month"
			mapping.Period = month
		}
		mappings = append(mappings, mapping)
	}
	return mappings
}

// classifyCategoryColumns marks text columns whose header names a
// grouping concept, excluding columns already claimed as account columns.
func classifyCategoryColumns(table domain.StructureCandidate, accounts []domain.RoleMapping) []domain.RoleMapping {
	claimed := make(map[int]bool, len(accounts))
	for _, m := range accounts {
		claimed[m.Index] = true
	}

	var mappings []domain.RoleMapping
	for _, col := range table.Columns {
		if col.Type != domain.CellTypeText || claimed[col.Index] {
			continue
		}
		if isCategoryHeader(col.Header) {
			mappings = append(mappings, domain.RoleMapping{
				Index:      col.Index,
				Subtype:    "category",
				Confidence: 0.7,
			})
		}
	}
	return mappings
}

// buildSuggestions assembles the ranked concrete mapping proposals. The
// single suggestion pairs the best account and value columns; a monthly
// suggestion supersedes it when at least three month columns resolved.
func buildSuggestions(result *domain.Classification) {
	accountIdx, accountConf := bestMapping(result.AccountMappings)
	valueIdx, valueConf := bestMapping(result.ValueMappings)

	months := make(map[time.Month]int)
	for _, m := range result.TemporalMappings {
		if m.Subtype == "month" && m.Period != 0 {
			months[m.Period] = m.Index
		}
	}

	if accountIdx >= 0 && len(months) >= 3 {
		result.Suggestions = append(result.Suggestions, domain.MappingSuggestion{
			Mapping:    domain.MonthlyMapping{Account: accountIdx, Months: months},
			Source:     "classifier",
			Confidence: (accountConf + meanConfidence(result.TemporalMappings)) / 2,
		})
	}

	if accountIdx >= 0 && valueIdx >= 0 && accountIdx != valueIdx {
		single := domain.NewSingleMapping(accountIdx, valueIdx)
		if catIdx, _ := bestMapping(result.CategoryMappings); catIdx >= 0 {
			single.Category = catIdx
		}
		result.Suggestions = append(result.Suggestions, domain.MappingSuggestion{
			Mapping:    single,
			Source:     "classifier",
			Confidence: (accountConf + valueConf) / 2,
		})
	}
}

// validate emits warnings for missing roles and a hard error when one
// column carries both an account and a value role. The contradiction
// blocks the single suggestion from being used as-is.
func validate(result *domain.Classification) {
	if len(result.AccountMappings) == 0 {
		result.Warnings = append(result.Warnings, "no account column identified")
	}
	if len(result.ValueMappings) == 0 {
		result.Warnings = append(result.Warnings, "no value column identified")
	}

	valueCols := make(map[int]bool, len(result.ValueMappings))
	for _, v := range result.ValueMappings {
		valueCols[v.Index] = true
	}
	for _, a := range result.AccountMappings {
		if valueCols[a.Index] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("column %d is assigned both an account role and a value role", a.Index))
		}
	}
}

// aggregateConfidence averages the sheet-type, account and value
// confidences over whichever are present.
func aggregateConfidence(analysis *analyzer.Analysis, result *domain.Classification) float64 {
	var parts []float64
	if best, ok := analysis.Best(); ok {
		parts = append(parts, best.Confidence)
	}
	if len(result.AccountMappings) > 0 {
		parts = append(parts, meanConfidence(result.AccountMappings))
	}
	if len(result.ValueMappings) > 0 {
		parts = append(parts, meanConfidence(result.ValueMappings))
	}
	if len(parts) == 0 {
		return 0
	}
	var sum float64
	for _, p := range parts {
		sum += p
	}
	return clamp01(sum / float64(len(parts)))
}

func bestMapping(mappings []domain.RoleMapping) (int, float64) {
	idx, conf := -1, 0.0
	for _, m := range mappings {
		if m.Confidence > conf {
			idx, conf = m.Index, m.Confidence
		}
	}
	return idx, conf
}

func meanConfidence(mappings []domain.RoleMapping) float64 {
	if len(mappings) == 0 {
		return 0
	}
	var sum float64
	for _, m := range mappings {
		sum += m.Confidence
	}
	return sum / float64(len(mappings))
}

func topVote(votes map[string]int, fallback string) string {
	best, bestCount := fallback, 0
	for cat, count := range votes {
		if count > bestCount {
			best, bestCount = cat, count
		}
	}
	if best == "" {
		best = analyzer.CategoryAsset
	}
	return best
}

func isAccountHeader(header string) bool {
	switch normalizeHeader(header) {
	case "account", "accounts", "account name", "name", "description", "item":
		return true
	}
	return false
}

func isCategoryHeader(header string) bool {
	switch normalizeHeader(header) {
	case "category", "type", "group", "class", "classification":
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
