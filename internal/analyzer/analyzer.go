package analyzer

import (
	"log/slog"
	"sort"
	"strings"

	"finsheet/internal/errors"
	"finsheet/pkg/contracts/domain"
)

// Detector thresholds. Header and matrix fill fractions follow the 70%
// convention; hierarchies need more than three indented rows to count.
const (
	headerStringFraction = 0.7
	matrixNumericFill    = 0.7
	minTemporalMatches   = 3
	minIndentedRows      = 4
)

// Analysis is the structure analyzer's full output for one sheet: every
// layout hypothesis that fired, a flat keyword-occurrence index and the
// data-type census. Ambiguity between candidates is resolved downstream.
type Analysis struct {
	Candidates   []domain.StructureCandidate
	KeywordIndex map[string]int
	Census       Census
}

// Best returns the highest-confidence candidate, or false when no
// detector fired.
func (a *Analysis) Best() (domain.StructureCandidate, bool) {
	if len(a.Candidates) == 0 {
		return domain.StructureCandidate{}, false
	}
	return a.Candidates[0], true
}

// Candidate returns the candidate of the given type, if present.
func (a *Analysis) Candidate(t domain.StructureType) (domain.StructureCandidate, bool) {
	for _, c := range a.Candidates {
		if c.Type == t {
			return c, true
		}
	}
	return domain.StructureCandidate{}, false
}

// TypeScores maps each structure type to its detector confidence.
func (a *Analysis) TypeScores() map[domain.StructureType]float64 {
	scores := make(map[domain.StructureType]float64, len(a.Candidates))
	for _, c := range a.Candidates {
		scores[c.Type] = c.Confidence
	}
	return scores
}

// Analyzer detects candidate layouts in extracted sheets.
type Analyzer struct {
	logger *slog.Logger
}

// New creates a structure analyzer.
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger.With(slog.String("component", "analyzer"))}
}

// Analyze runs all four detectors independently over the sheet. Every
// detector may fire; the candidate list is ordered by confidence. An
// empty sheet is a structure-detection error, not a panic downstream.
func (a *Analyzer) Analyze(sheet *domain.Sheet) (*Analysis, error) {
	if sheet == nil || sheet.RowCount() == 0 || sheet.ColumnCount() == 0 {
		return nil, errors.NewStructureDetection("sheet has no data to analyze")
	}

	analysis := AnalyzeSheet(sheet)

	a.logger.Debug("structure analysis complete",
		slog.String("sheet", sheet.Name),
		slog.Int("candidates", len(analysis.Candidates)),
		slog.Int("rows", sheet.RowCount()),
		slog.Int("columns", sheet.ColumnCount()))

	return analysis, nil
}

// AnalyzeSheet is the pure analysis function. The worker pool and the
// synchronous fallback both call it, so the two execution paths cannot
// diverge.
func AnalyzeSheet(sheet *domain.Sheet) *Analysis {
	analysis := &Analysis{
		KeywordIndex: buildKeywordIndex(sheet),
	}

	headerRow := -1
	if table, ok := detectTable(sheet); ok {
		headerRow = table.HeaderRow
		analysis.Candidates = append(analysis.Candidates, table)
	}
	analysis.Census = TakeCensus(sheet, headerRow)

	// The table detector types its columns from the census, so it fills
	// them in after the census exists.
	for i := range analysis.Candidates {
		if analysis.Candidates[i].Type == domain.StructureTable {
			fillColumnProfiles(sheet, &analysis.Candidates[i], analysis.Census)
		}
	}

	if ts, ok := detectTimeSeries(sheet); ok {
		analysis.Candidates = append(analysis.Candidates, ts)
	}
	if h, ok := detectHierarchy(sheet); ok {
		analysis.Candidates = append(analysis.Candidates, h)
	}
	if m, ok := detectMatrix(sheet); ok {
		analysis.Candidates = append(analysis.Candidates, m)
	}

	sort.SliceStable(analysis.Candidates, func(i, j int) bool {
		return analysis.Candidates[i].Confidence > analysis.Candidates[j].Confidence
	})

	return analysis
}

// buildKeywordIndex counts keyword-category occurrences across all text
// cells.
func buildKeywordIndex(sheet *domain.Sheet) map[string]int {
	index := make(map[string]int)
	for r := 0; r < sheet.RowCount(); r++ {
		for c := 0; c < sheet.ColumnCount(); c++ {
			text := CellString(sheet.ValueAt(r, c))
			if text == "" {
				continue
			}
			if score := ScoreText(text, AccountRules); score.Value > 0 {
				index[score.Category]++
			}
			if IsTemporal(text) {
				index[CategoryTemporal]++
			}
			if IsCalculationRow(text) {
				index[CategoryCalculation]++
			}
		}
	}
	return index
}

// detectTable finds the first row where at least 70% of cells are
// non-numeric strings and proposes it as a header.
func detectTable(sheet *domain.Sheet) (domain.StructureCandidate, bool) {
	maxScan := sheet.RowCount()
	if maxScan > 10 {
		maxScan = 10
	}

	for r := 0; r < maxScan; r++ {
		cols := sheet.ColumnCount()
		nonEmpty, stringCells := 0, 0
		for c := 0; c < cols; c++ {
			t := ClassifyValue(sheet.ValueAt(r, c))
			if t == domain.CellTypeEmpty {
				continue
			}
			nonEmpty++
			if t == domain.CellTypeText {
				stringCells++
			}
		}
		if nonEmpty == 0 {
			continue
		}
		fraction := float64(stringCells) / float64(nonEmpty)
		if fraction >= headerStringFraction {
			return domain.StructureCandidate{
				Type:       domain.StructureTable,
				Confidence: fraction,
				HeaderRow:  r,
			}, true
		}
	}
	return domain.StructureCandidate{}, false
}

// fillColumnProfiles types each table column by majority vote over its
// non-header cells.
func fillColumnProfiles(sheet *domain.Sheet, table *domain.StructureCandidate, census Census) {
	cols := sheet.ColumnCount()
	table.Columns = make([]domain.ColumnProfile, 0, cols)
	for c := 0; c < cols; c++ {
		table.Columns = append(table.Columns, domain.ColumnProfile{
			Index:    c,
			Header:   strings.TrimSpace(CellString(sheet.ValueAt(table.HeaderRow, c))),
			Type:     census.Columns[c].DominantType(),
			NonEmpty: census.Columns[c].NonEmpty,
		})
	}
}

// detectTimeSeries qualifies a sheet when at least three columns or rows
// carry temporal keywords; orientation follows the axis with more matches.
func detectTimeSeries(sheet *domain.Sheet) (domain.StructureCandidate, bool) {
	var colMatches, rowMatches []int
	for c := 0; c < sheet.ColumnCount(); c++ {
		if IsTemporal(CellString(sheet.ValueAt(0, c))) {
			colMatches = append(colMatches, c)
		}
	}
	for r := 0; r < sheet.RowCount(); r++ {
		if IsTemporal(CellString(sheet.ValueAt(r, 0))) {
			rowMatches = append(rowMatches, r)
		}
	}

	if len(colMatches) < minTemporalMatches && len(rowMatches) < minTemporalMatches {
		return domain.StructureCandidate{}, false
	}

	candidate := domain.StructureCandidate{Type: domain.StructureTimeSeries}
	if len(colMatches) >= len(rowMatches) {
		candidate.Orientation = domain.OrientationColumns
		candidate.TemporalIndexes = colMatches
		candidate.Confidence = float64(len(colMatches)) / float64(sheet.ColumnCount())
	} else {
		candidate.Orientation = domain.OrientationRows
		candidate.TemporalIndexes = rowMatches
		candidate.Confidence = float64(len(rowMatches)) / float64(sheet.RowCount())
	}
	return candidate, true
}

// detectHierarchy looks for leading-whitespace indentation on
// first-column string cells.
func detectHierarchy(sheet *domain.Sheet) (domain.StructureCandidate, bool) {
	levels := make(map[int]int)
	stringRows := 0
	for r := 0; r < sheet.RowCount(); r++ {
		raw, ok := sheet.ValueAt(r, 0).(string)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		stringRows++
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		if indent > 0 {
			levels[r] = indent
		}
	}

	if len(levels) < minIndentedRows || stringRows == 0 {
		return domain.StructureCandidate{}, false
	}

	return domain.StructureCandidate{
		Type:         domain.StructureHierarchy,
		Confidence:   float64(len(levels)) / float64(stringRows),
		IndentLevels: levels,
	}, true
}

// detectMatrix fires when both the first row and the first column
// (excluding the shared corner) hold non-numeric labels and the remaining
// rectangle is at least 70% numeric.
func detectMatrix(sheet *domain.Sheet) (domain.StructureCandidate, bool) {
	rows, cols := sheet.RowCount(), sheet.ColumnCount()
	if rows < 2 || cols < 2 {
		return domain.StructureCandidate{}, false
	}

	for c := 1; c < cols; c++ {
		if t := ClassifyValue(sheet.ValueAt(0, c)); t != domain.CellTypeText {
			return domain.StructureCandidate{}, false
		}
	}
	for r := 1; r < rows; r++ {
		if t := ClassifyValue(sheet.ValueAt(r, 0)); t != domain.CellTypeText {
			return domain.StructureCandidate{}, false
		}
	}

	numeric, total := 0, 0
	for r := 1; r < rows; r++ {
		for c := 1; c < cols; c++ {
			total++
			t := ClassifyValue(sheet.ValueAt(r, c))
			if t == domain.CellTypeNumber || t == domain.CellTypeCurrency {
				numeric++
			}
		}
	}
	if total == 0 {
		return domain.StructureCandidate{}, false
	}

	fill := float64(numeric) / float64(total)
	if fill < matrixNumericFill {
		return domain.StructureCandidate{}, false
	}

	return domain.StructureCandidate{
		Type:        domain.StructureMatrix,
		Confidence:  fill,
		NumericFill: fill,
	}, true
}
