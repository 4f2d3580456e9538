package analyzer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finsheet/pkg/contracts/domain"
)

var (
	currencyPattern = regexp.MustCompile(`^\(?\s*[-+]?[$€£¥]\s*[\d,]+(\.\d+)?\s*\)?$`)
	numberPattern   = regexp.MustCompile(`^\(?\s*[-+]?[\d,]+(\.\d+)?\s*\)?$`)
	percentPattern  = regexp.MustCompile(`^[-+]?[\d,]+(\.\d+)?\s*%$`)
	datePattern     = regexp.MustCompile(`^\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}$`)
)

// ClassifyValue types a raw cell value using the same heuristics across
// analysis and transformation.
func ClassifyValue(v interface{}) domain.CellType {
	switch value := v.(type) {
	case nil:
		return domain.CellTypeEmpty
	case float64, float32, int, int32, int64:
		return domain.CellTypeNumber
	case time.Time:
		return domain.CellTypeDate
	case bool:
		return domain.CellTypeText
	case string:
		trimmed := strings.TrimSpace(value)
		switch {
		case trimmed == "":
			return domain.CellTypeEmpty
		case strings.HasPrefix(trimmed, "="):
			return domain.CellTypeFormula
		case currencyPattern.MatchString(trimmed):
			return domain.CellTypeCurrency
		case percentPattern.MatchString(trimmed):
			return domain.CellTypePercentage
		case datePattern.MatchString(trimmed):
			return domain.CellTypeDate
		case numberPattern.MatchString(trimmed):
			return domain.CellTypeNumber
		default:
			return domain.CellTypeText
		}
	default:
		return domain.CellTypeText
	}
}

// ParseNumeric interprets a raw cell value as a number, stripping
// currency symbols and thousands separators and treating parenthesized
// values as negative.
func ParseNumeric(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case int32:
		return float64(value), true
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return 0, false
		}
		negative := false
		if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
			negative = true
			trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "("), ")")
		}
		trimmed = strings.TrimSpace(trimmed)
		for _, sym := range []string{"$", "€", "£", "¥"} {
			trimmed = strings.ReplaceAll(trimmed, sym, "")
		}
		trimmed = strings.ReplaceAll(trimmed, ",", "")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return 0, false
		}
		if negative {
			parsed = -parsed
		}
		return parsed, true
	default:
		return 0, false
	}
}

// CellString renders a raw cell value as text for keyword matching.
func CellString(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case time.Time:
		return value.Format("2006-01-02")
	default:
		return ""
	}
}

// ColumnCensus summarizes the typed contents of one column.
type ColumnCensus struct {
	Index        int
	Counts       map[domain.CellType]int
	NonEmpty     int
	NumericShare float64
	MaxAbs       float64
	HasNegative  bool
}

// Census is the sheet-wide data-type census plus per-column breakdowns.
type Census struct {
	Counts  map[domain.CellType]int
	Columns []ColumnCensus
}

// TakeCensus walks every cell once and records the type distribution,
// excluding a designated header row from the per-column counts (pass -1
// to include all rows).
func TakeCensus(sheet *domain.Sheet, headerRow int) Census {
	cols := sheet.ColumnCount()
	census := Census{
		Counts:  make(map[domain.CellType]int),
		Columns: make([]ColumnCensus, cols),
	}
	for c := 0; c < cols; c++ {
		census.Columns[c] = ColumnCensus{Index: c, Counts: make(map[domain.CellType]int)}
	}

	for r := 0; r < sheet.RowCount(); r++ {
		for c := 0; c < cols; c++ {
			v := sheet.ValueAt(r, c)
			t := ClassifyValue(v)
			census.Counts[t]++

			if r == headerRow {
				continue
			}
			col := &census.Columns[c]
			col.Counts[t]++
			if t != domain.CellTypeEmpty {
				col.NonEmpty++
			}
			if t == domain.CellTypeNumber || t == domain.CellTypeCurrency {
				if n, ok := ParseNumeric(v); ok {
					if abs := math.Abs(n); abs > col.MaxAbs {
						col.MaxAbs = abs
					}
					if n < 0 {
						col.HasNegative = true
					}
				}
			}
		}
	}

	for c := range census.Columns {
		col := &census.Columns[c]
		if col.NonEmpty > 0 {
			numeric := col.Counts[domain.CellTypeNumber] + col.Counts[domain.CellTypeCurrency]
			col.NumericShare = float64(numeric) / float64(col.NonEmpty)
		}
	}

	return census
}

// DominantType returns the column's majority type with the priority order
// currency > date > number > text. Empty cells are excluded from the vote.
func (c ColumnCensus) DominantType() domain.CellType {
	if c.NonEmpty == 0 {
		return domain.CellTypeEmpty
	}
	priority := []domain.CellType{
		domain.CellTypeCurrency,
		domain.CellTypeDate,
		domain.CellTypeNumber,
		domain.CellTypeText,
	}
	best := domain.CellTypeText
	bestCount := -1
	for _, t := range priority {
		if count := c.Counts[t]; count > bestCount {
			best = t
			bestCount = count
		}
	}
	return best
}
