// Package transform implements the five-stage transformation pass that
// turns extracted rows into typed Account and Transaction records under a
// validated Mapping. Each stage consumes only the previous stage's
// output; no stage re-reads raw input.
package transform

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"finsheet/internal/analyzer"
	"finsheet/pkg/contracts/domain"
)

// Item is one row's worth of data flowing through the pipeline. Items
// accumulate validation errors instead of being discarded; downstream
// consumers decide what to act on.
type Item struct {
	Row         int
	AccountName string
	AccountType domain.AccountType
	TypeExplicit bool

	// Single-value fields.
	RawValue   interface{}
	Value      float64
	ValueValid bool
	Category   string
	RawDate    string
	Date       time.Time
	DateValid  bool

	// Monthly fields.
	MonthlyRaw   map[time.Month]interface{}
	Monthly      map[time.Month]float64
	MonthlyValid map[time.Month]bool

	Confidence       float64
	ValidationErrors []string
}

// Options tunes one transformation run.
type Options struct {
	// HeaderRow is skipped during extraction; -1 when the sheet has no
	// header.
	HeaderRow int
	// ReferenceYear anchors monthly transactions that carry no explicit
	// year. Zero means the current year.
	ReferenceYear int
	// ChunkSize bounds how many rows are processed between cancellation
	// checks. Zero means no chunking.
	ChunkSize int
}

// Pipeline runs the five transformation stages.
type Pipeline struct {
	logger *slog.Logger
	opts   Options
}

// NewPipeline creates a transformation pipeline.
func NewPipeline(logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReferenceYear == 0 {
		opts.ReferenceYear = time.Now().Year()
	}
	return &Pipeline{
		logger: logger.With(slog.String("component", "transform")),
		opts:   opts,
	}
}

// Run executes the full pass, yielding between chunks of items so a
// cancelled context stops the work promptly. The per-item stages are
// pure, so chunked application produces the same output as one pass.
func (p *Pipeline) Run(ctx context.Context, sheet *domain.Sheet, mapping domain.Mapping) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := extract(sheet, mapping, p.opts.HeaderRow)
	chunk := p.opts.ChunkSize
	if chunk <= 0 {
		chunk = len(items) + 1
	}
	for start := 0; start < len(items); start += chunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + chunk
		if end > len(items) {
			end = len(items)
		}
		clean(items[start:end])
		validate(items[start:end], mapping.Kind())
		enrich(items[start:end], mapping.Kind())
		normalize(items[start:end])
	}

	result := generate(items, mapping.Kind(), p.opts.ReferenceYear)

	p.logger.Debug("transformation complete",
		slog.String("sheet", sheet.Name),
		slog.Int("accounts", len(result.Accounts)),
		slog.Int("transactions", len(result.Transactions)),
		slog.Int("invalid_items", result.Statistics.InvalidItems))

	return result, nil
}

// TransformSheet is the pure transformation function. Both the worker
// pool and the synchronous fallback call it, which guarantees the two
// execution paths produce identical results.
func TransformSheet(sheet *domain.Sheet, mapping domain.Mapping, opts Options) *Result {
	if opts.ReferenceYear == 0 {
		opts.ReferenceYear = time.Now().Year()
	}
	items := extract(sheet, mapping, opts.HeaderRow)
	clean(items)
	validate(items, mapping.Kind())
	enrich(items, mapping.Kind())
	normalize(items)
	return generate(items, mapping.Kind(), opts.ReferenceYear)
}

// extract pulls the mapped cells out of each data row.
func extract(sheet *domain.Sheet, mapping domain.Mapping, headerRow int) []*Item {
	var items []*Item
	for r := 0; r < sheet.RowCount(); r++ {
		if r == headerRow {
			continue
		}

		item := &Item{Row: r}
		item.AccountName = analyzer.CellString(sheet.ValueAt(r, mapping.AccountColumn()))

		switch m := mapping.(type) {
		case domain.SingleMapping:
			item.RawValue = sheet.ValueAt(r, m.Value)
			if m.Category >= 0 {
				item.Category = analyzer.CellString(sheet.ValueAt(r, m.Category))
			}
			if m.Date >= 0 {
				item.RawDate = analyzer.CellString(sheet.ValueAt(r, m.Date))
			}
		case domain.MonthlyMapping:
			item.MonthlyRaw = make(map[time.Month]interface{}, len(m.Months))
			for month, col := range m.Months {
				item.MonthlyRaw[month] = sheet.ValueAt(r, col)
			}
		}

		// Rows that carry neither a label nor any value are skipped
		// outright; fully empty rows are padding, not data.
		if strings.TrimSpace(item.AccountName) == "" && isRowEmpty(item) {
			continue
		}
		items = append(items, item)
	}
	return items
}

func isRowEmpty(item *Item) bool {
	if item.RawValue != nil && analyzer.ClassifyValue(item.RawValue) != domain.CellTypeEmpty {
		return false
	}
	for _, v := range item.MonthlyRaw {
		if analyzer.ClassifyValue(v) != domain.CellTypeEmpty {
			return false
		}
	}
	return true
}

// clean trims and collapses whitespace in text fields and normalizes
// numeric-looking strings. Dates are parsed best-effort; unparseable
// dates are left for validation to flag, never silently substituted.
func clean(items []*Item) {
	for _, item := range items {
		item.AccountName = collapseWhitespace(item.AccountName)
		item.Category = collapseWhitespace(item.Category)

		if item.RawValue != nil {
			item.Value, item.ValueValid = analyzer.ParseNumeric(item.RawValue)
		}
		if item.RawDate != "" {
			item.Date, item.DateValid = parseDate(item.RawDate)
		}

		if len(item.MonthlyRaw) > 0 {
			item.Monthly = make(map[time.Month]float64, len(item.MonthlyRaw))
			item.MonthlyValid = make(map[time.Month]bool, len(item.MonthlyRaw))
			for month, raw := range item.MonthlyRaw {
				if analyzer.ClassifyValue(raw) == domain.CellTypeEmpty {
					continue
				}
				if v, ok := analyzer.ParseNumeric(raw); ok {
					item.Monthly[month] = v
					item.MonthlyValid[month] = true
				} else {
					item.MonthlyValid[month] = false
				}
			}
		}
	}
}

// validate records specific validation errors per item without
// discarding anything.
func validate(items []*Item, kind domain.MappingKind) {
	for _, item := range items {
		if strings.TrimSpace(item.AccountName) == "" {
			item.ValidationErrors = append(item.ValidationErrors, "missing account name")
		} else if analyzer.IsCalculationRow(item.AccountName) {
			// Totals and subtotals are derived from other rows; importing
			// them would double-count.
			item.ValidationErrors = append(item.ValidationErrors, "derived row (total/subtotal)")
		}
		switch kind {
		case domain.MappingSingle:
			if !item.ValueValid {
				item.ValidationErrors = append(item.ValidationErrors, "invalid numeric value")
			}
			if item.RawDate != "" && !item.DateValid {
				item.ValidationErrors = append(item.ValidationErrors, "unparseable date")
			}
		case domain.MappingMonthly:
			if len(item.Monthly) == 0 {
				item.ValidationErrors = append(item.ValidationErrors, "no valid month found")
			}
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var dateLayouts = []string{
	"2006-01-02", "01/02/2006", "1/2/2006", "2006/01/02",
	"02-01-2006", "Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
}

func parseDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
