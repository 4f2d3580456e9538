package analyzer

import (
	"regexp"
	"strings"
	"time"
)

// Keyword categories used across analysis, classification and enrichment.
const (
	CategoryAsset       = "asset"
	CategoryLiability   = "liability"
	CategoryIncome      = "income"
	CategoryExpense     = "expense"
	CategoryTemporal    = "temporal"
	CategoryCalculation = "calculation"
)

// Rule is one declarative scoring rule: a category, its keyword list and
// a weight. Rule tables are versioned as a whole so heuristic changes are
// visible in diffs and testable in isolation.
type Rule struct {
	Category string
	Keywords []string
	Weight   float64
}

// RuleTableVersion identifies the current heuristic tables.
const RuleTableVersion = "2025-06"

// AccountRules score text against the financial account vocabularies.
var AccountRules = []Rule{
	{
		Category: CategoryAsset,
		Weight:   1.0,
		Keywords: []string{
			"cash", "checking", "savings", "saving", "investment", "investments",
			"brokerage", "stocks", "stock", "bonds", "bond", "401k", "ira",
			"roth", "pension", "retirement", "house", "home", "property",
			"real estate", "vehicle", "car", "asset", "assets", "deposit",
			"portfolio", "fund", "equity", "crypto", "bitcoin", "hsa",
		},
	},
	{
		Category: CategoryLiability,
		Weight:   1.0,
		Keywords: []string{
			"mortgage", "loan", "loans", "credit card", "credit", "debt",
			"liability", "liabilities", "owed", "payable", "heloc",
			"student loan", "auto loan", "car loan", "line of credit",
			"balance due", "overdraft",
		},
	},
	{
		Category: CategoryIncome,
		Weight:   1.0,
		Keywords: []string{
			"income", "salary", "wages", "wage", "revenue", "earnings",
			"dividend", "dividends", "interest earned", "bonus", "commission",
			"deposit", "paycheck", "refund",
		},
	},
	{
		Category: CategoryExpense,
		Weight:   1.0,
		Keywords: []string{
			"expense", "expenses", "rent", "utilities", "groceries", "food",
			"insurance", "payment", "bill", "bills", "subscription", "cost",
			"costs", "spending", "withdrawal", "fee", "fees", "tax", "taxes",
		},
	},
}

// CalculationKeywords mark derived rows (totals, subtotals) that should
// not become accounts.
var CalculationKeywords = []string{
	"total", "subtotal", "sum", "net", "gross", "average", "avg",
	"difference", "change", "growth", "balance",
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	quarterPattern = regexp.MustCompile(`^q[1-4]$|^quarter\s*[1-4]$`)
	yearPattern    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	wordSplitter   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Score is the outcome of scoring one text against the rule tables.
type Score struct {
	Category string
	Value    float64
}

// ScoreText scores a text cell against every rule table and returns the
// top category with its normalized score. A whole-word match counts 1.0,
// a substring match 0.5; the sum is normalized by the vocabulary size and
// scaled by the rule weight.
func ScoreText(text string, rules []Rule) Score {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Score{}
	}

	words := make(map[string]bool)
	for _, w := range wordSplitter.Split(normalized, -1) {
		if w != "" {
			words[w] = true
		}
	}

	var best Score
	for _, rule := range rules {
		var sum float64
		for _, kw := range rule.Keywords {
			switch {
			case words[kw] || normalized == kw:
				sum += 1.0
			case strings.Contains(normalized, kw):
				sum += 0.5
			}
		}
		score := sum / float64(len(rule.Keywords)) * rule.Weight
		if score > best.Value {
			best = Score{Category: rule.Category, Value: score}
		}
	}
	return best
}

// IsTemporal reports whether a text names a time period: a month name or
// abbreviation, a quarter, or a 4-digit year.
func IsTemporal(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	if _, ok := MonthFromText(normalized); ok {
		return true
	}
	if quarterPattern.MatchString(normalized) {
		return true
	}
	return yearPattern.MatchString(normalized)
}

// MonthFromText resolves a month keyword ("Jan", "january", "Jan 2025")
// to its calendar month.
func MonthFromText(text string) (time.Month, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if m, ok := monthNames[normalized]; ok {
		return m, true
	}
	// Headers like "Jan 2025" or "January '25" still resolve.
	for _, w := range wordSplitter.Split(normalized, -1) {
		if m, ok := monthNames[w]; ok {
			return m, true
		}
	}
	return 0, false
}

// IsCalculationRow reports whether a label names a derived row such as a
// total or subtotal.
func IsCalculationRow(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range CalculationKeywords {
		if strings.HasPrefix(normalized, kw) {
			return true
		}
	}
	return false
}
