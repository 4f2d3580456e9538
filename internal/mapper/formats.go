package mapper

import (
	"strings"

	"finsheet/pkg/contracts/domain"
)

// ExportFormat describes one known bank/PFM export layout by the header
// vocabulary it ships with. Headers are matched as lowercase keyword
// sets; column positions come from the actual sheet.
type ExportFormat struct {
	Name    string
	Account []string // aliases for the account column header
	Value   []string
	Category []string
	Date    []string
}

// knownFormats are fixed signatures for common personal-finance exports.
var knownFormats = []ExportFormat{
	{
		Name:     "mint",
		Account:  []string{"account name", "account"},
		Value:    []string{"amount"},
		Category: []string{"category"},
		Date:     []string{"date"},
	},
	{
		Name:     "ynab",
		Account:  []string{"account"},
		Value:    []string{"amount", "outflow"},
		Category: []string{"category", "category group"},
		Date:     []string{"date"},
	},
	{
		Name:     "personal-capital",
		Account:  []string{"account", "account name"},
		Value:    []string{"amount", "balance"},
		Category: []string{"category"},
		Date:     []string{"date"},
	},
	{
		Name:    "bank-statement",
		Account: []string{"description", "payee", "merchant"},
		Value:   []string{"amount", "debit", "credit", "withdrawal", "deposit"},
		Date:    []string{"date", "posted date", "transaction date"},
	},
}

// FormatMatch is a recognized export format with the concrete mapping it
// implies for this sheet.
type FormatMatch struct {
	Name       string
	Mapping    domain.SingleMapping
	Confidence float64
}

// MatchExportFormat compares the sheet's headers against the known
// export-format signatures and returns the best match. Confidence is the
// fraction of the format's required roles found in the headers.
func MatchExportFormat(headers []string) (FormatMatch, bool) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var best FormatMatch
	for _, format := range knownFormats {
		account := findHeader(normalized, format.Account)
		value := findHeader(normalized, format.Value)
		if account < 0 || value < 0 || account == value {
			continue
		}

		mapping := domain.NewSingleMapping(account, value)
		matched, total := 2, 2
		if len(format.Category) > 0 {
			total++
			if idx := findHeader(normalized, format.Category); idx >= 0 {
				mapping.Category = idx
				matched++
			}
		}
		if len(format.Date) > 0 {
			total++
			if idx := findHeader(normalized, format.Date); idx >= 0 {
				mapping.Date = idx
				matched++
			}
		}

		confidence := float64(matched) / float64(total)
		if confidence > best.Confidence {
			best = FormatMatch{Name: format.Name, Mapping: mapping, Confidence: confidence}
		}
	}

	return best, best.Confidence > 0
}

func findHeader(headers []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if h == alias {
				return i
			}
		}
	}
	return -1
}
