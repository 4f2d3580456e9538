package classifier

import (
	"strings"

	"finsheet/internal/analyzer"
	"finsheet/pkg/contracts/domain"
)

// normalizeHeader lowercases and trims a header for exact matching.
func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// InferAccountType derives asset vs liability from the account
// vocabularies. Liability keywords take precedence over asset keywords on
// conflict; the default is asset. The second return reports whether any
// keyword actually matched, as opposed to falling through to the default.
func InferAccountType(name string) (domain.AccountType, bool) {
	var assetScore, liabilityScore float64
	for _, rule := range analyzer.AccountRules {
		score := analyzer.ScoreText(name, []analyzer.Rule{rule})
		switch rule.Category {
		case analyzer.CategoryAsset:
			assetScore = score.Value
		case analyzer.CategoryLiability:
			liabilityScore = score.Value
		}
	}

	switch {
	case liabilityScore > 0:
		return domain.AccountLiability, true
	case assetScore > 0:
		return domain.AccountAsset, true
	default:
		return domain.AccountAsset, false
	}
}

// NormalizeAccountType folds plural and variant spellings into the
// canonical asset/liability vocabulary.
func NormalizeAccountType(raw string) (domain.AccountType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asset", "assets":
		return domain.AccountAsset, true
	case "liability", "liabilities", "debt", "debts":
		return domain.AccountLiability, true
	default:
		return "", false
	}
}
