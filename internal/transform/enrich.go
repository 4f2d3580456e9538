package transform

import (
	"math"
	"regexp"
	"strings"

	"finsheet/internal/classifier"
	"finsheet/pkg/contracts/domain"
)

// Enrichment confidence weights. Presence of an account name, a usable
// value, month coverage and the origin of the account type each
// contribute a fixed share of the item confidence.
const (
	weightNamePresence  = 0.3
	weightValueValidity = 0.3
	weightMonthCoverage = 0.3
	weightTypeOrigin    = 0.1
)

// enrich resolves each item's account type and scores a per-item
// confidence. A category cell naming the type directly wins over keyword
// inference; inference falls back to asset when nothing matches.
func enrich(items []*Item, kind domain.MappingKind) {
	for _, item := range items {
		if t, ok := classifier.NormalizeAccountType(item.Category); ok {
			item.AccountType = t
			item.TypeExplicit = true
		} else {
			item.AccountType, _ = classifier.InferAccountType(item.AccountName)
		}
		item.Confidence = itemConfidence(item, kind)
	}
}

func itemConfidence(item *Item, kind domain.MappingKind) float64 {
	var c float64
	if strings.TrimSpace(item.AccountName) != "" {
		c += weightNamePresence
	}

	switch kind {
	case domain.MappingSingle:
		if item.ValueValid {
			c += weightValueValidity + weightMonthCoverage
		}
	case domain.MappingMonthly:
		if len(item.Monthly) > 0 {
			c += weightValueValidity
		}
		if mapped := len(item.MonthlyRaw); mapped > 0 {
			c += weightMonthCoverage * float64(len(item.Monthly)) / float64(mapped)
		}
	}

	switch {
	case item.TypeExplicit:
		c += weightTypeOrigin
	default:
		if _, matched := classifier.InferAccountType(item.AccountName); matched {
			c += weightTypeOrigin * 0.5
		}
	}

	return math.Min(c, 1.0)
}

var nameStripper = regexp.MustCompile(`[^a-z0-9 ]+`)

// normalize canonicalizes names for identity matching and rounds all
// amounts to two decimals.
func normalize(items []*Item) {
	for _, item := range items {
		item.AccountName = strings.TrimSpace(item.AccountName)
		for month, v := range item.Monthly {
			item.Monthly[month] = round2(v)
		}
		if item.ValueValid {
			item.Value = round2(item.Value)
		}
	}
}

// NormalizeName produces the canonical identity form of an account name:
// lowercase, punctuation stripped, whitespace collapsed.
func NormalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	stripped := nameStripper.ReplaceAllString(lowered, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
