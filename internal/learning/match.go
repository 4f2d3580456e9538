package learning

import (
	"math"

	"github.com/xrash/smetrics"
)

// Match weights. Header-set similarity dominates, structure agreement
// and keyword profile follow, and heavily used templates get a small
// boost.
const (
	weightHeaders   = 0.4
	weightStructure = 0.3
	weightKeywords  = 0.2
	weightUsage     = 0.1

	// headerPairThreshold is the minimum Levenshtein ratio for two
	// headers to count as the same column.
	headerPairThreshold = 0.8

	// EligibleThreshold is the minimum match score for a template to be
	// offered to mapping synthesis at all.
	EligibleThreshold = 0.7

	// usageSaturation is the usage count at which the boost maxes out.
	usageSaturation = 20
)

// scoreSignatures computes the weighted blend of header similarity,
// structure agreement, keyword-profile similarity and usage boost.
func scoreSignatures(current, stored Signature, usageCount int) float64 {
	score := weightHeaders * headerSimilarity(current.Headers, stored.Headers)

	if current.StructureType == stored.StructureType {
		score += weightStructure
	}

	score += weightKeywords * keywordSimilarity(current.KeywordCounts, stored.KeywordCounts)
	score += weightUsage * math.Min(float64(usageCount)/usageSaturation, 1.0)

	return score
}

// headerSimilarity greedily pairs each header in a with its best match
// in b; a pair counts only when its Levenshtein ratio clears the
// acceptance threshold. The result is matched pairs over the larger set.
func headerSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	used := make([]bool, len(b))
	matched := 0
	for _, header := range a {
		bestIdx, bestRatio := -1, 0.0
		for i, candidate := range b {
			if used[i] {
				continue
			}
			if r := levenshteinRatio(header, candidate); r > bestRatio {
				bestIdx, bestRatio = i, r
			}
		}
		if bestIdx >= 0 && bestRatio >= headerPairThreshold {
			used[bestIdx] = true
			matched++
		}
	}

	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(matched) / float64(denom)
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	distance := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return 1 - float64(distance)/float64(longest)
}

// keywordSimilarity compares keyword-category counts by per-category
// relative difference, averaged across the union of categories.
func keywordSimilarity(a, b map[string]int) float64 {
	categories := sortedCategories(a, b)
	if len(categories) == 0 {
		return 1
	}

	var sum float64
	for _, category := range categories {
		ca, cb := float64(a[category]), float64(b[category])
		larger := math.Max(ca, cb)
		if larger == 0 {
			sum += 1
			continue
		}
		sum += 1 - math.Abs(ca-cb)/larger
	}
	return sum / float64(len(categories))
}
