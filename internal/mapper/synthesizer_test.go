package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/errors"
	"finsheet/pkg/contracts/domain"
)

func tableSheet() *domain.Sheet {
	return &domain.Sheet{
		Name: "table",
		Data: [][]interface{}{
			{"Account", "Amount", "Category", "Date"},
			{"Checking", "100.00", "Banking", "2024-01-05"},
			{"Savings", "250.00", "Banking", "2024-01-06"},
		},
	}
}

func classificationWithSingle(account, value int, confidence float64) *domain.Classification {
	return &domain.Classification{
		Suggestions: []domain.MappingSuggestion{
			{
				Mapping:    domain.NewSingleMapping(account, value),
				Source:     "classifier",
				Confidence: confidence,
			},
		},
	}
}

func TestSynthesizeFromClassifier(t *testing.T) {
	s := NewSynthesizer(nil)
	mapping, source, err := s.Synthesize(tableSheet(), classificationWithSingle(0, 1, 0.9), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "classifier", source)
	assert.Equal(t, domain.MappingSingle, mapping.Kind())
}

func TestSynthesizeTemplateFillsUnsetFields(t *testing.T) {
	s := NewSynthesizer(nil)

	tplMapping := domain.NewSingleMapping(0, 1)
	tplMapping.Category = 2
	tplMapping.Date = 3
	template := &TemplateMatch{Name: "bank", Mapping: tplMapping, Score: 0.95}

	mapping, source, err := s.Synthesize(tableSheet(), classificationWithSingle(0, 1, 0.9), template, nil)
	require.NoError(t, err)
	assert.Equal(t, "classifier+template", source)

	single := mapping.(domain.SingleMapping)
	assert.Equal(t, 2, single.Category)
	assert.Equal(t, 3, single.Date)
}

func TestSynthesizeLowScoringTemplateIgnored(t *testing.T) {
	s := NewSynthesizer(nil)

	tplMapping := domain.NewSingleMapping(0, 1)
	tplMapping.Category = 2
	template := &TemplateMatch{Name: "weak", Mapping: tplMapping, Score: 0.5}

	mapping, source, err := s.Synthesize(tableSheet(), classificationWithSingle(0, 1, 0.9), template, nil)
	require.NoError(t, err)
	assert.Equal(t, "classifier", source)
	assert.Equal(t, -1, mapping.(domain.SingleMapping).Category)
}

func TestSynthesizeFormatFallback(t *testing.T) {
	s := NewSynthesizer(nil)
	headers := []string{"Account", "Amount", "Category", "Date"}

	mapping, source, err := s.Synthesize(tableSheet(), nil, nil, headers)
	require.NoError(t, err)
	assert.Contains(t, source, "format:")

	single := mapping.(domain.SingleMapping)
	assert.Equal(t, 0, single.Account)
	assert.Equal(t, 1, single.Value)
}

func TestSynthesizeRejectsOutOfBounds(t *testing.T) {
	s := NewSynthesizer(nil)
	_, _, err := s.Synthesize(tableSheet(), classificationWithSingle(0, 9, 0.9), nil, nil)
	require.Error(t, err)

	ie := errors.AsImportError(err)
	assert.Equal(t, errors.CodeMapping, ie.Code)
	assert.Equal(t, errors.DetailColumnOutOfBounds, ie.Detail)
}

func TestSynthesizeNoEvidence(t *testing.T) {
	s := NewSynthesizer(nil)
	_, _, err := s.Synthesize(tableSheet(), nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.DetailMissingAccountColumn, errors.AsImportError(err).Detail)
}

func TestSynthesizeSkipsBlockedSingleSuggestion(t *testing.T) {
	s := NewSynthesizer(nil)
	classification := classificationWithSingle(0, 1, 0.9)
	classification.Errors = []string{"column 0 is assigned both an account role and a value role"}

	// With the single suggestion blocked and no other evidence, synthesis
	// must fail rather than apply a contradictory mapping.
	_, _, err := s.Synthesize(tableSheet(), classification, nil, nil)
	require.Error(t, err)
}

func TestMatchExportFormat(t *testing.T) {
	match, ok := MatchExportFormat([]string{"Date", "Account Name", "Amount", "Category"})
	require.True(t, ok)
	assert.Equal(t, "mint", match.Name)
	assert.Equal(t, 1, match.Mapping.Account)
	assert.Equal(t, 2, match.Mapping.Value)
	assert.Equal(t, 3, match.Mapping.Category)
	assert.Equal(t, 0, match.Mapping.Date)
	assert.Equal(t, 1.0, match.Confidence)

	_, ok = MatchExportFormat([]string{"Alpha", "Beta"})
	assert.False(t, ok)
}

func TestValidateMapping(t *testing.T) {
	tests := []struct {
		name       string
		mapping    domain.Mapping
		cols       int
		wantDetail string
	}{
		{name: "nil mapping", mapping: nil, cols: 4, wantDetail: errors.DetailMissingAccountColumn},
		{name: "missing value", mapping: domain.SingleMapping{Account: 0, Value: -1, Category: -1, Date: -1}, cols: 4, wantDetail: errors.DetailMissingValueColumn},
		{name: "no months", mapping: domain.MonthlyMapping{Account: 0}, cols: 4, wantDetail: errors.DetailMissingMonthColumns},
		{name: "out of bounds", mapping: domain.NewSingleMapping(0, 7), cols: 4, wantDetail: errors.DetailColumnOutOfBounds},
		{name: "valid", mapping: domain.NewSingleMapping(0, 1), cols: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMapping(tt.mapping, tt.cols)
			if tt.wantDetail == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantDetail, errors.AsImportError(err).Detail)
		})
	}
}
