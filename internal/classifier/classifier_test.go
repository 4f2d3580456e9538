package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/analyzer"
	"finsheet/pkg/contracts/domain"
)

func monthlySheet() *domain.Sheet {
	return &domain.Sheet{
		Name: "Monthly Net Worth Tracker",
		Data: [][]interface{}{
			{"Account", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
			{"Checking", "1,200.00", "1,250.00", "1,300.00", "1,100.00", "1,400.00", "1,500.00", "1,450.00", "1,600.00", "1,550.00", "1,700.00", "1,750.00", "1,800.00"},
			{"Savings", "5,000.00", "5,100.00", "5,200.00", "5,300.00", "5,400.00", "5,500.00", "5,600.00", "5,700.00", "5,800.00", "5,900.00", "6,000.00", "6,100.00"},
			{"Brokerage", "10,000.00", "10,500.00", "9,800.00", "11,000.00", "11,200.00", "11,500.00", "12,000.00", "12,300.00", "12,100.00", "12,600.00", "13,000.00", "13,400.00"},
			{"Mortgage", "(150,000.00)", "(149,500.00)", "(149,000.00)", "(148,500.00)", "(148,000.00)", "(147,500.00)", "(147,000.00)", "(146,500.00)", "(146,000.00)", "(145,500.00)", "(145,000.00)", "(144,500.00)"},
			{"Car Loan", "(8,000.00)", "(7,800.00)", "(7,600.00)", "(7,400.00)", "(7,200.00)", "(7,000.00)", "(6,800.00)", "(6,600.00)", "(6,400.00)", "(6,200.00)", "(6,000.00)", "(5,800.00)"},
		},
	}
}

func TestClassifyMonthlyTracker(t *testing.T) {
	sheet := monthlySheet()
	analysis := analyzer.AnalyzeSheet(sheet)

	c := New(nil, 1000)
	result := c.Classify(sheet, analysis)

	assert.Equal(t, domain.StructureTable, result.SheetType)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)

	require.NotEmpty(t, result.AccountMappings)
	assert.Equal(t, 0, result.AccountMappings[0].Index)
	assert.GreaterOrEqual(t, result.AccountMappings[0].Confidence, 0.75)

	// Every month column resolves to its calendar month.
	months := make(map[time.Month]bool)
	for _, m := range result.TemporalMappings {
		if m.Subtype == "month" {
			months[m.Period] = true
		}
	}
	assert.Len(t, months, 12)

	// The monthly suggestion outranks the single one.
	require.NotEmpty(t, result.Suggestions)
	assert.Equal(t, domain.MappingMonthly, result.Suggestions[0].Mapping.Kind())
	monthly := result.Suggestions[0].Mapping.(domain.MonthlyMapping)
	assert.Equal(t, 0, monthly.Account)
	assert.Len(t, monthly.Months, 12)
	assert.Empty(t, result.Errors)
}

func TestClassifyValueSubtypes(t *testing.T) {
	sheet := &domain.Sheet{
		Name: "subtypes",
		Data: [][]interface{}{
			{"Account", "Balance", "Change", "Fee"},
			{"Checking", "12,500.00", "-120.00", "5.00"},
			{"Savings", "30,000.00", "45.00", "2.50"},
			{"Brokerage", "99,000.00", "-300.00", "7.25"},
		},
	}
	analysis := analyzer.AnalyzeSheet(sheet)
	result := ClassifySheet(sheet, analysis, 1000)

	subtypes := make(map[int]string)
	for _, m := range result.ValueMappings {
		subtypes[m.Index] = m.Subtype
	}
	assert.Equal(t, ValueBalance, subtypes[1])
	assert.Equal(t, ValueChange, subtypes[2])
	assert.Equal(t, ValueAmount, subtypes[3])
}

func TestClassifyAccountHeaderFloorsConfidence(t *testing.T) {
	sheet := &domain.Sheet{
		Name: "opaque names",
		Data: [][]interface{}{
			{"Account", "Balance"},
			{"Zorblat Holdings", "12,500.00"},
			{"Quuxco", "30,000.00"},
			{"Vantrex LLC", "8,250.00"},
		},
	}
	analysis := analyzer.AnalyzeSheet(sheet)
	result := ClassifySheet(sheet, analysis, 1000)

	// The cell values score zero against the account vocabularies; the
	// column is carried to the 0.75 floor on the header name alone.
	require.NotEmpty(t, result.AccountMappings)
	assert.Equal(t, 0, result.AccountMappings[0].Index)
	assert.Equal(t, 0.75, result.AccountMappings[0].Confidence)
}

func TestClassifyWarningsWhenRolesMissing(t *testing.T) {
	sheet := &domain.Sheet{
		Name: "opaque",
		Data: [][]interface{}{
			{"Alpha", "Beta"},
			{"xqz", "pqr"},
			{"lmn", "stu"},
		},
	}
	analysis := analyzer.AnalyzeSheet(sheet)
	result := ClassifySheet(sheet, analysis, 1000)

	assert.Contains(t, result.Warnings, "no account column identified")
	assert.Contains(t, result.Warnings, "no value column identified")
	assert.Empty(t, result.Suggestions)
}

func TestInferAccountType(t *testing.T) {
	tests := []struct {
		name    string
		want    domain.AccountType
		matched bool
	}{
		{"Checking Account", domain.AccountAsset, true},
		{"Mortgage", domain.AccountLiability, true},
		{"Credit Card", domain.AccountLiability, true},
		{"Mystery", domain.AccountAsset, false},
	}
	for _, tt := range tests {
		got, matched := InferAccountType(tt.name)
		assert.Equal(t, tt.want, got, tt.name)
		assert.Equal(t, tt.matched, matched, tt.name)
	}
}

func TestNormalizeAccountType(t *testing.T) {
	for raw, want := range map[string]domain.AccountType{
		"Assets":      domain.AccountAsset,
		"asset":       domain.AccountAsset,
		"Liabilities": domain.AccountLiability,
		"debt":        domain.AccountLiability,
	} {
		got, ok := NormalizeAccountType(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := NormalizeAccountType("other")
	assert.False(t, ok)
}
