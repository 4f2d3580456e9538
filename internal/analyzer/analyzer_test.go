package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestAnalyzeSheetMonthlyTracker(t *testing.T) {
	analysis := AnalyzeSheet(monthlySheet())

	best, ok := analysis.Best()
	require.True(t, ok)
	assert.Equal(t, domain.StructureTable, best.Type)
	assert.Equal(t, 0, best.HeaderRow)

	ts, ok := analysis.Candidate(domain.StructureTimeSeries)
	require.True(t, ok)
	assert.Equal(t, domain.OrientationColumns, ts.Orientation)
	assert.Len(t, ts.TemporalIndexes, 12)

	table, _ := analysis.Candidate(domain.StructureTable)
	require.Len(t, table.Columns, 13)
	assert.Equal(t, domain.CellTypeText, table.Columns[0].Type)
	assert.Equal(t, "Account", table.Columns[0].Header)
	assert.Equal(t, domain.CellTypeNumber, table.Columns[1].Type)
}

func TestAnalyzeSheetCandidatesSortedByConfidence(t *testing.T) {
	analysis := AnalyzeSheet(monthlySheet())
	require.NotEmpty(t, analysis.Candidates)
	for i := 1; i < len(analysis.Candidates); i++ {
		assert.GreaterOrEqual(t,
			analysis.Candidates[i-1].Confidence,
			analysis.Candidates[i].Confidence)
	}
}

func TestDetectHierarchy(t *testing.T) {
	sheet := &domain.Sheet{
		Name: "hierarchy",
		Data: [][]interface{}{
			{"Assets"},
			{"  Checking"},
			{"  Savings"},
			{"Liabilities"},
			{"  Mortgage"},
			{"  Car Loan"},
		},
	}

	analysis := AnalyzeSheet(sheet)
	h, ok := analysis.Candidate(domain.StructureHierarchy)
	require.True(t, ok)
	assert.Len(t, h.IndentLevels, 4)
	assert.InDelta(t, 4.0/6.0, h.Confidence, 1e-9)
}

func TestDetectMatrix(t *testing.T) {
	sheet := &domain.Sheet{
		Name: "matrix",
		Data: [][]interface{}{
			{"", "North", "South", "West"},
			{"Alpha", 10.0, 20.0, 30.0},
			{"Beta", 40.0, 50.0, 60.0},
			{"Gamma", 70.0, 80.0, 90.0},
		},
	}

	analysis := AnalyzeSheet(sheet)
	m, ok := analysis.Candidate(domain.StructureMatrix)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.NumericFill)
}

func TestAnalyzeEmptySheet(t *testing.T) {
	a := New(nil)
	_, err := a.Analyze(&domain.Sheet{Name: "empty"})
	require.Error(t, err)
}

func TestBuildKeywordIndex(t *testing.T) {
	analysis := AnalyzeSheet(monthlySheet())
	assert.Greater(t, analysis.KeywordIndex[CategoryAsset], 0)
	assert.Greater(t, analysis.KeywordIndex[CategoryLiability], 0)
	assert.Greater(t, analysis.KeywordIndex[CategoryTemporal], 0)
}
