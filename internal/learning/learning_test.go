package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/analyzer"
	"finsheet/pkg/contracts/domain"
)

func trackerSheet() *domain.Sheet {
	return &domain.Sheet{
		Name: "tracker",
		Data: [][]interface{}{
			{"Account", "Jan", "Feb", "Mar"},
			{"Checking", "1,200.00", "1,250.00", "1,300.00"},
			{"Savings", "5,000.00", "5,100.00", "5,200.00"},
			{"Mortgage", "(150,000.00)", "(149,500.00)", "(149,000.00)"},
		},
	}
}

func trackerSignature() Signature {
	sheet := trackerSheet()
	return GenerateFileSignature(sheet, analyzer.AnalyzeSheet(sheet))
}

func bankMapping() MappingRecord {
	return MappingRecord{
		Envelope:   domain.EncodeMapping(domain.NewSingleMapping(0, 1)),
		Confidence: 0.9,
	}
}

func TestGenerateFileSignatureDeterministic(t *testing.T) {
	first := trackerSignature()
	second := trackerSignature()

	assert.Equal(t, first, second)
	assert.Equal(t, first.Key(), second.Key())

	assert.Equal(t, []string{"account", "jan", "feb", "mar"}, first.Headers)
	assert.Equal(t, 4, first.ColumnCount)
	assert.Equal(t, domain.StructureTable, first.StructureType)
	assert.Greater(t, first.KeywordCounts[analyzer.CategoryAsset], 0)
}

func TestSignatureKeyTracksContent(t *testing.T) {
	base := trackerSignature()

	altered := trackerSignature()
	altered.Headers[0] = "portfolio"
	assert.NotEqual(t, base.Key(), altered.Key())
}

func TestHeaderSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, headerSimilarity(
		[]string{"account", "amount"},
		[]string{"account", "amount"}))

	// "amounts" is within edit distance of "amount"; it still pairs.
	assert.Equal(t, 1.0, headerSimilarity(
		[]string{"account", "amount"},
		[]string{"account", "amounts"}))

	assert.Equal(t, 0.0, headerSimilarity(
		[]string{"account", "amount"},
		[]string{"xyzzy", "qwerty"}))

	// Unpaired extras dilute through the larger set.
	assert.InDelta(t, 0.5, headerSimilarity(
		[]string{"account", "amount"},
		[]string{"account", "amount", "bar2", "baz3"}), 1e-9)

	assert.Equal(t, 0.0, headerSimilarity(nil, []string{"account"}))
}

func TestKeywordSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, keywordSimilarity(nil, nil))
	assert.Equal(t, 1.0, keywordSimilarity(
		map[string]int{"asset": 3}, map[string]int{"asset": 3}))
	assert.InDelta(t, 0.5, keywordSimilarity(
		map[string]int{"asset": 4}, map[string]int{"asset": 2}), 1e-9)
	assert.Equal(t, 0.0, keywordSimilarity(
		map[string]int{"asset": 2}, map[string]int{"liability": 2}))
}

func TestScoreSignaturesWeights(t *testing.T) {
	sig := trackerSignature()

	// Perfect header, structure and keyword agreement with no usage.
	assert.InDelta(t, 0.9, scoreSignatures(sig, sig, 0), 1e-9)

	// Usage boost saturates at 0.1.
	assert.InDelta(t, 1.0, scoreSignatures(sig, sig, 20), 1e-9)
	assert.InDelta(t, 1.0, scoreSignatures(sig, sig, 200), 1e-9)

	mismatched := trackerSignature()
	mismatched.StructureType = domain.StructureMatrix
	assert.InDelta(t, 0.6, scoreSignatures(sig, mismatched, 0), 1e-9)
}

func TestSaveSuccessfulMappingInsertsThenReinforces(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", sig, bankMapping()))

	templates, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "bank", templates[0].Name)
	assert.Equal(t, 1, templates[0].UsageCount)
	assert.Equal(t, 0.9, templates[0].Confidence)

	// A re-save with the same signature reinforces instead of inserting.
	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank again", sig, bankMapping()))

	templates, err = system.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "bank", templates[0].Name)
	assert.Equal(t, 2, templates[0].UsageCount)
	assert.InDelta(t, 0.95, templates[0].Confidence, 1e-9)
}

func TestSaveSuccessfulMappingConfidenceCapped(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	record := bankMapping()
	record.Confidence = 0.98
	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", sig, record))
	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", sig, record))

	templates, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, 1.0, templates[0].Confidence)
}

func TestSaveSuccessfulMappingDistinctSignatures(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)

	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", trackerSignature(), bankMapping()))

	other := Signature{
		Headers:       []string{"date", "payee", "outflow", "inflow"},
		StructureType: domain.StructureMatrix,
		KeywordCounts: map[string]int{"temporal": 9},
		ColumnCount:   4,
	}
	require.NoError(t, system.SaveSuccessfulMapping(ctx, "budget", other, bankMapping()))

	templates, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 2)
}

func TestFindMatchingTemplate(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	match, err := system.FindMatchingTemplate(ctx, sig)
	require.NoError(t, err)
	assert.Nil(t, match)

	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", sig, bankMapping()))

	match, err = system.FindMatchingTemplate(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "bank", match.Template.Name)
	assert.Greater(t, match.Score, EligibleThreshold)

	// A structurally different sheet does not clear eligibility.
	unrelated := Signature{
		Headers:       []string{"xyzzy", "qwerty"},
		StructureType: domain.StructureHierarchy,
		KeywordCounts: map[string]int{"category": 7},
		ColumnCount:   2,
	}
	match, err = system.FindMatchingTemplate(ctx, unrelated)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestCorrectionsLiveApartFromTemplates(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	require.NoError(t, system.SaveCorrection(ctx, sig, bankMapping(), "wrong value column"))

	templates, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, templates)

	correction, score, err := system.FindMatchingCorrection(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, correction)
	assert.Equal(t, "wrong value column", correction.Note)
	assert.Greater(t, score, EligibleThreshold)
}

func TestRecordPatterns(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	require.NoError(t, system.RecordPatterns(ctx, sig))
	require.NoError(t, system.RecordPatterns(ctx, sig))

	bundle, err := system.Export(ctx)
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, p := range bundle.Patterns {
		counts[p.Key] = p.Count
	}
	assert.Equal(t, 2, counts["account"])
	assert.Equal(t, 2, counts["jan"])
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	require.NoError(t, source.SaveSuccessfulMapping(ctx, "bank", sig, bankMapping()))
	require.NoError(t, source.SaveCorrection(ctx, sig, bankMapping(), "note"))
	require.NoError(t, source.RecordPatterns(ctx, sig))

	bundle, err := source.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", bundle.Version)

	target := NewSystem(NewMemoryStore(), nil)
	require.NoError(t, target.Import(ctx, bundle))

	imported, err := target.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundle.Templates, imported.Templates)
	assert.Equal(t, bundle.Corrections, imported.Corrections)
	assert.Equal(t, bundle.Patterns, imported.Patterns)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	system := NewSystem(NewMemoryStore(), nil)
	err := system.Import(context.Background(), &Bundle{Version: "99"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestImportNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)
	sig := trackerSignature()

	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", sig, bankMapping()))
	existing, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, existing, 1)

	tampered := existing[0]
	tampered.Name = "impostor"
	tampered.Confidence = 0.1
	require.NoError(t, system.Import(ctx, &Bundle{
		Version:   bundleVersion,
		Templates: []Template{tampered},
	}))

	after, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "bank", after[0].Name)
	assert.Equal(t, existing[0].Confidence, after[0].Confidence)
}

func TestDeleteTemplate(t *testing.T) {
	ctx := context.Background()
	system := NewSystem(NewMemoryStore(), nil)

	require.NoError(t, system.SaveSuccessfulMapping(ctx, "bank", trackerSignature(), bankMapping()))
	templates, err := system.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	require.NoError(t, system.DeleteTemplate(ctx, templates[0].ID))
	templates, err = system.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "c", "k", []byte("value")))

	got, ok, err := store.Get(ctx, "c", "k")
	require.NoError(t, err)
	require.True(t, ok)
	got[0] = 'X'

	again, ok, err := store.Get(ctx, "c", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), again)

	require.NoError(t, store.Delete(ctx, "c", "k"))
	_, ok, err = store.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
