package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/pkg/contracts/domain"
)

func fingerprint() FileFingerprint {
	return FileFingerprint{
		Name:    "networth.xlsx",
		Size:    2048,
		ModTime: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCacheKeyStable(t *testing.T) {
	options := ImportOptions{DedupStrategy: "smart", ReferenceYear: 2024}

	a, err := CacheKey(fingerprint(), options)
	require.NoError(t, err)
	b, err := CacheKey(fingerprint(), options)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCacheKeySensitivity(t *testing.T) {
	base, err := CacheKey(fingerprint(), ImportOptions{})
	require.NoError(t, err)

	renamed := fingerprint()
	renamed.Name = "other.xlsx"
	resized := fingerprint()
	resized.Size++
	touched := fingerprint()
	touched.ModTime = touched.ModTime.Add(time.Second)

	for _, fp := range []FileFingerprint{renamed, resized, touched} {
		key, err := CacheKey(fp, ImportOptions{})
		require.NoError(t, err)
		assert.NotEqual(t, base, key)
	}

	retuned, err := CacheKey(fingerprint(), ImportOptions{ReferenceYear: 2023})
	require.NoError(t, err)
	assert.NotEqual(t, base, retuned)
}

func TestResultCacheReturnsIsolatedCopies(t *testing.T) {
	cache := NewResultCache(5*time.Minute, 8)
	result := &domain.ImportResult{
		Success:  true,
		Accounts: []domain.Account{{ID: "a1", Name: "Checking", NormalizedName: "checking", Type: domain.AccountAsset}},
	}
	require.NoError(t, cache.Put("k", result))

	first, ok := cache.Get("k")
	require.True(t, ok)
	first.Accounts[0].Name = "Tampered"

	second, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, "Checking", second.Accounts[0].Name)
}

func TestResultCacheExpiry(t *testing.T) {
	cache := NewResultCache(5*time.Minute, 8)
	current := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	require.NoError(t, cache.Put("k", &domain.ImportResult{Success: true}))

	_, ok := cache.Get("k")
	assert.True(t, ok)

	current = current.Add(5*time.Minute + time.Second)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestResultCacheEvictsOldest(t *testing.T) {
	cache := NewResultCache(5*time.Minute, 2)
	current := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	require.NoError(t, cache.Put("first", &domain.ImportResult{}))
	current = current.Add(time.Second)
	require.NoError(t, cache.Put("second", &domain.ImportResult{}))
	current = current.Add(time.Second)
	require.NoError(t, cache.Put("third", &domain.ImportResult{}))

	_, ok := cache.Get("first")
	assert.False(t, ok)
	_, ok = cache.Get("second")
	assert.True(t, ok)
	_, ok = cache.Get("third")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())
}
