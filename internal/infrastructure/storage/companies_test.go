package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
)

func TestListCompanies_ExcludesHidden(t *testing.T) {
	store := createTempStorage(t)

	require.NoError(t, store.InsertCompany(matcher.Company{ID: "c-1", Name: "Acme Co"}))
	require.NoError(t, store.InsertCompany(matcher.Company{ID: "c-2", Name: "Retired Inc", Hidden: true}))

	companies, err := store.ListCompanies()
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme Co", companies[0].Name)
}

func TestInsertNameMatchIfAbsent(t *testing.T) {
	store := createTempStorage(t)
	require.NoError(t, store.InsertCompany(matcher.Company{ID: "c-1", Name: "Acme Co"}))

	match := matcher.NameMatch{
		ID:          "nm-1",
		Original:    "ACME CO #1234",
		CompanyID:   "c-1",
		CompanyName: "Acme Co",
	}

	inserted, err := store.InsertNameMatchIfAbsent(match)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Replaying the same (original, company) pair is a no-op
	match.ID = "nm-2"
	inserted, err = store.InsertNameMatchIfAbsent(match)
	require.NoError(t, err)
	assert.False(t, inserted)

	matches, err := store.ListNameMatches()
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestHasMatches_SeedBootstrapFlags(t *testing.T) {
	store := createTempStorage(t)

	hasManual, err := store.HasManualMatches()
	require.NoError(t, err)
	assert.False(t, hasManual)

	hasAuto, err := store.HasAutomaticMatches()
	require.NoError(t, err)
	assert.False(t, hasAuto)

	_, err = store.InsertNameMatchIfAbsent(matcher.NameMatch{
		ID: "nm-1", Original: "ACME", CompanyID: "c-1", CompanyName: "Acme Co", ManualMatch: true,
	})
	require.NoError(t, err)
	_, err = store.InsertNameMatchIfAbsent(matcher.NameMatch{
		ID: "nm-2", Original: "BOGUS", CompanyID: "c-2", CompanyName: "Bogus", FalsePositive: true,
	})
	require.NoError(t, err)

	hasManual, err = store.HasManualMatches()
	require.NoError(t, err)
	assert.True(t, hasManual)

	hasAuto, err = store.HasAutomaticMatches()
	require.NoError(t, err)
	assert.True(t, hasAuto)
}

func TestMergeUnmatchedCounts_Monotonic(t *testing.T) {
	store := createTempStorage(t)

	require.NoError(t, store.MergeUnmatchedCounts(map[string]int{
		"MYSTERY SHOP": 3,
		"CORNER STORE": 1,
	}))
	require.NoError(t, store.MergeUnmatchedCounts(map[string]int{
		"MYSTERY SHOP": 2,
	}))

	count, err := store.GetUnmatchedCount("MYSTERY SHOP")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	count, err = store.GetUnmatchedCount("CORNER STORE")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMergeUnmatchedCounts_Empty(t *testing.T) {
	store := createTempStorage(t)
	require.NoError(t, store.MergeUnmatchedCounts(nil))
}
