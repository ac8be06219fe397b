package matcher

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

// memStore is an in-memory Store for resolver tests
type memStore struct {
	companies []Company
	matches   []NameMatch
	unmatched map[string]int
}

func newMemStore() *memStore {
	return &memStore{unmatched: make(map[string]int)}
}

func (s *memStore) ListCompanies() ([]Company, error) { return s.companies, nil }

func (s *memStore) ListNameMatches() ([]NameMatch, error) { return s.matches, nil }

func (s *memStore) InsertNameMatchIfAbsent(m NameMatch) (bool, error) {
	for _, existing := range s.matches {
		if existing.Original == m.Original && existing.CompanyID == m.CompanyID {
			return false, nil
		}
	}
	s.matches = append(s.matches, m)
	return true, nil
}

func (s *memStore) HasManualMatches() (bool, error) {
	for _, m := range s.matches {
		if m.ManualMatch {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) HasAutomaticMatches() (bool, error) {
	for _, m := range s.matches {
		if !m.ManualMatch && !m.FalsePositive {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MergeUnmatchedCounts(counts map[string]int) error {
	for name, n := range counts {
		s.unmatched[name] += n
	}
	return nil
}

// stubEngine returns a canned result and records the request it was given
type stubEngine struct {
	result  *Result
	lastReq *Request
}

func (e *stubEngine) Match(ctx context.Context, req Request) (*Result, error) {
	e.lastReq = &req
	if e.result == nil {
		return &Result{}, nil
	}
	return e.result, nil
}

func record(name, merchant string, amount float64) *ingest.TransactionRecord {
	return &ingest.TransactionRecord{
		UserID:       "user-1",
		CardID:       "card-1",
		Name:         name,
		MerchantName: merchant,
		Amount:       amount,
	}
}

func TestResolver_ManualBeatsAutomatic(t *testing.T) {
	store := newMemStore()
	store.matches = []NameMatch{
		{Original: "NETFLIX.COM", CompanyID: "c-wrong", CompanyName: "Netlify", ManualMatch: false},
		{Original: "NETFLIX.COM", CompanyID: "c-netflix", CompanyName: "Netflix", ManualMatch: true},
	}
	engine := &stubEngine{}
	r := NewResolver(store, engine, DefaultThresholds(), Seeds{}, slog.Default())

	rec := record("NETFLIX.COM", "", 15.49)
	stats, err := r.Resolve(context.Background(), []*ingest.TransactionRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, "c-netflix", rec.CompanyID)
	assert.Equal(t, 1, stats.ExistingMatches)
	assert.Nil(t, engine.lastReq, "fully resolved runs must not invoke the fuzzy engine")
}

func TestResolver_FalsePositiveIsInvisible(t *testing.T) {
	store := newMemStore()
	store.matches = []NameMatch{
		{Original: "ACME", CompanyID: "c-acme", CompanyName: "Acme Co", FalsePositive: true},
	}
	engine := &stubEngine{}
	r := NewResolver(store, engine, DefaultThresholds(), Seeds{}, slog.Default())

	rec := record("ACME", "", 10)
	stats, err := r.Resolve(context.Background(), []*ingest.TransactionRecord{rec})
	require.NoError(t, err)

	assert.Empty(t, rec.CompanyID)
	assert.Equal(t, 0, stats.ExistingMatches)
	assert.Equal(t, 1, stats.NotMapped)
	require.NotNil(t, engine.lastReq)
	assert.Len(t, engine.lastReq.FalsePositives, 1)
}

func TestResolver_EngineMatchesAreCachedAndAssigned(t *testing.T) {
	store := newMemStore()
	store.companies = []Company{{ID: "c-acme", Name: "Acme Co"}}
	engine := &stubEngine{result: &Result{
		Matched: []Match{{Original: "ACME CO #1234", CompanyName: "Acme Co", CompanyID: "c-acme"}},
	}}
	r := NewResolver(store, engine, DefaultThresholds(), Seeds{}, slog.Default())

	rec := record("ACME CO #1234", "", 9.99)
	stats, err := r.Resolve(context.Background(), []*ingest.TransactionRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, "c-acme", rec.CompanyID)
	assert.Equal(t, 1, stats.NewMatches)
	assert.Equal(t, 0, stats.NotMapped)

	// Cached for the next run, without duplication on replay
	inserted, err := store.InsertNameMatchIfAbsent(NameMatch{Original: "ACME CO #1234", CompanyID: "c-acme"})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestResolver_UnmatchedCountsMergeMonotonically(t *testing.T) {
	store := newMemStore()
	engine := &stubEngine{result: &Result{
		Unmatched: []UnmatchedCount{{Original: "Ace Hardware #5", Count: 3}},
	}}
	r := NewResolver(store, engine, DefaultThresholds(), Seeds{}, slog.Default())

	recs := []*ingest.TransactionRecord{record("Ace Hardware #5", "", 5)}
	_, err := r.Resolve(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 3, store.unmatched["Ace Hardware #5"])

	engine.result.Unmatched[0].Count = 2
	recs[0].CompanyID = ""
	_, err = r.Resolve(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 5, store.unmatched["Ace Hardware #5"])
}

func TestResolver_BootstrapSeedsFirstRunOnly(t *testing.T) {
	store := newMemStore()
	engine := &stubEngine{}
	seeds := Seeds{
		ManualMatches: []ManualSeed{
			{Original: "NETFLIX.COM", CompanyName: "Netflix", CompanyID: "c-netflix"},
		},
		FalsePositives: []FalsePositiveSeed{
			{Original: "SHELL GAME LLC", CompanyName: "Shell"},
		},
	}
	r := NewResolver(store, engine, DefaultThresholds(), seeds, slog.Default())

	rec := record("NETFLIX.COM", "", 15.49)
	stats, err := r.Resolve(context.Background(), []*ingest.TransactionRecord{rec})
	require.NoError(t, err)

	// Seeded manual entry resolved the record in the same run
	assert.Equal(t, "c-netflix", rec.CompanyID)
	assert.Equal(t, 1, stats.ExistingMatches)

	seeded := 0
	for _, m := range store.matches {
		if m.ManualMatch || m.FalsePositive {
			seeded++
		}
	}
	assert.Equal(t, 2, seeded)

	// Second run: manual entries exist, seeding must not duplicate
	rec2 := record("NETFLIX.COM", "", 15.49)
	_, err = r.Resolve(context.Background(), []*ingest.TransactionRecord{rec2})
	require.NoError(t, err)
	assert.Len(t, store.matches, 2)
}

func TestResolver_MerchantNameFallback(t *testing.T) {
	store := newMemStore()
	store.matches = []NameMatch{
		{Original: "Netflix", CompanyID: "c-netflix", CompanyName: "Netflix", ManualMatch: true},
	}
	r := NewResolver(store, &stubEngine{}, DefaultThresholds(), Seeds{}, slog.Default())

	rec := record("POS DEBIT 8876 NFLX", "Netflix", 15.49)
	_, err := r.Resolve(context.Background(), []*ingest.TransactionRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, "c-netflix", rec.CompanyID)
}

func TestResolver_CompanySetAtMostOnce(t *testing.T) {
	store := newMemStore()
	store.matches = []NameMatch{
		{Original: "NETFLIX.COM", CompanyID: "c-netflix", CompanyName: "Netflix", ManualMatch: true},
	}
	r := NewResolver(store, &stubEngine{}, DefaultThresholds(), Seeds{}, slog.Default())

	rec := record("NETFLIX.COM", "", 15.49)
	rec.CompanyID = "c-preassigned"
	stats, err := r.Resolve(context.Background(), []*ingest.TransactionRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, "c-preassigned", rec.CompanyID)
	assert.Equal(t, 0, stats.ExistingMatches)
}
