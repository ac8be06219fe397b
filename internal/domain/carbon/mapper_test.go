package carbon

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

type stubStore struct {
	mappings []Mapping
	err      error
	calls    int
}

func (s *stubStore) ListCarbonMappings() ([]Mapping, error) {
	s.calls++
	return s.mappings, s.err
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Shops:Hardware Store", Key([]string{" Shops ", "Hardware Store"}))
	assert.Equal(t, "Travel", Key([]string{"Travel"}))
	assert.Equal(t, "", Key(nil))

	// Case is preserved, not folded
	assert.NotEqual(t, Key([]string{"shops"}), Key([]string{"Shops"}))
}

func TestMapper_Apply(t *testing.T) {
	store := &stubStore{mappings: []Mapping{
		{CategoryKey: "Shops:Hardware Store", Multiplier: 0.42, Sector: "Retail", Subsector: "Home Improvement"},
	}}
	mapper := NewMapper(store, slog.Default())

	rec := &ingest.TransactionRecord{Categories: []string{"Shops", "Hardware Store"}}
	require.NoError(t, mapper.Apply(rec))

	assert.Equal(t, "Retail", rec.Sector)
	assert.Equal(t, "Home Improvement", rec.Subsector)
	require.NotNil(t, rec.CarbonMultiplier)
	assert.Equal(t, 0.42, *rec.CarbonMultiplier)
}

func TestMapper_ApplyMissIsSilent(t *testing.T) {
	mapper := NewMapper(&stubStore{}, slog.Default())

	rec := &ingest.TransactionRecord{Categories: []string{"Unknown Category"}}
	require.NoError(t, mapper.Apply(rec))

	assert.Empty(t, rec.Sector)
	assert.Nil(t, rec.CarbonMultiplier)
}

func TestMapper_ApplyKeepsExistingSector(t *testing.T) {
	store := &stubStore{mappings: []Mapping{
		{CategoryKey: "Travel", Multiplier: 1.8, Sector: "Transport"},
	}}
	mapper := NewMapper(store, slog.Default())

	rec := &ingest.TransactionRecord{Categories: []string{"Travel"}, Sector: "Aviation"}
	require.NoError(t, mapper.Apply(rec))

	assert.Equal(t, "Aviation", rec.Sector)
	assert.Nil(t, rec.CarbonMultiplier)
}

func TestMapper_LoadsOnce(t *testing.T) {
	store := &stubStore{}
	mapper := NewMapper(store, slog.Default())

	for i := 0; i < 3; i++ {
		require.NoError(t, mapper.Apply(&ingest.TransactionRecord{Categories: []string{"Travel"}}))
	}
	assert.Equal(t, 1, store.calls)
}

func TestMapper_LoadError(t *testing.T) {
	store := &stubStore{err: errors.New("db closed")}
	mapper := NewMapper(store, slog.Default())

	err := mapper.Apply(&ingest.TransactionRecord{Categories: []string{"Travel"}})
	assert.Error(t, err)
}
