// Package carbon assigns sector and carbon-impact metadata to transactions
// based on their upstream category codes.
package carbon

import (
	"log/slog"
	"strings"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

// keyDelimiter joins raw category tokens into the lookup key. Tokens are
// trimmed but case is preserved: the reference data carries the upstream
// casing verbatim.
const keyDelimiter = ":"

// Mapping relates one normalized category key to its sector and carbon
// multiplier. Reference data, read-only during a run.
type Mapping struct {
	CategoryKey string  `yaml:"category_key"`
	Multiplier  float64 `yaml:"multiplier"`
	Sector      string  `yaml:"sector"`
	Subsector   string  `yaml:"subsector"`
}

// Store loads the reference mappings
type Store interface {
	ListCarbonMappings() ([]Mapping, error)
}

// Mapper performs category-key lookups against the reference mappings,
// loading them once per run and caching in memory
type Mapper struct {
	store  Store
	logger *slog.Logger

	cache  map[string]Mapping
	loaded bool
}

// NewMapper creates a mapper backed by the given reference store
func NewMapper(store Store, logger *slog.Logger) *Mapper {
	return &Mapper{
		store:  store,
		logger: logger,
	}
}

// Key builds the normalized lookup key from raw category tokens
func Key(categories []string) string {
	trimmed := make([]string, 0, len(categories))
	for _, c := range categories {
		trimmed = append(trimmed, strings.TrimSpace(c))
	}
	return strings.Join(trimmed, keyDelimiter)
}

// Apply assigns sector, subsector and carbon multiplier to the record when
// its category key resolves and no sector has been assigned yet. Lookup
// misses are silent: the record keeps a null sector and the run continues.
func (m *Mapper) Apply(rec *ingest.TransactionRecord) error {
	if err := m.ensureLoaded(); err != nil {
		return err
	}

	if rec.Sector != "" || len(rec.Categories) == 0 {
		return nil
	}

	mapping, ok := m.cache[Key(rec.Categories)]
	if !ok {
		return nil
	}

	rec.Sector = mapping.Sector
	rec.Subsector = mapping.Subsector
	multiplier := mapping.Multiplier
	rec.CarbonMultiplier = &multiplier
	return nil
}

func (m *Mapper) ensureLoaded() error {
	if m.loaded {
		return nil
	}

	mappings, err := m.store.ListCarbonMappings()
	if err != nil {
		return err
	}

	m.cache = make(map[string]Mapping, len(mappings))
	for _, mapping := range mappings {
		m.cache[mapping.CategoryKey] = mapping
	}
	m.loaded = true

	m.logger.Debug("Loaded carbon category mappings", "count", len(mappings))
	return nil
}
