package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/ecoledger/carbonsync-backend/internal/domain/carbon"
	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	cards          map[ingest.CardFingerprint]*ingest.Card
	transactions   map[ingest.TransactionFingerprint]*ingest.TransactionRecord
	companies      []matcher.Company
	nameMatches    []matcher.NameMatch
	unmatched      map[string]int
	carbonMappings []carbon.Mapping
	summaries      []RunSummary

	// Hooks for test assertions
	SaveTransactionCalled bool
	SaveRunSummaryCalled  bool
	LastSavedSummary      *RunSummary

	// Error injection for testing error paths
	FindCardErr        error
	InsertCardErr      error
	UpdateCardErr      error
	SaveTransactionErr error
	ListCompaniesErr   error
	SaveRunSummaryErr  error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		cards:        make(map[ingest.CardFingerprint]*ingest.Card),
		transactions: make(map[ingest.TransactionFingerprint]*ingest.TransactionRecord),
		unmatched:    make(map[string]int),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

func (m *MockRepository) FindCardByFingerprint(fp ingest.CardFingerprint) (*ingest.Card, error) {
	if m.FindCardErr != nil {
		return nil, m.FindCardErr
	}
	card, ok := m.cards[fp]
	if !ok {
		return nil, nil
	}
	clone := *card
	return &clone, nil
}

func (m *MockRepository) InsertCard(card *ingest.Card) error {
	if m.InsertCardErr != nil {
		return m.InsertCardErr
	}
	clone := *card
	m.cards[card.Fingerprint()] = &clone
	return nil
}

func (m *MockRepository) UpdateCard(card *ingest.Card) error {
	if m.UpdateCardErr != nil {
		return m.UpdateCardErr
	}
	clone := *card
	m.cards[card.Fingerprint()] = &clone
	return nil
}

// CardCount returns the number of stored cards
func (m *MockRepository) CardCount() int {
	return len(m.cards)
}

func (m *MockRepository) SaveTransaction(rec *ingest.TransactionRecord, done func(ingest.SaveOutcome)) error {
	if m.SaveTransactionErr != nil {
		return m.SaveTransactionErr
	}
	if !rec.Valid() {
		return nil
	}
	m.SaveTransactionCalled = true

	fp := rec.Fingerprint()
	if existing, ok := m.transactions[fp]; ok {
		existing.Categories = rec.Categories
		existing.CategoryID = rec.CategoryID
		existing.Sector = rec.Sector
		existing.Subsector = rec.Subsector
		existing.CarbonMultiplier = rec.CarbonMultiplier
		existing.ProviderData = rec.ProviderData
		existing.UpdatedAt = time.Now().UTC()
		rec.ID = existing.ID
		if done != nil {
			done(ingest.SaveUpdate)
		}
		return nil
	}

	clone := *rec
	m.transactions[fp] = &clone
	if done != nil {
		done(ingest.SaveNew)
	}
	return nil
}

// TransactionCount returns the number of stored transaction records
func (m *MockRepository) TransactionCount() int {
	return len(m.transactions)
}

func (m *MockRepository) ListCompanies() ([]matcher.Company, error) {
	if m.ListCompaniesErr != nil {
		return nil, m.ListCompaniesErr
	}
	visible := make([]matcher.Company, 0, len(m.companies))
	for _, c := range m.companies {
		if !c.Hidden {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// AddCompany registers a company in the mock directory
func (m *MockRepository) AddCompany(c matcher.Company) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.companies = append(m.companies, c)
}

func (m *MockRepository) ListNameMatches() ([]matcher.NameMatch, error) {
	return append([]matcher.NameMatch(nil), m.nameMatches...), nil
}

func (m *MockRepository) InsertNameMatchIfAbsent(match matcher.NameMatch) (bool, error) {
	for _, existing := range m.nameMatches {
		if existing.Original == match.Original && existing.CompanyID == match.CompanyID {
			return false, nil
		}
	}
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	m.nameMatches = append(m.nameMatches, match)
	return true, nil
}

func (m *MockRepository) HasManualMatches() (bool, error) {
	for _, match := range m.nameMatches {
		if match.ManualMatch {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) HasAutomaticMatches() (bool, error) {
	for _, match := range m.nameMatches {
		if !match.ManualMatch && !match.FalsePositive {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) MergeUnmatchedCounts(counts map[string]int) error {
	for original, n := range counts {
		m.unmatched[original] += n
	}
	return nil
}

// UnmatchedCount returns the accumulated counter for an original name
func (m *MockRepository) UnmatchedCount(original string) int {
	return m.unmatched[original]
}

func (m *MockRepository) ListCarbonMappings() ([]carbon.Mapping, error) {
	return append([]carbon.Mapping(nil), m.carbonMappings...), nil
}

func (m *MockRepository) ImportCarbonMappings(mappings []carbon.Mapping) error {
	m.carbonMappings = append([]carbon.Mapping(nil), mappings...)
	return nil
}

func (m *MockRepository) SaveRunSummary(summary *RunSummary) error {
	if m.SaveRunSummaryErr != nil {
		return m.SaveRunSummaryErr
	}
	m.SaveRunSummaryCalled = true
	clone := *summary
	m.LastSavedSummary = &clone
	m.summaries = append(m.summaries, clone)
	return nil
}

func (m *MockRepository) ListRunSummaries(limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > len(m.summaries) {
		limit = len(m.summaries)
	}
	out := make([]RunSummary, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.summaries[len(m.summaries)-1-i]
	}
	return out, nil
}

func (m *MockRepository) Close() error {
	return nil
}
