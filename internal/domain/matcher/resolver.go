package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

// Store is the persistence surface the resolver needs
type Store interface {
	ListCompanies() ([]Company, error)
	ListNameMatches() ([]NameMatch, error)

	// InsertNameMatchIfAbsent inserts the match unless an entry with the
	// same (original, company) pair already exists. Returns whether a row
	// was inserted.
	InsertNameMatchIfAbsent(m NameMatch) (bool, error)

	HasManualMatches() (bool, error)
	HasAutomaticMatches() (bool, error)

	// MergeUnmatchedCounts increments the stored per-name counters by the
	// given amounts. Counts only ever grow.
	MergeUnmatchedCounts(counts map[string]int) error
}

// Stats are the per-transaction outcomes of one resolution pass
type Stats struct {
	// ExistingMatches counts transactions resolved by tiers 1-2
	ExistingMatches int
	// NewMatches counts transactions resolved by the fuzzy engine this run
	NewMatches int
	// NotMapped counts transactions that no tier resolved
	NotMapped int
}

// Resolver runs the three-tier company resolution over a run's transaction
// records, updating the match cache and unmatched-name counters as it goes
type Resolver struct {
	store      Store
	engine     Engine
	thresholds Thresholds
	seeds      Seeds
	logger     *slog.Logger
}

// NewResolver creates a resolver. Seeds may be zero-valued when no curated
// seed lists are configured.
func NewResolver(store Store, engine Engine, thresholds Thresholds, seeds Seeds, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		engine:     engine,
		thresholds: thresholds,
		seeds:      seeds,
		logger:     logger,
	}
}

// Resolve assigns company references to the given records. Each record gets
// its company set at most once; records that resolve at no tier keep an
// empty company reference and are counted in Stats.NotMapped.
func (r *Resolver) Resolve(ctx context.Context, records []*ingest.TransactionRecord) (*Stats, error) {
	stats := &Stats{}

	if err := r.bootstrap(); err != nil {
		return stats, fmt.Errorf("failed to bootstrap match cache: %w", err)
	}

	matches, err := r.store.ListNameMatches()
	if err != nil {
		return stats, fmt.Errorf("failed to load match cache: %w", err)
	}

	// Tier lookup tables. Manual entries win over automatic ones; false
	// positives are invisible to both tiers.
	manual := make(map[string]NameMatch)
	auto := make(map[string]NameMatch)
	falsePositives := make([]NameMatch, 0)
	manualList := make([]NameMatch, 0)
	for _, m := range matches {
		if m.FalsePositive {
			falsePositives = append(falsePositives, m)
			continue
		}
		if m.ManualMatch {
			manual[m.Original] = m
			manualList = append(manualList, m)
		} else if _, taken := auto[m.Original]; !taken {
			auto[m.Original] = m
		}
	}

	var unresolved []*ingest.TransactionRecord
	for _, rec := range records {
		if rec.CompanyID != "" {
			continue
		}
		if m, ok := lookup(manual, rec); ok {
			rec.CompanyID = m.CompanyID
			stats.ExistingMatches++
			continue
		}
		if m, ok := lookup(auto, rec); ok {
			rec.CompanyID = m.CompanyID
			stats.ExistingMatches++
			continue
		}
		unresolved = append(unresolved, rec)
	}

	r.logger.Debug("Cache tiers resolved",
		"total", len(records),
		"existing_matches", stats.ExistingMatches,
		"unresolved", len(unresolved),
	)

	if len(unresolved) == 0 {
		return stats, nil
	}

	companies, err := r.store.ListCompanies()
	if err != nil {
		return stats, fmt.Errorf("failed to load company directory: %w", err)
	}

	req := Request{
		Transactions:   toUnresolved(unresolved),
		Companies:      companies,
		ManualMatches:  manualList,
		FalsePositives: falsePositives,
		Thresholds:     r.thresholds,
	}

	result, err := r.engine.Match(ctx, req)
	if err != nil {
		return stats, fmt.Errorf("fuzzy matching failed: %w", err)
	}

	confirmed := make(map[string]Match, len(result.Matched))
	for _, m := range result.Matched {
		if _, err := r.store.InsertNameMatchIfAbsent(NameMatch{
			Original:    m.Original,
			CompanyID:   m.CompanyID,
			CompanyName: m.CompanyName,
		}); err != nil {
			return stats, fmt.Errorf("failed to cache match for %q: %w", m.Original, err)
		}
		confirmed[m.Original] = m
	}

	for _, rec := range unresolved {
		m, ok := confirmed[rec.Name]
		if !ok {
			m, ok = confirmed[rec.MerchantName]
		}
		if ok && rec.CompanyID == "" {
			rec.CompanyID = m.CompanyID
			stats.NewMatches++
			continue
		}
		stats.NotMapped++
	}

	if len(result.Unmatched) > 0 {
		counts := make(map[string]int, len(result.Unmatched))
		for _, u := range result.Unmatched {
			counts[u.Original] += u.Count
		}
		if err := r.store.MergeUnmatchedCounts(counts); err != nil {
			return stats, fmt.Errorf("failed to merge unmatched counts: %w", err)
		}
	}

	if len(result.Review) > 0 {
		r.logger.Info("Fuzzy matcher produced review-tier candidates",
			"count", len(result.Review))
	}

	return stats, nil
}

// bootstrap seeds the match cache on first run: manual overrides when no
// manual entries exist, false-positive suppressions when no automatic cache
// exists yet
func (r *Resolver) bootstrap() error {
	hasManual, err := r.store.HasManualMatches()
	if err != nil {
		return err
	}
	if !hasManual && len(r.seeds.ManualMatches) > 0 {
		inserted := 0
		for _, s := range r.seeds.ManualMatches {
			ok, err := r.store.InsertNameMatchIfAbsent(NameMatch{
				Original:    s.Original,
				CompanyID:   s.CompanyID,
				CompanyName: s.CompanyName,
				ManualMatch: true,
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		r.logger.Info("Seeded manual matches", "count", inserted)
	}

	hasAuto, err := r.store.HasAutomaticMatches()
	if err != nil {
		return err
	}
	if !hasAuto && len(r.seeds.FalsePositives) > 0 {
		inserted := 0
		for _, s := range r.seeds.FalsePositives {
			ok, err := r.store.InsertNameMatchIfAbsent(NameMatch{
				Original:      s.Original,
				CompanyName:   s.CompanyName,
				FalsePositive: true,
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		r.logger.Info("Seeded false-positive suppressions", "count", inserted)
	}

	return nil
}

// lookup tries the record's display name first, then the merchant name
func lookup(table map[string]NameMatch, rec *ingest.TransactionRecord) (NameMatch, bool) {
	if m, ok := table[rec.Name]; ok {
		return m, true
	}
	if rec.MerchantName != "" {
		if m, ok := table[rec.MerchantName]; ok {
			return m, true
		}
	}
	return NameMatch{}, false
}

func toUnresolved(records []*ingest.TransactionRecord) []Unresolved {
	out := make([]Unresolved, 0, len(records))
	for _, rec := range records {
		out = append(out, Unresolved{
			ExternalID:   rec.ExternalID,
			AccountID:    rec.CardID,
			Name:         rec.Name,
			MerchantName: rec.MerchantName,
			Amount:       rec.Amount,
			Date:         rec.Date.Format("2006-01-02"),
			CategoryID:   rec.CategoryID,
		})
	}
	return out
}
