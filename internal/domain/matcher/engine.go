// Package matcher resolves transaction names to companies through three
// ordered tiers: curated manual overrides, cached confirmed matches, and a
// fuzzy-matching engine for whatever remains.
//
// The fuzzy tier is a narrow port with two implementations: an in-process
// levenshtein algorithm and an adapter that spawns an external process and
// exchanges CSV files with it.
package matcher

import "context"

// Company is one entry of the company directory
type Company struct {
	ID     string
	Name   string
	Hidden bool
}

// NameMatch is one entry of the match cache: an original transaction name
// resolved to a company. Manual matches take precedence over automatic ones;
// false positives suppress an entry without deleting it.
type NameMatch struct {
	ID            string
	Original      string
	CompanyID     string
	CompanyName   string
	ManualMatch   bool
	FalsePositive bool
}

// Thresholds are the two similarity cutoffs handed to the fuzzy engine.
// Lower admits weaker candidates into the review tier; Upper is the
// acceptance cutoff for automatic confirmation.
type Thresholds struct {
	Lower float64
	Upper float64
}

// DefaultThresholds returns the standard cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{Lower: 0.444, Upper: 0.938}
}

// Unresolved is one transaction row that tiers 1-2 could not resolve,
// carrying the raw fields the engine needs
type Unresolved struct {
	ExternalID   string
	AccountID    string
	Name         string
	MerchantName string
	Amount       float64
	Date         string
	CategoryID   string
}

// DisplayName returns the merchant name when present, otherwise the raw name
func (u Unresolved) DisplayName() string {
	if u.MerchantName != "" {
		return u.MerchantName
	}
	return u.Name
}

// Request is the full input handed to a fuzzy engine for one run
type Request struct {
	Transactions   []Unresolved
	Companies      []Company
	ManualMatches  []NameMatch
	FalsePositives []NameMatch
	Thresholds     Thresholds
}

// Match is one confirmed resolution produced by the engine
type Match struct {
	Original    string
	CompanyName string
	CompanyID   string
}

// UnmatchedCount is one name the engine could not resolve, with the number
// of transactions that carried it
type UnmatchedCount struct {
	Original string
	Count    int
}

// Result is the engine output: confirmed matches plus still-unmatched names
// with occurrence counts. Review carries weaker candidates admitted by the
// lower threshold; they are reported, never persisted.
type Result struct {
	Matched   []Match
	Review    []Match
	Unmatched []UnmatchedCount
}

// Engine is the fuzzy-matching port
type Engine interface {
	Match(ctx context.Context, req Request) (*Result, error)
}
