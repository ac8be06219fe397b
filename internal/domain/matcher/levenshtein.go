package matcher

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// LevenshteinEngine is the in-process fuzzy engine. It scores each
// unresolved name against the company directory by normalized edit distance
// and confirms the best candidate when it clears the upper threshold.
type LevenshteinEngine struct{}

// NewLevenshteinEngine creates the in-process engine
func NewLevenshteinEngine() *LevenshteinEngine {
	return &LevenshteinEngine{}
}

// Match implements Engine
func (e *LevenshteinEngine) Match(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	// Group unresolved transactions by name so each name is scored once
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, tx := range req.Transactions {
		name := tx.DisplayName()
		if name == "" {
			continue
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	suppressed := make(map[[2]string]bool, len(req.FalsePositives))
	for _, fp := range req.FalsePositives {
		suppressed[[2]string{fp.Original, fp.CompanyName}] = true
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var best *Company
		bestScore := 0.0
		for i := range req.Companies {
			company := &req.Companies[i]
			if company.Hidden || suppressed[[2]string{name, company.Name}] {
				continue
			}
			score := similarity(name, company.Name)
			if score > bestScore {
				best = company
				bestScore = score
			}
		}

		switch {
		case best != nil && bestScore >= req.Thresholds.Upper:
			result.Matched = append(result.Matched, Match{
				Original:    name,
				CompanyName: best.Name,
				CompanyID:   best.ID,
			})
		case best != nil && bestScore >= req.Thresholds.Lower:
			result.Review = append(result.Review, Match{
				Original:    name,
				CompanyName: best.Name,
				CompanyID:   best.ID,
			})
			result.Unmatched = append(result.Unmatched, UnmatchedCount{Original: name, Count: counts[name]})
		default:
			result.Unmatched = append(result.Unmatched, UnmatchedCount{Original: name, Count: counts[name]})
		}
	}

	sort.Slice(result.Unmatched, func(i, j int) bool {
		return result.Unmatched[i].Original < result.Unmatched[j].Original
	})

	return result, nil
}

// similarity is 1 - dist/maxLen over upper-cased inputs, so 1.0 is an exact
// match ignoring case
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ua, ub := strings.ToUpper(a), strings.ToUpper(b)
	if ua == ub {
		return 1
	}
	maxLen := len(ua)
	if len(ub) > maxLen {
		maxLen = len(ub)
	}
	dist := levenshtein.ComputeDistance(ua, ub)
	return 1 - float64(dist)/float64(maxLen)
}
