// Package risk scores accounts by their weighted graph distance to a set of
// designated high-risk accounts. Structurally closer (in suspicion-weighted
// terms) means a higher score.
package risk

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/graph"
	"github.com/opensource-finance/heron/internal/pathfind"
)

// Scorer converts minimum distances to high-risk accounts into inverse risk
// scores: riskScore = K / distance.
type Scorer struct {
	k       float64
	workers int
}

// New creates a Scorer. K must be positive; workers bounds the per-account
// fan-out (values below 1 mean sequential).
func New(k float64, workers int) *Scorer {
	if workers < 1 {
		workers = 1
	}
	return &Scorer{k: k, workers: workers}
}

// Scores computes, for every registered account outside the high-risk set,
// the minimum weighted shortest-path distance to any high-risk account.
// Unreachable accounts report Distance = +Inf and RiskScore = 0 — never an
// error. The result is sorted descending by risk score with ascending
// account ID as tie-break.
//
// The graph is read-only during scoring, so source accounts are fanned out
// across a bounded worker pool with per-call search state.
func (s *Scorer) Scores(ctx context.Context, g *graph.Graph, highRisk []string) ([]domain.RiskEntry, error) {
	riskSet := make(map[string]bool, len(highRisk))
	for _, r := range highRisk {
		riskSet[r] = true
	}

	var eligible []string
	for _, a := range g.Accounts() {
		if !riskSet[a] {
			eligible = append(eligible, a)
		}
	}

	entries := make([]domain.RiskEntry, len(eligible))
	errs := make([]error, len(eligible))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for i, account := range eligible {
		wg.Add(1)
		go func(idx int, acct string) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			entries[idx], errs[idx] = s.scoreAccount(ctx, g, acct, highRisk)
		}(i, account)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RiskScore != entries[j].RiskScore {
			return entries[i].RiskScore > entries[j].RiskScore
		}
		return entries[i].Account < entries[j].Account
	})
	return entries, nil
}

// scoreAccount finds the nearest high-risk account from one source. A
// single Dijkstra run yields the distances to every target; the argmin is
// taken over the high-risk set in its supplied order, so an exact distance
// tie resolves to the first listed target.
func (s *Scorer) scoreAccount(ctx context.Context, g *graph.Graph, account string, highRisk []string) (domain.RiskEntry, error) {
	entry := domain.RiskEntry{
		Account:  account,
		Distance: pathfind.Unreachable,
	}

	dist, err := pathfind.Distances(ctx, g, account)
	if err != nil {
		return entry, err
	}

	for _, target := range highRisk {
		d, ok := dist[target]
		if ok && d < entry.Distance {
			entry.Distance = d
			entry.NearestHighRisk = target
		}
	}

	if !math.IsInf(entry.Distance, 1) {
		entry.RiskScore = s.k / entry.Distance
	}
	return entry, nil
}
