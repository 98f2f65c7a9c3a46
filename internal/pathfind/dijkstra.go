// Package pathfind implements weighted shortest-path search over the
// transaction graph. Because edge weights are inversely proportional to
// suspicion, the minimum-weight route is the most suspicious one.
package pathfind

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/graph"
)

// MostSuspiciousPath runs Dijkstra's algorithm from source to target and
// returns the minimum-weight route with a per-edge reporting breakdown.
// All search state is local to the call, so concurrent searches over the
// same graph are safe.
//
// ErrNoPath is returned when target is unreachable from source; callers
// must treat it as an expected outcome. ErrUnknownAccount is returned for
// unregistered endpoints.
func MostSuspiciousPath(ctx context.Context, g *graph.Graph, source, target string) (*domain.PathResult, error) {
	if _, ok := g.AccountIndex(source); !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAccount, source)
	}
	if _, ok := g.AccountIndex(target); !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAccount, target)
	}

	dist, prev, err := search(ctx, g, source, target)
	if err != nil {
		return nil, err
	}

	d, ok := dist[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrNoPath, source, target)
	}

	// Walk predecessors back from the target.
	var accounts []string
	for at := target; ; {
		accounts = append(accounts, at)
		if at == source {
			break
		}
		at = prev[at]
	}
	for i, j := 0, len(accounts)-1; i < j; i, j = i+1, j-1 {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	}

	result := &domain.PathResult{
		Source:      source,
		Target:      target,
		Accounts:    accounts,
		TotalWeight: d,
	}
	for i := 0; i < len(accounts)-1; i++ {
		e, err := g.EdgeAttributes(accounts[i], accounts[i+1])
		if err != nil {
			return nil, err
		}
		result.Edges = append(result.Edges, *e)
		result.TotalAmount += e.Amount
	}
	return result, nil
}

// Distances runs Dijkstra from source and returns the weighted distance to
// every reachable account. Used by the risk scorer, which needs distances
// to several targets from one source.
func Distances(ctx context.Context, g *graph.Graph, source string) (map[string]float64, error) {
	if _, ok := g.AccountIndex(source); !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAccount, source)
	}
	dist, _, err := search(ctx, g, source, "")
	return dist, err
}

// search is the shared Dijkstra core. When target is non-empty the search
// stops as soon as the target is settled. Ties on distance are broken by
// account insertion order, which makes the returned path deterministic.
func search(ctx context.Context, g *graph.Graph, source, target string) (map[string]float64, map[string]string, error) {
	dist := make(map[string]float64)
	prev := make(map[string]string)
	settled := make(map[string]bool)

	srcIdx, _ := g.AccountIndex(source)
	pq := &queue{{account: source, dist: 0, order: srcIdx}}
	dist[source] = 0

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		item := heap.Pop(pq).(*queueItem)
		if settled[item.account] {
			continue
		}
		settled[item.account] = true

		if target != "" && item.account == target {
			break
		}

		g.OutNeighbors(item.account, func(next string, e *domain.EdgeAttributes) {
			if settled[next] {
				return
			}
			alt := dist[item.account] + e.Weight
			cur, seen := dist[next]
			if !seen || alt < cur {
				dist[next] = alt
				prev[next] = item.account
				idx, _ := g.AccountIndex(next)
				heap.Push(pq, &queueItem{account: next, dist: alt, order: idx})
			}
		})
	}

	return dist, prev, nil
}

// queueItem is one priority-queue entry. order is the account insertion
// index, used to break equal-distance ties deterministically.
type queueItem struct {
	account string
	dist    float64
	order   int
}

type queue []*queueItem

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].order < q[j].order
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*queueItem)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Unreachable is the distance reported for accounts with no route.
var Unreachable = math.Inf(1)
