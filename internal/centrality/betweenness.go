// Package centrality ranks accounts by weighted betweenness centrality to
// surface layering intermediaries: accounts that sit on many of the most
// suspicious routes between other accounts.
package centrality

import (
	"container/heap"
	"context"
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/graph"
)

// Ranking computes weighted betweenness centrality for every account and
// returns the entries sorted descending by centrality. Accounts that lie on
// no shortest path appear with centrality 0. Equal scores are ordered by
// ascending account ID so the ranking is a strict total order.
//
// The algorithm is Brandes' betweenness with a Dijkstra inner loop (edge
// cost = weight), normalized by 1/((n-1)(n-2)) for directed graphs.
func Ranking(ctx context.Context, g *graph.Graph) ([]domain.CentralityEntry, error) {
	accounts := g.Accounts()
	n := len(accounts)

	cb := make(map[string]float64, n)
	for _, a := range accounts {
		cb[a] = 0
	}

	for _, s := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		accumulate(g, s, cb)
	}

	// Directed normalization, skipped for graphs too small to have an
	// intermediate node.
	if n > 2 {
		scale := 1.0 / float64((n-1)*(n-2))
		for a := range cb {
			cb[a] *= scale
		}
	}

	entries := make([]domain.CentralityEntry, 0, n)
	for _, a := range accounts {
		entries = append(entries, domain.CentralityEntry{Account: a, Centrality: cb[a]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Centrality != entries[j].Centrality {
			return entries[i].Centrality > entries[j].Centrality
		}
		return entries[i].Account < entries[j].Account
	})
	return entries, nil
}

// accumulate runs the single-source phase of Brandes' algorithm from s and
// adds the resulting pair dependencies into cb. All state is local to the
// call; the graph is only read.
func accumulate(g *graph.Graph, s string, cb map[string]float64) {
	dist := make(map[string]float64)
	sigma := make(map[string]float64) // shortest-path counts
	pred := make(map[string][]string)
	settled := make(map[string]bool)
	stack := make([]string, 0) // settle order for back-propagation

	sIdx, _ := g.AccountIndex(s)
	pq := &queue{{account: s, dist: 0, order: sIdx}}
	dist[s] = 0
	sigma[s] = 1

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*queueItem)
		v := item.account
		if settled[v] {
			continue
		}
		settled[v] = true
		stack = append(stack, v)

		g.OutNeighbors(v, func(w string, e *domain.EdgeAttributes) {
			if settled[w] {
				return
			}
			alt := dist[v] + e.Weight
			cur, seen := dist[w]
			switch {
			case !seen || alt < cur:
				dist[w] = alt
				sigma[w] = sigma[v]
				pred[w] = []string{v}
				idx, _ := g.AccountIndex(w)
				heap.Push(pq, &queueItem{account: w, dist: alt, order: idx})
			case alt == cur:
				sigma[w] += sigma[v]
				pred[w] = append(pred[w], v)
			}
		})
	}

	// Back-propagate dependencies in reverse settle order.
	delta := make(map[string]float64, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		w := stack[i]
		for _, v := range pred[w] {
			delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
		}
		if w != s {
			cb[w] += delta[w]
		}
	}
}

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
