// Package graph implements the suspicion-weighted directed transaction
// graph. The graph is built once per analysis run; every algorithm consumes
// it read-only, so concurrent queries need no locking.
package graph

import (
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/suspicion"
)

// Graph is a simple directed graph of accounts connected by aggregated
// transactions. Nodes and out-neighbors iterate in insertion order, which
// gives shortest-path search and ranking a stable, documented tie-break.
type Graph struct {
	weigher *suspicion.Weigher

	duplicatePolicy domain.DuplicatePolicy
	autoCreate      bool

	accounts []string       // insertion order
	index    map[string]int // account -> insertion index

	out   map[string][]string // ordered out-neighbors
	edges map[string]map[string]*domain.EdgeAttributes
}

// Option configures graph construction.
type Option func(*Graph)

// WithDuplicatePolicy selects how repeated (origin, destination) pairs are
// handled. Default is last-write-wins.
func WithDuplicatePolicy(p domain.DuplicatePolicy) Option {
	return func(g *Graph) { g.duplicatePolicy = p }
}

// WithAutoCreateAccounts registers unknown transaction endpoints instead of
// rejecting them with ErrUnknownAccount.
func WithAutoCreateAccounts() Option {
	return func(g *Graph) { g.autoCreate = true }
}

// New creates an empty graph that weighs edges with the given Weigher.
func New(w *suspicion.Weigher, opts ...Option) *Graph {
	g := &Graph{
		weigher:         w,
		duplicatePolicy: domain.DuplicateLastWins,
		index:           make(map[string]int),
		out:             make(map[string][]string),
		edges:           make(map[string]map[string]*domain.EdgeAttributes),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddAccount registers an account node. Adding an existing account is a
// no-op; accounts are never removed.
func (g *Graph) AddAccount(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.accounts)
	g.accounts = append(g.accounts, id)
}

// HasAccount reports whether the account is registered.
func (g *Graph) HasAccount(id string) bool {
	_, ok := g.index[id]
	return ok
}

// AddTransaction computes the suspicion score and inverse weight for the
// transaction and inserts or updates the directed edge. Non-positive amount
// or frequency fails with ErrInvalidTransaction; unregistered endpoints
// fail with ErrUnknownAccount unless auto-creation is enabled.
func (g *Graph) AddTransaction(origin, destination string, amount float64, frequency int) error {
	if err := g.ensureAccount(origin); err != nil {
		return err
	}
	if err := g.ensureAccount(destination); err != nil {
		return err
	}

	prev := g.edge(origin, destination)
	if prev != nil && g.duplicatePolicy == domain.DuplicateAggregate {
		amount += prev.Amount
		frequency += prev.Frequency
	}

	score, weight, err := g.weigher.Score(amount, frequency)
	if err != nil {
		return err
	}

	attrs := &domain.EdgeAttributes{
		Origin:         origin,
		Destination:    destination,
		Amount:         amount,
		Frequency:      frequency,
		SuspicionScore: score,
		Weight:         weight,
	}

	if prev == nil {
		if g.edges[origin] == nil {
			g.edges[origin] = make(map[string]*domain.EdgeAttributes)
		}
		g.out[origin] = append(g.out[origin], destination)
	}
	g.edges[origin][destination] = attrs
	return nil
}

// EdgeAttributes returns the stored attributes of the directed edge, or
// ErrNoSuchEdge when no transaction was recorded for the pair.
func (g *Graph) EdgeAttributes(origin, destination string) (*domain.EdgeAttributes, error) {
	if !g.HasAccount(origin) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAccount, origin)
	}
	if !g.HasAccount(destination) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAccount, destination)
	}
	e := g.edge(origin, destination)
	if e == nil {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrNoSuchEdge, origin, destination)
	}
	attrs := *e
	return &attrs, nil
}

// Accounts returns all registered accounts in insertion order. The returned
// slice must not be modified.
func (g *Graph) Accounts() []string {
	return g.accounts
}

// AccountIndex returns the insertion index of an account, used as the
// deterministic tie-break by the path search. The second return is false
// for unregistered accounts.
func (g *Graph) AccountIndex(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// OutNeighbors visits the out-edges of the account in insertion order.
// Self-loops are stored but skipped here: a self-loop can never lie on a
// shortest path and must contribute nothing to betweenness.
func (g *Graph) OutNeighbors(id string, visit func(destination string, e *domain.EdgeAttributes)) {
	for _, dst := range g.out[id] {
		if dst == id {
			continue
		}
		visit(dst, g.edges[id][dst])
	}
}

// NodeCount returns the number of registered accounts.
func (g *Graph) NodeCount() int { return len(g.accounts) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, m := range g.edges {
		n += len(m)
	}
	return n
}

func (g *Graph) ensureAccount(id string) error {
	if g.HasAccount(id) {
		return nil
	}
	if !g.autoCreate {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAccount, id)
	}
	g.AddAccount(id)
	return nil
}

func (g *Graph) edge(origin, destination string) *domain.EdgeAttributes {
	return g.edges[origin][destination]
}
