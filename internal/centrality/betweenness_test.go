package centrality

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/heron/internal/graph"
	"github.com/opensource-finance/heron/internal/suspicion"
)

func buildGraph(t *testing.T, accounts []string, txs [][4]any) *graph.Graph {
	t.Helper()
	w, err := suspicion.New(1000)
	if err != nil {
		t.Fatalf("failed to create weigher: %v", err)
	}
	g := graph.New(w)
	for _, a := range accounts {
		g.AddAccount(a)
	}
	for _, tx := range txs {
		if err := g.AddTransaction(tx[0].(string), tx[1].(string), float64(tx[2].(int)), tx[3].(int)); err != nil {
			t.Fatalf("failed to add transaction: %v", err)
		}
	}
	return g
}

func sampleGraph(t *testing.T) *graph.Graph {
	return buildGraph(t,
		[]string{"Cuenta_A", "Cuenta_B", "Cuenta_C", "Cuenta_D", "Cuenta_E",
			"Cuenta_F", "Cuenta_G", "Offshore_X", "Offshore_Y"},
		[][4]any{
			{"Cuenta_A", "Cuenta_B", 50000, 5},
			{"Cuenta_B", "Cuenta_C", 45000, 4},
			{"Cuenta_C", "Offshore_X", 40000, 3},
			{"Cuenta_A", "Cuenta_D", 10000, 1},
			{"Cuenta_D", "Cuenta_E", 9000, 1},
			{"Cuenta_E", "Cuenta_F", 8000, 1},
			{"Cuenta_F", "Offshore_X", 7000, 1},
			{"Cuenta_A", "Cuenta_G", 30000, 2},
			{"Cuenta_G", "Offshore_Y", 28000, 2},
		})
}

func TestRankingSimpleChain(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][4]any{
		{"A", "B", 100, 1},
		{"B", "C", 100, 1},
	})

	entries, err := Ranking(context.Background(), g)
	if err != nil {
		t.Fatalf("ranking failed: %v", err)
	}

	scores := make(map[string]float64, len(entries))
	for _, e := range entries {
		scores[e.Account] = e.Centrality
	}

	// B is the only intermediary: one (A,C) pair, normalized by (n-1)(n-2)=2.
	if math.Abs(scores["B"]-0.5) > 1e-12 {
		t.Errorf("expected centrality 0.5 for B, got %v", scores["B"])
	}
	if scores["A"] != 0 || scores["C"] != 0 {
		t.Errorf("expected 0 for endpoints, got A=%v C=%v", scores["A"], scores["C"])
	}
}

func TestRankingSampleNetwork(t *testing.T) {
	g := sampleGraph(t)

	entries, err := Ranking(context.Background(), g)
	if err != nil {
		t.Fatalf("ranking failed: %v", err)
	}

	if len(entries) != 9 {
		t.Fatalf("expected 9 entries, got %d", len(entries))
	}

	scores := make(map[string]float64, len(entries))
	for _, e := range entries {
		scores[e.Account] = e.Centrality
	}

	// Bridge accounts sit on suspicious routes.
	for _, bridge := range []string{"Cuenta_B", "Cuenta_C", "Cuenta_G"} {
		if scores[bridge] <= 0 {
			t.Errorf("expected positive centrality for bridge %s, got %v", bridge, scores[bridge])
		}
	}

	// Pure sources and sinks lie on no route between other accounts.
	for _, leaf := range []string{"Cuenta_A", "Offshore_X", "Offshore_Y"} {
		if scores[leaf] != 0 {
			t.Errorf("expected 0 centrality for %s, got %v", leaf, scores[leaf])
		}
	}
}

func TestRankingOrder(t *testing.T) {
	g := sampleGraph(t)

	entries, err := Ranking(context.Background(), g)
	if err != nil {
		t.Fatalf("ranking failed: %v", err)
	}

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Centrality > prev.Centrality {
			t.Fatalf("ranking not descending at %d: %v then %v", i, prev, cur)
		}
		if cur.Centrality == prev.Centrality && cur.Account < prev.Account {
			t.Errorf("tie at %d not broken by ascending account: %s before %s", i, prev.Account, cur.Account)
		}
	}
}

func TestRankingTinyGraphs(t *testing.T) {
	// Graphs with fewer than three accounts skip normalization and must
	// still produce a full, all-zero ranking.
	g := buildGraph(t, []string{"A", "B"}, [][4]any{{"A", "B", 100, 1}})

	entries, err := Ranking(context.Background(), g)
	if err != nil {
		t.Fatalf("ranking failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Centrality != 0 {
			t.Errorf("expected 0 centrality for %s, got %v", e.Account, e.Centrality)
		}
	}
}

func TestRankingCancellation(t *testing.T) {
	g := sampleGraph(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Ranking(ctx, g); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
