// Heron trace - run a network analysis from the command line.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Usage:
//
//	go run cmd/trace/main.go                      # built-in demo dataset
//	go run cmd/trace/main.go -data network.json   # your own dataset
//
// The dataset file uses the same JSON shape as the POST /analyze body.
// The tool runs the engine in-process, no server required, and prints the
// most suspicious route, the intermediary ranking, the risk table and,
// when ground truth labels are present, the evaluation report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
)

func main() {
	dataPath := flag.String("data", "", "Path to a JSON dataset (empty = built-in demo)")
	source := flag.String("source", "", "Override the path search source account")
	target := flag.String("target", "", "Override the path search target account")
	threshold := flag.Float64("threshold", 0, "Override the classification threshold (0 = configured default)")
	expr := flag.String("expr", "", "Custom CEL suspicion expression over amount and frequency")
	asJSON := flag.Bool("json", false, "Print the raw analysis as JSON instead of tables")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	req, err := loadRequest(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	if *source != "" {
		req.Source = *source
	}
	if *target != "" {
		req.Target = *target
	}
	if *threshold > 0 {
		req.Threshold = threshold
	}

	cfg := domain.DefaultConfig().Engine
	if *expr != "" {
		cfg.SuspicionExpr = *expr
	}

	eng, err := engine.New(cfg, nil, nil, "trace")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	analysis, err := eng.Analyze(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		out, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	printAnalysis(req, analysis)
}

// loadRequest reads the dataset file, or returns the built-in demo network
// when no path is given.
func loadRequest(path string) (*domain.AnalysisRequest, error) {
	if path == "" {
		return demoRequest(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var req domain.AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return &req, nil
}

// demoRequest is a small laundering network: a high-value chain into an
// offshore account, a low-value alternate chain into the same account and a
// side route into a second offshore account.
func demoRequest() *domain.AnalysisRequest {
	return &domain.AnalysisRequest{
		Accounts: []string{
			"Cuenta_A", "Cuenta_B", "Cuenta_C", "Cuenta_D", "Cuenta_E",
			"Cuenta_F", "Cuenta_G", "Offshore_X", "Offshore_Y",
		},
		Transactions: []domain.TransactionRecord{
			{Origin: "Cuenta_A", Destination: "Cuenta_B", Amount: 50000, Frequency: 5},
			{Origin: "Cuenta_B", Destination: "Cuenta_C", Amount: 45000, Frequency: 4},
			{Origin: "Cuenta_C", Destination: "Offshore_X", Amount: 40000, Frequency: 3},
			{Origin: "Cuenta_A", Destination: "Cuenta_D", Amount: 10000, Frequency: 1},
			{Origin: "Cuenta_D", Destination: "Cuenta_E", Amount: 9000, Frequency: 1},
			{Origin: "Cuenta_E", Destination: "Cuenta_F", Amount: 8000, Frequency: 1},
			{Origin: "Cuenta_F", Destination: "Offshore_X", Amount: 7000, Frequency: 1},
			{Origin: "Cuenta_A", Destination: "Cuenta_G", Amount: 30000, Frequency: 2},
			{Origin: "Cuenta_G", Destination: "Offshore_Y", Amount: 28000, Frequency: 2},
		},
		HighRisk: []string{"Offshore_X", "Offshore_Y"},
		Source:   "Cuenta_A",
		Target:   "Offshore_X",
		GroundTruth: map[string]int{
			"Cuenta_A": domain.LabelClean,
			"Cuenta_B": domain.LabelFraud,
			"Cuenta_C": domain.LabelFraud,
			"Cuenta_D": domain.LabelClean,
			"Cuenta_E": domain.LabelClean,
			"Cuenta_F": domain.LabelClean,
			"Cuenta_G": domain.LabelFraud,
		},
	}
}

func printAnalysis(req *domain.AnalysisRequest, analysis *domain.Analysis) {
	fmt.Println()
	fmt.Println("═══ HERON NETWORK ANALYSIS ═══")
	fmt.Printf("\nAccounts: %d  Edges: %d  Total: %dms\n",
		analysis.Metadata.AccountCount,
		analysis.Metadata.EdgeCount,
		analysis.Metadata.TotalMs,
	)

	if req.Source != "" {
		fmt.Printf("\n── Most suspicious route: %s → %s ──\n", req.Source, req.Target)
		switch {
		case analysis.NoRoute:
			fmt.Println("  no route found")
		case analysis.Path != nil:
			fmt.Printf("  %s\n", strings.Join(analysis.Path.Accounts, " → "))
			fmt.Printf("  total weight: %.6f  total amount: $%.2f\n",
				analysis.Path.TotalWeight, analysis.Path.TotalAmount)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  FROM\tTO\tAMOUNT\tFREQ\tSUSPICION\tWEIGHT")
			for _, e := range analysis.Path.Edges {
				fmt.Fprintf(w, "  %s\t%s\t$%.2f\t%d\t%.0f\t%.6f\n",
					e.Origin, e.Destination, e.Amount, e.Frequency, e.SuspicionScore, e.Weight)
			}
			w.Flush()
		}
	}

	fmt.Println("\n── Intermediary ranking (betweenness) ──")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ACCOUNT\tCENTRALITY")
	for _, c := range analysis.Centrality {
		fmt.Fprintf(w, "  %s\t%.4f\n", c.Account, c.Centrality)
	}
	w.Flush()

	fmt.Printf("\n── Risk table (high-risk: %s) ──\n", strings.Join(req.HighRisk, ", "))
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ACCOUNT\tRISK SCORE\tDISTANCE\tNEAREST")
	for _, e := range analysis.RiskScores {
		dist := "∞"
		if !math.IsInf(e.Distance, 1) {
			dist = fmt.Sprintf("%.6f", e.Distance)
		}
		nearest := e.NearestHighRisk
		if nearest == "" {
			nearest = "-"
		}
		fmt.Fprintf(w, "  %s\t%.2f\t%s\t%s\n", e.Account, e.RiskScore, dist, nearest)
	}
	w.Flush()

	if analysis.Report != nil {
		r := analysis.Report
		fmt.Printf("\n── Evaluation (threshold %.3f) ──\n", r.Threshold)
		fmt.Printf("  TP=%d  FP=%d  TN=%d  FN=%d  accuracy=%.4f\n",
			r.Matrix.TruePositives, r.Matrix.FalsePositives,
			r.Matrix.TrueNegatives, r.Matrix.FalseNegatives,
			r.Accuracy,
		)
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  CLASS\tPRECISION\tRECALL\tF1\tSUPPORT")
		fmt.Fprintf(w, "  clean\t%.4f\t%.4f\t%.4f\t%d\n", r.Clean.Precision, r.Clean.Recall, r.Clean.F1, r.Clean.Support)
		fmt.Fprintf(w, "  fraud\t%.4f\t%.4f\t%.4f\t%d\n", r.Fraud.Precision, r.Fraud.Recall, r.Fraud.F1, r.Fraud.Support)
		w.Flush()

		fmt.Println("\n  Predicted fraud accounts:")
		for _, e := range analysis.RiskScores {
			if analysis.Predictions[e.Account] == domain.LabelFraud {
				fmt.Printf("    %s (risk %.2f)\n", e.Account, e.RiskScore)
			}
		}
	}
	fmt.Println()
}
