package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
)

func testConfig() domain.EngineConfig {
	return domain.EngineConfig{
		SuspicionK:      domain.DefaultSuspicionK,
		RiskK:           domain.DefaultRiskK,
		Threshold:       domain.DefaultThreshold,
		DuplicatePolicy: domain.DuplicateLastWins,
		RiskWorkers:     4,
	}
}

func sampleRequest() *domain.AnalysisRequest {
	return &domain.AnalysisRequest{
		Accounts: []string{"Cuenta_A", "Cuenta_B", "Cuenta_C", "Cuenta_D",
			"Cuenta_E", "Cuenta_F", "Cuenta_G", "Offshore_X", "Offshore_Y"},
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

func TestAnalyzeFullPipeline(t *testing.T) {
	eng, err := New(testConfig(), nil, nil, "test")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	analysis, err := eng.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if analysis.Metadata.AccountCount != 9 {
		t.Errorf("expected 9 accounts, got %d", analysis.Metadata.AccountCount)
	}
	if analysis.Metadata.EdgeCount != 9 {
		t.Errorf("expected 9 edges, got %d", analysis.Metadata.EdgeCount)
	}

	// Path stage: the high-value chain wins.
	if analysis.Path == nil {
		t.Fatal("expected a path result")
	}
	wantPath := []string{"Cuenta_A", "Cuenta_B", "Cuenta_C", "Offshore_X"}
	if len(analysis.Path.Accounts) != len(wantPath) {
		t.Fatalf("expected path %v, got %v", wantPath, analysis.Path.Accounts)
	}
	for i := range wantPath {
		if analysis.Path.Accounts[i] != wantPath[i] {
			t.Fatalf("expected path %v, got %v", wantPath, analysis.Path.Accounts)
		}
	}
	if analysis.Path.TotalAmount != 135000 {
		t.Errorf("expected total amount 135000, got %v", analysis.Path.TotalAmount)
	}

	// Centrality stage covers every account.
	if len(analysis.Centrality) != 9 {
		t.Errorf("expected 9 centrality entries, got %d", len(analysis.Centrality))
	}

	// Risk stage excludes the high-risk set itself.
	if len(analysis.RiskScores) != 7 {
		t.Errorf("expected 7 risk entries, got %d", len(analysis.RiskScores))
	}

	// Evaluation at the default 0.05 threshold.
	if analysis.Report == nil {
		t.Fatal("expected an evaluation report")
	}
	m := analysis.Report.Matrix
	if m.TruePositives != 3 || m.FalsePositives != 1 || m.TrueNegatives != 3 || m.FalseNegatives != 0 {
		t.Errorf("unexpected confusion matrix: %+v", m)
	}
	if math.Abs(analysis.Report.Accuracy-6.0/7.0) > 1e-12 {
		t.Errorf("expected accuracy 6/7, got %v", analysis.Report.Accuracy)
	}
	if analysis.Report.Threshold != domain.DefaultThreshold {
		t.Errorf("expected threshold %v, got %v", domain.DefaultThreshold, analysis.Report.Threshold)
	}
	if analysis.Predictions["Cuenta_C"] != domain.LabelFraud {
		t.Errorf("expected Cuenta_C predicted fraud")
	}
	if analysis.Predictions["Cuenta_D"] != domain.LabelClean {
		t.Errorf("expected Cuenta_D predicted clean")
	}
}

func TestAnalyzeThresholdOverride(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")

	req := sampleRequest()
	tight := 0.01
	req.Threshold = &tight

	analysis, err := eng.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	// Only Cuenta_C sits closer than 0.01 to a high-risk account.
	m := analysis.Report.Matrix
	if m.TruePositives != 1 || m.FalseNegatives != 2 || m.FalsePositives != 0 {
		t.Errorf("unexpected matrix with tight threshold: %+v", m)
	}
	if analysis.Report.Threshold != tight {
		t.Errorf("expected threshold %v, got %v", tight, analysis.Report.Threshold)
	}
}

func TestAnalyzeWithoutGroundTruth(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")

	req := sampleRequest()
	req.GroundTruth = nil

	analysis, err := eng.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if analysis.Report != nil || analysis.Predictions != nil {
		t.Error("expected no evaluation without ground truth")
	}
	if len(analysis.RiskScores) != 7 {
		t.Errorf("risk scoring must still run, got %d entries", len(analysis.RiskScores))
	}
}

func TestAnalyzeNoRoute(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")

	req := sampleRequest()
	req.Source = "Offshore_Y"
	req.Target = "Cuenta_A"

	analysis, err := eng.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("a missing route must not fail the analysis: %v", err)
	}
	if !analysis.NoRoute {
		t.Error("expected NoRoute to be set")
	}
	if analysis.Path != nil {
		t.Error("expected no path result")
	}
}

func TestAnalyzeWithoutEndpoints(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")

	req := sampleRequest()
	req.Source = ""
	req.Target = ""

	analysis, err := eng.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if analysis.Path != nil || analysis.NoRoute {
		t.Error("expected path stage to be skipped")
	}
}

func TestAnalyzeValidation(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")
	ctx := context.Background()

	if _, err := eng.Analyze(ctx, nil); err == nil {
		t.Error("expected error for nil request")
	}
	if _, err := eng.Analyze(ctx, &domain.AnalysisRequest{}); err == nil {
		t.Error("expected error for empty request")
	}

	req := sampleRequest()
	req.Target = ""
	if _, err := eng.Analyze(ctx, req); err == nil {
		t.Error("expected error for source without target")
	}
}

func TestAnalyzeRejectsUnknownAccounts(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")

	req := sampleRequest()
	req.Transactions = append(req.Transactions, domain.TransactionRecord{
		Origin: "Cuenta_A", Destination: "Nowhere", Amount: 100, Frequency: 1,
	})

	_, err := eng.Analyze(context.Background(), req)
	if !errors.Is(err, domain.ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount, got %v", err)
	}

	req = sampleRequest()
	req.HighRisk = append(req.HighRisk, "Offshore_Z")
	_, err = eng.Analyze(context.Background(), req)
	if !errors.Is(err, domain.ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount for undeclared high-risk account, got %v", err)
	}
}

func TestAnalyzeRejectsInvalidTransactions(t *testing.T) {
	eng, _ := New(testConfig(), nil, nil, "test")

	req := sampleRequest()
	req.Transactions[0].Amount = -50

	_, err := eng.Analyze(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Errorf("expected ErrInvalidTransaction, got %v", err)
	}
}

func TestAnalyzeCustomSuspicionExpression(t *testing.T) {
	cfg := testConfig()
	cfg.SuspicionExpr = "amount * double(frequency)"

	eng, err := New(cfg, nil, nil, "test")
	if err != nil {
		t.Fatalf("failed to create engine with expression: %v", err)
	}

	// The expression matches the built-in product, so results must agree.
	analysis, err := eng.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if analysis.Path == nil || analysis.Path.TotalAmount != 135000 {
		t.Errorf("unexpected path result with equivalent expression: %+v", analysis.Path)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SuspicionExpr = "not valid CEL !!!"
	if _, err := New(cfg, nil, nil, "test"); err == nil {
		t.Error("expected error for invalid suspicion expression")
	}

	cfg = testConfig()
	cfg.SuspicionK = 0
	if _, err := New(cfg, nil, nil, "test"); err == nil {
		t.Error("expected error for non-positive suspicion K")
	}

	cfg = testConfig()
	cfg.RiskK = -1
	if _, err := New(cfg, nil, nil, "test"); err == nil {
		t.Error("expected error for non-positive risk K")
	}
}

func TestRunCachesAndPublishes(t *testing.T) {
	cacheImpl := cache.NewLRUCache(100)
	busImpl := bus.NewChannelBus(100)
	defer busImpl.Close()

	var completed, alerts atomic.Int64

	ctx := context.Background()
	tenantID := "tenant-001"

	_, err := busImpl.Subscribe(ctx, tenantID, domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	_, err = busImpl.Subscribe(ctx, tenantID, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		var event domain.AlertEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			t.Errorf("bad alert payload: %v", err)
		}
		alerts.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	eng, err := New(testConfig(), cacheImpl, busImpl, "test")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	analysis, err := eng.Run(ctx, tenantID, "", sampleRequest())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if analysis.ID == "" {
		t.Error("expected a generated analysis ID")
	}
	if analysis.TenantID != tenantID {
		t.Errorf("expected tenant %s, got %s", tenantID, analysis.TenantID)
	}

	// The result must be retrievable from the cache.
	got, err := eng.GetAnalysis(ctx, tenantID, analysis.ID)
	if err != nil {
		t.Fatalf("failed to get cached analysis: %v", err)
	}
	if got.ID != analysis.ID {
		t.Errorf("expected cached analysis %s, got %s", analysis.ID, got.ID)
	}
	if len(got.RiskScores) != len(analysis.RiskScores) {
		t.Errorf("cached analysis lost risk entries")
	}

	// One completion event plus one alert per predicted-fraud account
	// (Cuenta_A, Cuenta_B, Cuenta_C, Cuenta_G under the 0.05 threshold).
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if completed.Load() == 1 && alerts.Load() == 4 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if completed.Load() != 1 {
		t.Errorf("expected 1 completion event, got %d", completed.Load())
	}
	if alerts.Load() != 4 {
		t.Errorf("expected 4 alert events, got %d", alerts.Load())
	}
}

func TestRunPreservesAssignedID(t *testing.T) {
	cacheImpl := cache.NewLRUCache(100)
	eng, _ := New(testConfig(), cacheImpl, nil, "test")

	analysis, err := eng.Run(context.Background(), "tenant-001", "pre-assigned", sampleRequest())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if analysis.ID != "pre-assigned" {
		t.Errorf("expected pre-assigned ID to survive, got %s", analysis.ID)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	cacheImpl := cache.NewLRUCache(100)
	eng, _ := New(testConfig(), cacheImpl, nil, "test")

	_, err := eng.GetAnalysis(context.Background(), "tenant-001", "missing")
	if !errors.Is(err, domain.ErrAnalysisNotFound) {
		t.Errorf("expected ErrAnalysisNotFound, got %v", err)
	}
}
