// Package engine orchestrates a full network analysis: graph construction,
// suspicious-path search, centrality ranking, risk-distance scoring and —
// when ground truth labels are supplied — threshold classification with
// supervised evaluation.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/heron/internal/centrality"
	"github.com/opensource-finance/heron/internal/classify"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/graph"
	"github.com/opensource-finance/heron/internal/pathfind"
	"github.com/opensource-finance/heron/internal/risk"
	"github.com/opensource-finance/heron/internal/suspicion"
)

var tracer = otel.Tracer("heron-engine")

// Engine runs analyses and hands results to the cache and event bus.
// The cache and bus are optional; a nil value disables that side effect,
// which keeps the engine usable as a plain library.
type Engine struct {
	cfg     domain.EngineConfig
	weigher *suspicion.Weigher
	scorer  *risk.Scorer

	cache     domain.Cache
	bus       domain.EventBus
	resultTTL time.Duration
	version   string
}

// New creates an Engine from configuration. The suspicion expression, if
// configured, is compiled here so a bad expression fails at startup.
func New(cfg domain.EngineConfig, cache domain.Cache, bus domain.EventBus, version string) (*Engine, error) {
	var opts []suspicion.Option
	if cfg.SuspicionExpr != "" {
		opts = append(opts, suspicion.WithExpression(cfg.SuspicionExpr))
	}
	weigher, err := suspicion.New(cfg.SuspicionK, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build weigher: %w", err)
	}
	if cfg.RiskK <= 0 {
		return nil, fmt.Errorf("risk constant K must be positive, got %v", cfg.RiskK)
	}

	return &Engine{
		cfg:       cfg,
		weigher:   weigher,
		scorer:    risk.New(cfg.RiskK, cfg.RiskWorkers),
		cache:     cache,
		bus:       bus,
		resultTTL: time.Hour,
		version:   version,
	}, nil
}

// Run executes an analysis, stores the result in the cache and publishes
// completion and alert events. An empty analysisID gets a fresh UUID;
// the async worker passes the ID it handed out at enqueue time.
func (e *Engine) Run(ctx context.Context, tenantID, analysisID string, req *domain.AnalysisRequest) (*domain.Analysis, error) {
	if analysisID == "" {
		analysisID = uuid.New().String()
	}

	analysis, err := e.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	analysis.ID = analysisID
	analysis.TenantID = tenantID

	if e.cache != nil {
		if err := e.cache.SetAnalysis(ctx, tenantID, analysis, e.resultTTL); err != nil {
			slog.Error("failed to cache analysis", "analysis_id", analysisID, "error", err)
		}
	}

	e.publish(ctx, tenantID, analysis)

	slog.Info("analysis completed",
		"analysis_id", analysisID,
		"tenant_id", tenantID,
		"accounts", analysis.Metadata.AccountCount,
		"edges", analysis.Metadata.EdgeCount,
		"total_ms", analysis.Metadata.TotalMs,
	)
	return analysis, nil
}

// Analyze runs the pipeline without side effects and returns the result.
func (e *Engine) Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.Analysis, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "engine.analyze")
	defer span.End()

	if err := validate(req); err != nil {
		return nil, err
	}

	analysis := &domain.Analysis{
		Timestamp: time.Now().UTC(),
	}

	// Stage 1: graph construction. The graph is immutable afterwards.
	g, err := e.buildGraph(req)
	if err != nil {
		return nil, err
	}
	analysis.Metadata.AccountCount = g.NodeCount()
	analysis.Metadata.EdgeCount = g.EdgeCount()
	analysis.Metadata.BuildMs = time.Since(start).Milliseconds()
	span.SetAttributes(
		attribute.Int("graph.accounts", g.NodeCount()),
		attribute.Int("graph.edges", g.EdgeCount()),
	)

	// Stage 2: most suspicious path between the requested endpoints.
	if req.Source != "" {
		stageStart := time.Now()
		path, err := pathfind.MostSuspiciousPath(ctx, g, req.Source, req.Target)
		switch {
		case errors.Is(err, domain.ErrNoPath):
			// Expected outcome: no suspicious route between the endpoints.
			analysis.NoRoute = true
		case err != nil:
			return nil, err
		default:
			analysis.Path = path
		}
		analysis.Metadata.PathMs = time.Since(stageStart).Milliseconds()
	}

	// Stage 3: intermediary ranking.
	stageStart := time.Now()
	ranking, err := centrality.Ranking(ctx, g)
	if err != nil {
		return nil, err
	}
	analysis.Centrality = ranking
	analysis.Metadata.CentralityMs = time.Since(stageStart).Milliseconds()

	// Stage 4: risk-distance scoring against the high-risk set.
	stageStart = time.Now()
	scores, err := e.scorer.Scores(ctx, g, req.HighRisk)
	if err != nil {
		return nil, err
	}
	analysis.RiskScores = scores
	analysis.Metadata.RiskMs = time.Since(stageStart).Milliseconds()

	// Stage 5 (optional, supervised): classification and evaluation.
	if req.GroundTruth != nil {
		stageStart = time.Now()
		threshold := e.cfg.Threshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		analysis.Predictions = classify.Predict(scores, threshold)
		analysis.Report = classify.Evaluate(analysis.Predictions, req.GroundTruth)
		analysis.Report.Threshold = threshold
		analysis.Metadata.EvaluateMs = time.Since(stageStart).Milliseconds()
	}

	analysis.Metadata.TotalMs = time.Since(start).Milliseconds()
	analysis.Metadata.EngineVersion = e.version
	return analysis, nil
}

// buildGraph registers the declared accounts and high-risk accounts, then
// adds every transaction.
func (e *Engine) buildGraph(req *domain.AnalysisRequest) (*graph.Graph, error) {
	opts := []graph.Option{graph.WithDuplicatePolicy(e.cfg.DuplicatePolicy)}
	if e.cfg.AutoCreateAccounts {
		opts = append(opts, graph.WithAutoCreateAccounts())
	}
	g := graph.New(e.weigher, opts...)

	for _, a := range req.Accounts {
		g.AddAccount(a)
	}
	for _, r := range req.HighRisk {
		if !g.HasAccount(r) {
			if !e.cfg.AutoCreateAccounts {
				return nil, fmt.Errorf("%w: high-risk account %q", domain.ErrUnknownAccount, r)
			}
			g.AddAccount(r)
		}
	}

	for _, t := range req.Transactions {
		if err := g.AddTransaction(t.Origin, t.Destination, t.Amount, t.Frequency); err != nil {
			return nil, fmt.Errorf("transaction %s -> %s: %w", t.Origin, t.Destination, err)
		}
	}
	return g, nil
}

func validate(req *domain.AnalysisRequest) error {
	if req == nil {
		return fmt.Errorf("analysis request is required")
	}
	if len(req.Accounts) == 0 && len(req.Transactions) == 0 {
		return fmt.Errorf("at least one account or transaction is required")
	}
	if (req.Source == "") != (req.Target == "") {
		return fmt.Errorf("source and target must be supplied together")
	}
	return nil
}

// publish emits the completed event and one alert per fraud prediction.
// Publish failures are logged, not returned: event delivery is best-effort
// and must not fail an otherwise successful analysis.
func (e *Engine) publish(ctx context.Context, tenantID string, analysis *domain.Analysis) {
	if e.bus == nil {
		return
	}

	if payload, err := json.Marshal(analysis); err == nil {
		if err := e.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
			slog.Warn("failed to publish completion event", "analysis_id", analysis.ID, "error", err)
		}
	}

	if analysis.Report == nil {
		return
	}
	threshold := analysis.Report.Threshold
	for _, entry := range analysis.RiskScores {
		if analysis.Predictions[entry.Account] != domain.LabelFraud {
			continue
		}
		event := domain.AlertEvent{
			AnalysisID:      analysis.ID,
			Account:         entry.Account,
			RiskScore:       entry.RiskScore,
			Distance:        entry.Distance,
			NearestHighRisk: entry.NearestHighRisk,
			Threshold:       threshold,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := e.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Warn("failed to publish alert", "account", entry.Account, "error", err)
		}
	}
}

// GetAnalysis fetches a previously completed analysis from the cache.
func (e *Engine) GetAnalysis(ctx context.Context, tenantID, analysisID string) (*domain.Analysis, error) {
	if e.cache == nil {
		return nil, domain.ErrAnalysisNotFound
	}
	analysis, err := e.cache.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, domain.ErrAnalysisNotFound
	}
	return analysis, nil
}
