// Package worker provides async analysis processing for queued requests.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
)

// Worker runs analyses submitted to the event bus off the HTTP path.
// The API enqueues a QueuedAnalysis on TopicAnalysisRequest and returns
// immediately; the worker computes the result, caches it under the
// pre-assigned analysis ID and publishes the completion and alert events.
type Worker struct {
	bus    domain.EventBus
	engine *engine.Engine

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	// mu guards stopped; wg counts in-flight analyses. begin refuses new
	// work once stopped is set, so Stop's Wait cannot race a late Add.
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global worker).
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing queued analyses for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that drains every tenant's queue via a
// wildcard subscription. The tenant of each queued analysis is read from
// the message envelope.
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TenantWildcard, domain.TopicAnalysisRequest, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAnalysisRequest, func(ctx context.Context, msg *domain.Message) error {
		return w.processAnalysis(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAnalysisRequest,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAnalysis(ctx, msg.TenantID, msg)
}

// begin registers an in-flight analysis. It fails once Stop has begun
// draining; a message delivered during shutdown is dropped instead of
// racing the drain.
func (w *Worker) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.wg.Add(1)
	return true
}

// processAnalysis runs one queued analysis through the engine.
func (w *Worker) processAnalysis(ctx context.Context, tenantID string, msg *domain.Message) error {
	if !w.begin() {
		return nil
	}
	defer w.wg.Done()

	start := time.Now()

	var queued domain.QueuedAnalysis
	if err := json.Unmarshal(msg.Payload, &queued); err != nil {
		slog.Error("failed to parse queued analysis",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing queued analysis",
		"analysis_id", queued.AnalysisID,
		"tenant_id", tenantID,
	)

	analysis, err := w.engine.Run(ctx, tenantID, queued.AnalysisID, queued.Request)
	if err != nil {
		// A bad request that slipped past API validation lands here; there
		// is no caller left to report to, so log and drop.
		slog.Error("queued analysis failed",
			"analysis_id", queued.AnalysisID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	slog.Info("queued analysis processed",
		"analysis_id", analysis.ID,
		"tenant_id", tenantID,
		"accounts", analysis.Metadata.AccountCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	// Refuse new work, then drain what already started.
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
