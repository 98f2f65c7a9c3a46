package domain

import (
	"context"
)

// EventBus carries the analysis pipeline's events: queued requests,
// completions and alerts. Implemented over Go channels (Community) or NATS
// (Pro). Every publish and subscribe is tenant-scoped.
type EventBus interface {
	// Publish sends a message on a topic under one tenant. The wildcard
	// tenant is not publishable.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for one tenant's messages on a topic.
	// Subscribing under TenantWildcard receives every tenant's messages on
	// the topic; handlers read the tenant from the Message envelope.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// TenantWildcard is the subscribe-side tenant matching every tenant. Used
// by the global async worker so queued analyses reach it no matter which
// tenant enqueued them.
const TenantWildcard = "*"

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the analysis pipeline.
const (
	// TopicAnalysisRequest carries queued AnalysisRequest payloads for the
	// async worker.
	TopicAnalysisRequest = "heron.analysis.request"

	// TopicAnalysisCompleted announces a finished analysis (payload: the
	// Analysis).
	TopicAnalysisCompleted = "heron.analysis.completed"

	// TopicAlert is published once per account classified as fraud.
	TopicAlert = "heron.alert"
)

// AlertEvent is the payload published on TopicAlert.
type AlertEvent struct {
	AnalysisID      string  `json:"analysisId"`
	Account         string  `json:"account"`
	RiskScore       float64 `json:"riskScore"`
	Distance        float64 `json:"distance"`
	NearestHighRisk string  `json:"nearestHighRisk,omitempty"`
	Threshold       float64 `json:"threshold"`
}

// QueuedAnalysis is the payload published on TopicAnalysisRequest: the
// pre-assigned analysis ID plus the request itself.
type QueuedAnalysis struct {
	AnalysisID string           `json:"analysisId"`
	Request    *AnalysisRequest `json:"request"`
}
