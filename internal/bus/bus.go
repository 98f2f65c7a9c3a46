// Package bus moves the analysis pipeline's events between the API, the
// engine and the async worker. Two implementations exist: an in-process
// channel bus for the Community tier and a NATS bus for the Pro tier. Both
// route by (tenant, topic) and support a subscribe-side wildcard tenant so
// a single worker can drain every tenant's queue.
package bus

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/heron/internal/domain"
)

// New builds the event bus selected by configuration: "channel" for the
// Community tier, "nats" for Pro.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// newMessage wraps a payload in the envelope both bus implementations
// deliver. Wildcard subscribers depend on TenantID being filled in here.
func newMessage(tenantID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}
