package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	pkgkafka "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/kafka"
)

// Kafka topic constants for identity domain events consumed by the access
// service. Identity records are owned by the user-management subsystem; these
// events are how its changes reach our token store.
const (
	TopicIdentityUpdated     = "crm.identity.updated"
	TopicIdentityDeactivated = "crm.identity.deactivated"
	TopicIdentityDeleted     = "crm.identity.deleted"
)

// idempotencyTTL bounds how long processed event IDs are remembered.
const idempotencyTTL = 24 * time.Hour

// IdentityEventData represents the payload of identity.updated and
// identity.deactivated events.
type IdentityEventData struct {
	IdentityID string `json:"identity_id"`
	Role       string `json:"role,omitempty"`
	Active     bool   `json:"active"`
}

// IdentityDeletedData represents the payload of an identity.deleted event.
type IdentityDeletedData struct {
	IdentityID string `json:"identity_id"`
}

// TokenRevoker revokes tokens in bulk. Satisfied by service.TokenService.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, identityID string, kind *domain.TokenKind) (int64, error)
}

// AuditSink accepts audit entries. Satisfied by service.AuditRecorder.
type AuditSink interface {
	Record(entry domain.AuditEntry)
}

// Consumer handles identity domain events. A deactivated or deleted identity
// has every live token revoked immediately; waiting for expiry would leave a
// removed account authenticated for up to 30 days through its API tokens.
// Role changes need no action here because the gate re-reads the role on
// every request.
type Consumer struct {
	tokens TokenRevoker
	audit  AuditSink
	dlq    *pkgkafka.DLQProducer
	logger *slog.Logger
}

// NewConsumer creates a new identity event consumer. dlq may be nil, in which
// case undecodable events are only logged.
func NewConsumer(tokens TokenRevoker, audit AuditSink, dlq *pkgkafka.DLQProducer, logger *slog.Logger) *Consumer {
	return &Consumer{
		tokens: tokens,
		audit:  audit,
		dlq:    dlq,
		logger: logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicIdentityUpdated, TopicIdentityDeactivated:
		var data IdentityEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			c.deadLetter(ctx, event, err)
			return nil
		}
		if data.Active {
			return nil
		}
		return c.revokeAll(ctx, data.IdentityID, event.EventType)

	case TopicIdentityDeleted:
		var data IdentityDeletedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			c.deadLetter(ctx, event, err)
			return nil
		}
		return c.revokeAll(ctx, data.IdentityID, event.EventType)

	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// revokeAll revokes every live token of the identity, across all kinds.
func (c *Consumer) revokeAll(ctx context.Context, identityID, reason string) error {
	if identityID == "" {
		return nil
	}

	n, err := c.tokens.RevokeAll(ctx, identityID, nil)
	if err != nil {
		return fmt.Errorf("revoke tokens for %s: %w", identityID, err)
	}

	c.audit.Record(domain.AuditEntry{
		IdentityID: identityID,
		Action:     domain.AuditActionDelete,
		Resource:   "tokens",
		Details:    fmt.Sprintf(`{"trigger":%q,"revoked":%d}`, reason, n),
	})

	c.logger.InfoContext(ctx, "revoked tokens for identity event",
		slog.String("identity_id", identityID),
		slog.String("event_type", reason),
		slog.Int64("revoked", n),
	)

	return nil
}

// deadLetter routes an undecodable event to the DLQ so it is preserved for
// inspection instead of being retried forever.
func (c *Consumer) deadLetter(ctx context.Context, event *pkgkafka.Event, cause error) {
	c.logger.ErrorContext(ctx, "undecodable identity event",
		slog.String("event_type", event.EventType),
		slog.String("event_id", event.EventID),
		slog.String("error", cause.Error()),
	)

	if c.dlq == nil {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := kafka.Message{
		Topic: event.EventType,
		Key:   []byte(event.AggregateID),
		Value: raw,
	}
	if err := c.dlq.Publish(ctx, msg, cause, "access-service"); err != nil {
		c.logger.ErrorContext(ctx, "failed to dead-letter event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
	}
}

// NewConsumers creates deduplicating Kafka consumers for every identity topic
// the access service subscribes to.
func NewConsumers(brokers []string, handler *Consumer, logger *slog.Logger) []*pkgkafka.Consumer {
	store := pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	dedup := pkgkafka.IdempotentHandler(store, handler.Handle, logger)

	topics := []string{
		TopicIdentityUpdated,
		TopicIdentityDeactivated,
		TopicIdentityDeleted,
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  "access-service",
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}
		consumers = append(consumers, pkgkafka.NewConsumer(cfg, dedup, logger))
	}
	return consumers
}
