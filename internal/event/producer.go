package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	pkgkafka "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/kafka"
)

// Kafka topic constants for access control events.
const (
	TopicAuditRecorded     = "crm.access.audit"
	TopicPasswordReset     = "crm.access.password_reset"
	TopicEmailVerification = "crm.access.email_verification"
	TopicEmailVerified     = "crm.access.email_verified"
)

// Aggregate type constant.
const AggregateTypeIdentity = "identity"

// Source identifier for events originating from this service.
const SourceAccessService = "access-service"

// AuditRecordedData mirrors an audit entry onto the event bus so downstream
// consumers (billing, anomaly detection) see the same trail as the database.
type AuditRecordedData struct {
	EntryID    string `json:"entry_id"`
	IdentityID string `json:"identity_id,omitempty"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resource_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
}

// PasswordResetData is the payload for a password_reset event. The raw reset
// token rides on the event so the notification service can build the email
// link; it is never persisted anywhere in raw form.
type PasswordResetData struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// EmailVerificationData is the payload for an email_verification event.
type EmailVerificationData struct {
	IdentityID        string `json:"identity_id"`
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

// EmailVerifiedData is the payload for an email_verified event, consumed by
// the subsystem that owns identity records.
type EmailVerifiedData struct {
	IdentityID string `json:"identity_id"`
}

// Producer publishes access control events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the access service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAuditRecorded publishes a crm.access.audit event.
func (p *Producer) PublishAuditRecorded(ctx context.Context, entry *domain.AuditEntry) error {
	data := AuditRecordedData{
		EntryID:    entry.ID,
		IdentityID: entry.IdentityID,
		Action:     string(entry.Action),
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		IPAddress:  entry.IPAddress,
	}

	event, err := pkgkafka.NewEvent(TopicAuditRecorded, entry.ID, AggregateTypeIdentity, SourceAccessService, data)
	if err != nil {
		return fmt.Errorf("create audit event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAuditRecorded, event); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}

	return nil
}

// PublishPasswordReset publishes a crm.access.password_reset event.
func (p *Producer) PublishPasswordReset(ctx context.Context, identityID, email, resetToken string) error {
	data := PasswordResetData{
		IdentityID: identityID,
		Email:      email,
		ResetToken: resetToken,
	}

	event, err := pkgkafka.NewEvent(TopicPasswordReset, identityID, AggregateTypeIdentity, SourceAccessService, data)
	if err != nil {
		return fmt.Errorf("create password_reset event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPasswordReset, event); err != nil {
		return fmt.Errorf("publish password_reset event: %w", err)
	}

	p.logger.DebugContext(ctx, "published password_reset event",
		slog.String("identity_id", identityID),
	)

	return nil
}

// PublishEmailVerification publishes a crm.access.email_verification event.
func (p *Producer) PublishEmailVerification(ctx context.Context, identityID, email, verificationToken string) error {
	data := EmailVerificationData{
		IdentityID:        identityID,
		Email:             email,
		VerificationToken: verificationToken,
	}

	event, err := pkgkafka.NewEvent(TopicEmailVerification, identityID, AggregateTypeIdentity, SourceAccessService, data)
	if err != nil {
		return fmt.Errorf("create email_verification event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicEmailVerification, event); err != nil {
		return fmt.Errorf("publish email_verification event: %w", err)
	}

	p.logger.DebugContext(ctx, "published email_verification event",
		slog.String("identity_id", identityID),
	)

	return nil
}

// PublishEmailVerified publishes a crm.access.email_verified event.
func (p *Producer) PublishEmailVerified(ctx context.Context, identityID string) error {
	data := EmailVerifiedData{IdentityID: identityID}

	event, err := pkgkafka.NewEvent(TopicEmailVerified, identityID, AggregateTypeIdentity, SourceAccessService, data)
	if err != nil {
		return fmt.Errorf("create email_verified event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicEmailVerified, event); err != nil {
		return fmt.Errorf("publish email_verified event: %w", err)
	}

	p.logger.DebugContext(ctx, "published email_verified event",
		slog.String("identity_id", identityID),
	)

	return nil
}
