package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka. The emergency
// coordination backend consumes these topics to correlate responder activity
// with account state.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserSignedIn publishes lifeline.auth.signed_in events.
func (p *EventPublisher) PublishUserSignedIn(ctx context.Context, event domain.UserSignedInEvent) error {
	payload := struct {
		UserID   string         `json:"user_id"`
		Email    string         `json:"email"`
		SignedIn time.Time      `json:"signed_in_at"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{
		UserID:   event.UserID,
		Email:    event.Email,
		SignedIn: event.SignedIn.UTC(),
		Metadata: event.Metadata,
	}

	return p.publish(ctx, event.EventID, "lifeline.auth.signed_in", event.UserID, event.SignedIn, payload)
}

// PublishUserSignedOut publishes lifeline.auth.signed_out events.
func (p *EventPublisher) PublishUserSignedOut(ctx context.Context, event domain.UserSignedOutEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		Reason    string         `json:"reason"`
		SignedOut time.Time      `json:"signed_out_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		Reason:    event.Reason,
		SignedOut: event.SignedOut.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "lifeline.auth.signed_out", event.UserID, event.SignedOut, payload)
}

// PublishPasswordResetRequested publishes lifeline.auth.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		MaskedEmail string         `json:"masked_email"`
		RequestedAt time.Time      `json:"requested_at"`
		IPAddress   *string        `json:"ip_address,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		MaskedEmail: event.MaskedEmail,
		RequestedAt: event.RequestedAt.UTC(),
		IPAddress:   event.IPAddress,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "lifeline.auth.password.reset_requested", "", event.RequestedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
