package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserSignedIn logs lifeline.auth.signed_in events.
func (p *StubPublisher) PublishUserSignedIn(_ context.Context, event domain.UserSignedInEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"email":        event.Email,
		"signed_in_at": event.SignedIn,
		"metadata":     event.Metadata,
	}
	p.logEvent("lifeline.auth.signed_in", event.UserID, event.SignedIn, payload)
	return nil
}

// PublishUserSignedOut logs lifeline.auth.signed_out events.
func (p *StubPublisher) PublishUserSignedOut(_ context.Context, event domain.UserSignedOutEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"reason":        event.Reason,
		"signed_out_at": event.SignedOut,
		"metadata":      event.Metadata,
	}
	p.logEvent("lifeline.auth.signed_out", event.UserID, event.SignedOut, payload)
	return nil
}

// PublishPasswordResetRequested logs lifeline.auth.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"masked_email": event.MaskedEmail,
		"requested_at": event.RequestedAt,
		"ip_address":   event.IPAddress,
		"metadata":     event.Metadata,
	}
	p.logEvent("lifeline.auth.password.reset_requested", "", event.RequestedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
