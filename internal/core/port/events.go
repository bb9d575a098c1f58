package port

import (
	"context"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
)

// EventPublisher publishes auth events to the message bus consumed by the
// emergency coordination backend.
type EventPublisher interface {
	PublishUserSignedIn(ctx context.Context, event domain.UserSignedInEvent) error
	PublishUserSignedOut(ctx context.Context, event domain.UserSignedOutEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
}
