package port

import (
	"context"
	"fmt"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
)

// IdentityProvider is the boundary to the hosted identity service that stores
// credentials and issues sessions. Implementations own the tokens for the
// current session and push change notifications on the stream returned by
// SessionChanges; nothing else writes session state.
type IdentityProvider interface {
	// CreateAccount registers a new account. A session may not exist afterwards
	// when the provider requires email verification first.
	CreateAccount(ctx context.Context, email, password string, metadata map[string]string) error
	// Authenticate performs a password grant and, on success, emits a signed-in
	// notification on the change stream.
	Authenticate(ctx context.Context, email, password string) error
	// InvalidateSession revokes the current session and emits a signed-out notification.
	InvalidateSession(ctx context.Context) error
	// CurrentIdentity reads the identity the provider currently considers
	// signed in. Returns (nil, nil) when unauthenticated.
	CurrentIdentity(ctx context.Context) (*domain.Session, error)
	// SendPasswordReset dispatches a password reset email.
	SendPasswordReset(ctx context.Context, email string) error
	// UpdatePassword replaces the password of the signed-in account.
	UpdatePassword(ctx context.Context, newPassword string) error
	// SessionChanges registers a subscriber for change notifications.
	// The returned func unsubscribes and must be called on teardown.
	SessionChanges() (<-chan domain.SessionEvent, func())
}

// ProviderError carries a failure reported by the identity provider itself,
// as opposed to transport failures reaching it.
type ProviderError struct {
	Status  int
	Message string
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("identity provider: %s (status %d)", e.Message, e.Status)
}
