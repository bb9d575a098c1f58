package domain

import "time"

// AuthState enumerates the phases of the session state machine.
type AuthState string

const (
	// AuthStateInitializing means the initial provider read has not resolved yet.
	AuthStateInitializing AuthState = "initializing"
	// AuthStateAuthenticated means the provider reports a signed-in identity.
	AuthStateAuthenticated AuthState = "authenticated"
	// AuthStateUnauthenticated means the provider reports no active session.
	AuthStateUnauthenticated AuthState = "unauthenticated"
)

// Session mirrors the identity the hosted provider currently reports as signed in.
// It is owned by the session store and only ever written from provider notifications.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
}

// SessionEventType enumerates provider change notifications.
type SessionEventType string

const (
	SessionEventInitial        SessionEventType = "initial_session"
	SessionEventSignedIn       SessionEventType = "signed_in"
	SessionEventSignedOut      SessionEventType = "signed_out"
	SessionEventTokenRefreshed SessionEventType = "token_refreshed"
	SessionEventExpired        SessionEventType = "session_expired"
)

// SessionEvent is a single change notification delivered by the identity provider.
// Session is nil when the event reports an unauthenticated state.
type SessionEvent struct {
	Type    SessionEventType
	Session *Session
	At      time.Time
}
