package domain

import "time"

// UserSignedInEvent is published when the provider confirms a sign-in.
type UserSignedInEvent struct {
	EventID  string
	UserID   string
	Email    string
	SignedIn time.Time
	Metadata map[string]any
}

// UserSignedOutEvent is published when the provider reports a sign-out or expiry.
type UserSignedOutEvent struct {
	EventID   string
	UserID    string
	Reason    string
	SignedOut time.Time
	Metadata  map[string]any
}

// PasswordResetRequestedEvent is published when a reset email dispatch is
// requested. It carries only the masked address; the raw one stays out of
// the event pipeline.
type PasswordResetRequestedEvent struct {
	EventID     string
	MaskedEmail string
	IPAddress   *string
	RequestedAt time.Time
	Metadata    map[string]any
}
