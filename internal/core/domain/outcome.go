package domain

import "time"

// AuthOutcome is the result of any credential operation. It is transient,
// handed back to the caller and never stored. Credential operations do not
// return Go errors; every failure mode terminates here as a user-facing
// message so nothing propagates to UI code unhandled.
type AuthOutcome struct {
	Error             string
	RateLimited       bool
	RemainingAttempts *int
	// RetryAfter is how long until the limiter window frees up. Set only
	// when RateLimited is true.
	RetryAfter time.Duration
}

// OK reports whether the operation succeeded.
func (o AuthOutcome) OK() bool {
	return o.Error == "" && !o.RateLimited
}

// RateLimitedOutcome builds a throttled outcome with the retry-after message.
func RateLimitedOutcome(message string, retryAfter time.Duration) AuthOutcome {
	return AuthOutcome{Error: message, RateLimited: true, RetryAfter: retryAfter}
}

// FailedOutcome builds a plain failure outcome.
func FailedOutcome(message string) AuthOutcome {
	return AuthOutcome{Error: message}
}
