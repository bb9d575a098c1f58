package domain

import "time"

// LoginAttempt records credential submissions for throttling audit.
// IP and UserAgent are optional request metadata.
type LoginAttempt struct {
	ID          string
	Email       string
	Succeeded   bool
	RateLimited bool
	IP          *string
	UserAgent   *string
	CreatedAt   time.Time
}
