package port

import (
	"context"
	"time"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
)

// AttemptLog persists login attempts for audit.
type AttemptLog interface {
	RecordLoginAttempt(ctx context.Context, attempt domain.LoginAttempt) error
	// CountRecentFailures reports failed attempts for an email inside the
	// window ending at the reference time.
	CountRecentFailures(ctx context.Context, email string, window time.Duration, reference time.Time) (int, error)
}
