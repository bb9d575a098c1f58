package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LoginAttemptRepository persists the login-attempt audit log.
type LoginAttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLoginAttemptRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLoginAttemptRepository(exec pgExecutor) *LoginAttemptRepository {
	return &LoginAttemptRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// RecordLoginAttempt inserts a single attempt row.
func (r *LoginAttemptRepository) RecordLoginAttempt(ctx context.Context, attempt domain.LoginAttempt) error {
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var ipValue any
	if attempt.IP != nil && *attempt.IP != "" {
		ipValue = *attempt.IP
	}

	var userAgentValue any
	if attempt.UserAgent != nil && *attempt.UserAgent != "" {
		userAgentValue = *attempt.UserAgent
	}

	query := r.builder.Insert("lifeline.login_attempts").
		Columns(
			"id",
			"email",
			"succeeded",
			"rate_limited",
			"ip",
			"user_agent",
			"created_at",
		).
		Values(
			attempt.ID,
			attempt.Email,
			attempt.Succeeded,
			attempt.RateLimited,
			ipValue,
			userAgentValue,
			createdAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

// CountRecentFailures returns failed attempts for an email within the window
// ending at the reference time, feeding the sign-in stuffing check.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email string, window time.Duration, reference time.Time) (int, error) {
	query := r.builder.Select("COUNT(*)").
		From("lifeline.login_attempts").
		Where(squirrel.Eq{"email": email}).
		Where(squirrel.Eq{"succeeded": false}).
		Where(squirrel.GtOrEq{"created_at": reference.Add(-window)})

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count failures sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count login failures: %w", err)
	}

	return count, nil
}

var _ port.AttemptLog = (*LoginAttemptRepository)(nil)
