package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/logger"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/security"
)

const (
	msgDuplicateAccount  = "An account with this email already exists"
	msgInvalidLogin      = "Invalid email or password"
	msgEmailNotConfirmed = "Please check your email and confirm your account before signing in"

	msgUnexpectedSignup  = "An unexpected error occurred during signup"
	msgUnexpectedSignin  = "An unexpected error occurred during signin"
	msgUnexpectedSignout = "An unexpected error occurred during signout"
	msgUnexpectedReset   = "An unexpected error occurred while resetting password"
	msgUnexpectedUpdate  = "An unexpected error occurred while updating password"
)

// Failed logins for one address past this threshold inside the window get
// flagged as a possible credential-stuffing run.
const (
	failureAlertWindow    = 15 * time.Minute
	failureAlertThreshold = 10
)

// ClientInfo carries the request metadata used for rate-limit scoping and audit.
type ClientInfo struct {
	Identifier string
	IP         string
	UserAgent  string
}

// SignUpInput is a transient credential submission, discarded after validation.
type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// CredentialService gates every credential operation behind validation rules
// and per-action attempt limiters before delegating to the hosted identity
// provider, and normalizes provider failures into user-facing messages.
// Operations never return Go errors; all failure modes terminate here.
type CredentialService struct {
	provider port.IdentityProvider
	login    *AttemptLimiter
	signup   *AttemptLimiter
	reset    *AttemptLimiter
	attempts port.AttemptLog
	events   port.EventPublisher
	logger   *zap.Logger
}

// NewCredentialService constructs the service with its three action limiters.
func NewCredentialService(
	provider port.IdentityProvider,
	login, signup, reset *AttemptLimiter,
	log *zap.Logger,
) *CredentialService {
	if log == nil {
		log = zap.NewNop()
	}

	return &CredentialService{
		provider: provider,
		login:    login,
		signup:   signup,
		reset:    reset,
		logger:   log,
	}
}

// WithAttemptLog injects the optional login audit log.
func (s *CredentialService) WithAttemptLog(attempts port.AttemptLog) *CredentialService {
	s.attempts = attempts
	return s
}

// WithEventPublisher injects the optional auth event publisher.
func (s *CredentialService) WithEventPublisher(events port.EventPublisher) *CredentialService {
	s.events = events
	return s
}

// SignUp registers a new account. Signup may require email verification, so
// no session is assumed on success; the session store observes the provider's
// change notification asynchronously.
func (s *CredentialService) SignUp(ctx context.Context, client ClientInfo, input SignUpInput) domain.AuthOutcome {
	if !s.signup.IsAllowed(ctx, client.Identifier) {
		return s.throttled(ctx, s.signup, client.Identifier)
	}
	s.signup.RecordAttempt(ctx, client.Identifier)

	input.Email = security.SanitizeEmail(input.Email)
	input.Name = security.SanitizeInput(input.Name)

	if result := security.ValidateSignUpForm(security.SignUpForm{
		Email:           input.Email,
		Password:        input.Password,
		ConfirmPassword: input.ConfirmPassword,
		Name:            input.Name,
	}); !result.Valid {
		return domain.FailedOutcome(result.Errors[0])
	}

	var metadata map[string]string
	if input.Name != "" {
		metadata = map[string]string{"name": input.Name}
	}

	if err := s.provider.CreateAccount(ctx, input.Email, input.Password, metadata); err != nil {
		return domain.FailedOutcome(s.mapProviderError(ctx, err, "signup", map[string]string{
			"already registered": msgDuplicateAccount,
		}, msgUnexpectedSignup))
	}

	s.logger.Info("account created",
		zap.String("email", logger.MaskEmail(input.Email)),
	)

	return domain.AuthOutcome{}
}

// SignIn authenticates against the provider. Provider failures carry the
// remaining attempt budget so the UI can warn ahead of lockout; provider
// success clears the login record for the client.
func (s *CredentialService) SignIn(ctx context.Context, client ClientInfo, email, password string) domain.AuthOutcome {
	if !s.login.IsAllowed(ctx, client.Identifier) {
		s.auditLogin(ctx, client, email, false, true)
		return s.throttled(ctx, s.login, client.Identifier)
	}
	s.login.RecordAttempt(ctx, client.Identifier)

	email = security.SanitizeEmail(email)

	if result := security.ValidateSignInForm(security.SignInForm{Email: email, Password: password}); !result.Valid {
		return domain.FailedOutcome(result.Errors[0])
	}

	if err := s.provider.Authenticate(ctx, email, password); err != nil {
		s.auditLogin(ctx, client, email, false, false)

		message := s.mapProviderError(ctx, err, "signin", map[string]string{
			"Invalid login credentials": msgInvalidLogin,
			"Email not confirmed":       msgEmailNotConfirmed,
		}, msgUnexpectedSignin)

		remaining := s.login.RemainingAttempts(ctx, client.Identifier)
		return domain.AuthOutcome{Error: message, RemainingAttempts: &remaining}
	}

	// Provider reports authenticated: reset throttling for this client.
	s.login.Clear(ctx, client.Identifier)
	s.auditLogin(ctx, client, email, true, false)

	s.logger.Info("sign in succeeded",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("client_ip", logger.MaskIP(client.IP)),
	)

	return domain.AuthOutcome{}
}

// SignOut delegates to the provider. The session store clears on the
// provider's change notification, never synchronously here.
func (s *CredentialService) SignOut(ctx context.Context) domain.AuthOutcome {
	if err := s.provider.InvalidateSession(ctx); err != nil {
		return domain.FailedOutcome(s.mapProviderError(ctx, err, "signout", nil, msgUnexpectedSignout))
	}
	return domain.AuthOutcome{}
}

// ResetPassword dispatches a reset email through the provider.
func (s *CredentialService) ResetPassword(ctx context.Context, client ClientInfo, email string) domain.AuthOutcome {
	if !s.reset.IsAllowed(ctx, client.Identifier) {
		return s.throttled(ctx, s.reset, client.Identifier)
	}
	s.reset.RecordAttempt(ctx, client.Identifier)

	email = security.SanitizeEmail(email)

	if result := security.ValidateEmail(email); !result.Valid {
		return domain.FailedOutcome(result.Errors[0])
	}

	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		return domain.FailedOutcome(s.mapProviderError(ctx, err, "password reset", nil, msgUnexpectedReset))
	}

	s.publishResetRequested(ctx, client, email)

	return domain.AuthOutcome{}
}

// UpdatePassword replaces the signed-in account's password after applying the
// same policy rules used at signup.
func (s *CredentialService) UpdatePassword(ctx context.Context, newPassword string) domain.AuthOutcome {
	if result := security.ValidatePassword(newPassword); !result.Valid {
		return domain.FailedOutcome(result.Errors[0])
	}

	if err := s.provider.UpdatePassword(ctx, newPassword); err != nil {
		return domain.FailedOutcome(s.mapProviderError(ctx, err, "password update", nil, msgUnexpectedUpdate))
	}

	return domain.AuthOutcome{}
}

// GetUser performs a one-shot read of the provider's current identity.
// Returns nil both when unauthenticated and on error; errors are logged, not
// surfaced.
func (s *CredentialService) GetUser(ctx context.Context) *domain.Session {
	session, err := s.provider.CurrentIdentity(ctx)
	if err != nil {
		s.logger.Warn("get user failed", zap.Error(err))
		return nil
	}
	return session
}

func (s *CredentialService) throttled(ctx context.Context, limiter *AttemptLimiter, key string) domain.AuthOutcome {
	reset := limiter.ResetAfter(ctx, key)
	minutes := int(math.Ceil(reset.Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	message := fmt.Sprintf("Too many attempts. Please try again in %d minutes.", minutes)
	if minutes == 1 {
		message = "Too many attempts. Please try again in 1 minute."
	}
	return domain.RateLimitedOutcome(message, reset)
}

// mapProviderError normalizes provider-reported failures through the
// substring table and collapses everything else (transport failures,
// malformed responses) into the generic message for the operation.
func (s *CredentialService) mapProviderError(ctx context.Context, err error, op string, substitutions map[string]string, fallback string) string {
	var provErr *port.ProviderError
	if errors.As(err, &provErr) {
		for fragment, friendly := range substitutions {
			if strings.Contains(provErr.Message, fragment) {
				return friendly
			}
		}
		if provErr.Message != "" {
			return provErr.Message
		}
		return fallback
	}

	logger.WithContext(ctx).Error(op+" failed unexpectedly", zap.Error(err))
	return fallback
}

func (s *CredentialService) auditLogin(ctx context.Context, client ClientInfo, email string, succeeded, rateLimited bool) {
	if s.attempts == nil {
		return
	}

	attempt := domain.LoginAttempt{
		ID:          uuid.NewString(),
		Email:       security.SanitizeEmail(email),
		Succeeded:   succeeded,
		RateLimited: rateLimited,
		CreatedAt:   time.Now().UTC(),
	}
	if client.IP != "" {
		ip := client.IP
		attempt.IP = &ip
	}
	if client.UserAgent != "" {
		ua := client.UserAgent
		attempt.UserAgent = &ua
	}

	if err := s.attempts.RecordLoginAttempt(ctx, attempt); err != nil {
		s.logger.Warn("record login attempt failed", zap.Error(err))
		return
	}

	if succeeded || rateLimited {
		return
	}

	count, err := s.attempts.CountRecentFailures(ctx, attempt.Email, failureAlertWindow, attempt.CreatedAt)
	if err != nil {
		s.logger.Warn("count login failures failed", zap.Error(err))
		return
	}
	if count >= failureAlertThreshold {
		s.logger.Warn("elevated login failure rate",
			zap.String("email", logger.MaskEmail(attempt.Email)),
			zap.Int("recent_failures", count),
		)
	}
}

func (s *CredentialService) publishResetRequested(ctx context.Context, client ClientInfo, email string) {
	if s.events == nil {
		return
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:     uuid.NewString(),
		MaskedEmail: logger.MaskEmail(email),
		RequestedAt: time.Now().UTC(),
	}
	if client.IP != "" {
		ip := client.IP
		event.IPAddress = &ip
	}

	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset event failed", zap.Error(err))
	}
}
