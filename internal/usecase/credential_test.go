package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
	"github.com/Vipul0052/Lifeline-v2/internal/repository/memory"
)

type stubProvider struct {
	mu sync.Mutex

	createErr  error
	authErr    error
	signOutErr error
	resetErr   error
	updateErr  error

	current    *domain.Session
	currentErr error

	createCalls  int
	authCalls    int
	signOutCalls int
	resetCalls   int
	updateCalls  int

	lastEmail    string
	lastMetadata map[string]string

	events chan domain.SessionEvent

	// identityGate, when set, blocks CurrentIdentity until closed.
	identityGate chan struct{}
}

func newStubProvider() *stubProvider {
	return &stubProvider{events: make(chan domain.SessionEvent, 8)}
}

func (p *stubProvider) CreateAccount(_ context.Context, email, _ string, metadata map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	p.lastEmail = email
	p.lastMetadata = metadata
	return p.createErr
}

func (p *stubProvider) Authenticate(_ context.Context, email, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authCalls++
	p.lastEmail = email
	return p.authErr
}

func (p *stubProvider) InvalidateSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return p.signOutErr
}

func (p *stubProvider) CurrentIdentity(context.Context) (*domain.Session, error) {
	p.mu.Lock()
	gate := p.identityGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.currentErr
}

func (p *stubProvider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetCalls++
	p.lastEmail = email
	return p.resetErr
}

func (p *stubProvider) UpdatePassword(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCalls++
	return p.updateErr
}

func (p *stubProvider) SessionChanges() (<-chan domain.SessionEvent, func()) {
	return p.events, func() {}
}

func (p *stubProvider) calls(field *int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *field
}

type credentialFixture struct {
	service  *CredentialService
	provider *stubProvider
	now      *time.Time
	client   ClientInfo
}

func newCredentialFixture(t *testing.T) *credentialFixture {
	t.Helper()

	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewRateLimitStore(24 * time.Hour)
	t.Cleanup(store.Stop)

	log := zaptest.NewLogger(t)
	login := NewAttemptLimiter("login", store, 5, 15*time.Minute, log).WithClock(clock)
	signup := NewAttemptLimiter("signup", store, 3, time.Hour, log).WithClock(clock)
	reset := NewAttemptLimiter("password-reset", store, 3, time.Hour, log).WithClock(clock)

	provider := newStubProvider()
	service := NewCredentialService(provider, login, signup, reset, log)

	return &credentialFixture{
		service:  service,
		provider: provider,
		now:      &now,
		client:   ClientInfo{Identifier: "fp-abc", IP: "192.0.2.10", UserAgent: "lifeline-mobile/2.1.0"},
	}
}

func TestSignUpSucceedsWithValidInput(t *testing.T) {
	f := newCredentialFixture(t)

	outcome := f.service.SignUp(context.Background(), f.client, SignUpInput{
		Email:           "user@example.com",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
		Name:            "Jane Doe",
	})

	if !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if f.provider.calls(&f.provider.createCalls) != 1 {
		t.Fatal("expected provider to be contacted once")
	}
	if f.provider.lastMetadata["name"] != "Jane Doe" {
		t.Fatalf("expected name metadata, got %v", f.provider.lastMetadata)
	}
}

func TestSignUpSanitizesEmailBeforeDelegating(t *testing.T) {
	f := newCredentialFixture(t)

	outcome := f.service.SignUp(context.Background(), f.client, SignUpInput{
		Email:           "  User@Example.COM ",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	})

	if !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if f.provider.lastEmail != "user@example.com" {
		t.Fatalf("expected sanitized email, got %q", f.provider.lastEmail)
	}
}

func TestSignUpValidationFailureSkipsProvider(t *testing.T) {
	f := newCredentialFixture(t)

	outcome := f.service.SignUp(context.Background(), f.client, SignUpInput{
		Email:           "",
		Password:        "short",
		ConfirmPassword: "x",
	})

	if outcome.OK() {
		t.Fatal("expected failure")
	}
	if outcome.Error != "Email is required" {
		t.Fatalf("expected first validation error, got %q", outcome.Error)
	}
	if outcome.RateLimited {
		t.Fatal("validation failure must not be flagged as rate limited")
	}
	if f.provider.calls(&f.provider.createCalls) != 0 {
		t.Fatal("provider must not be contacted on validation failure")
	}
}

func TestSignUpMapsDuplicateAccountError(t *testing.T) {
	f := newCredentialFixture(t)
	f.provider.createErr = &port.ProviderError{Status: 400, Message: "User already registered"}

	outcome := f.service.SignUp(context.Background(), f.client, SignUpInput{
		Email:           "user@example.com",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	})

	if outcome.Error != "An account with this email already exists" {
		t.Fatalf("expected duplicate account message, got %q", outcome.Error)
	}
}

func TestSignUpUnexpectedErrorYieldsGenericMessage(t *testing.T) {
	f := newCredentialFixture(t)
	f.provider.createErr = errors.New("dial tcp: connection refused")

	outcome := f.service.SignUp(context.Background(), f.client, SignUpInput{
		Email:           "user@example.com",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	})

	if outcome.Error != "An unexpected error occurred during signup" {
		t.Fatalf("expected generic signup message, got %q", outcome.Error)
	}
}

func TestSignInInvalidCredentialsCarriesRemainingAttempts(t *testing.T) {
	f := newCredentialFixture(t)
	f.provider.authErr = &port.ProviderError{Status: 400, Message: "Invalid login credentials"}

	outcome := f.service.SignIn(context.Background(), f.client, "user@example.com", "Wrong1234!")

	if outcome.Error != "Invalid email or password" {
		t.Fatalf("expected mapped message, got %q", outcome.Error)
	}
	if outcome.RemainingAttempts == nil || *outcome.RemainingAttempts != 4 {
		t.Fatalf("expected 4 remaining attempts, got %v", outcome.RemainingAttempts)
	}
}

func TestSignInUnconfirmedEmailMapped(t *testing.T) {
	f := newCredentialFixture(t)
	f.provider.authErr = &port.ProviderError{Status: 400, Message: "Email not confirmed"}

	outcome := f.service.SignIn(context.Background(), f.client, "user@example.com", "Passw0rd!")

	if outcome.Error != "Please check your email and confirm your account before signing in" {
		t.Fatalf("expected confirmation message, got %q", outcome.Error)
	}
}

func TestSignInRateLimitedOnSixthAttempt(t *testing.T) {
	f := newCredentialFixture(t)
	f.provider.authErr = &port.ProviderError{Status: 400, Message: "Invalid login credentials"}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		outcome := f.service.SignIn(ctx, f.client, "user@example.com", "Wrong1234!")
		if outcome.RateLimited {
			t.Fatalf("attempt %d should not be rate limited", i+1)
		}
		*f.now = f.now.Add(time.Second)
	}

	outcome := f.service.SignIn(ctx, f.client, "user@example.com", "Wrong1234!")
	if !outcome.RateLimited {
		t.Fatalf("expected 6th attempt to be rate limited, got %+v", outcome)
	}
	if !strings.Contains(outcome.Error, "Too many attempts") {
		t.Fatalf("expected retry-after message, got %q", outcome.Error)
	}
	if f.provider.calls(&f.provider.authCalls) != 5 {
		t.Fatalf("rate-limited attempt must not reach the provider, got %d calls", f.provider.calls(&f.provider.authCalls))
	}
}

func TestSignInSuccessClearsThrottling(t *testing.T) {
	f := newCredentialFixture(t)
	ctx := context.Background()

	f.provider.authErr = &port.ProviderError{Status: 400, Message: "Invalid login credentials"}
	for i := 0; i < 3; i++ {
		f.service.SignIn(ctx, f.client, "user@example.com", "Wrong1234!")
		*f.now = f.now.Add(time.Second)
	}

	f.provider.mu.Lock()
	f.provider.authErr = nil
	f.provider.mu.Unlock()

	outcome := f.service.SignIn(ctx, f.client, "user@example.com", "Passw0rd!")
	if !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}

	// A following failure sees the full budget again.
	f.provider.mu.Lock()
	f.provider.authErr = &port.ProviderError{Status: 400, Message: "Invalid login credentials"}
	f.provider.mu.Unlock()

	failed := f.service.SignIn(ctx, f.client, "user@example.com", "Wrong1234!")
	if failed.RemainingAttempts == nil || *failed.RemainingAttempts != 4 {
		t.Fatalf("expected throttling reset after success, got %v", failed.RemainingAttempts)
	}
}

type stubAttemptLog struct {
	mu         sync.Mutex
	attempts   []domain.LoginAttempt
	failures   int
	countCalls int
}

func (l *stubAttemptLog) RecordLoginAttempt(_ context.Context, attempt domain.LoginAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, attempt)
	return nil
}

func (l *stubAttemptLog) CountRecentFailures(_ context.Context, _ string, _ time.Duration, _ time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.countCalls++
	return l.failures, nil
}

func TestSignInAuditChecksFailureRateOnFailureOnly(t *testing.T) {
	f := newCredentialFixture(t)
	attempts := &stubAttemptLog{failures: failureAlertThreshold + 2}
	f.service.WithAttemptLog(attempts)
	ctx := context.Background()

	f.provider.authErr = &port.ProviderError{Status: 400, Message: "Invalid login credentials"}
	f.service.SignIn(ctx, f.client, "user@example.com", "Wrong1234!")

	attempts.mu.Lock()
	if len(attempts.attempts) != 1 || attempts.attempts[0].Succeeded {
		t.Fatalf("expected 1 failed attempt recorded, got %+v", attempts.attempts)
	}
	if attempts.countCalls != 1 {
		t.Fatalf("expected failure-rate check after a failed login, got %d calls", attempts.countCalls)
	}
	attempts.mu.Unlock()

	f.provider.mu.Lock()
	f.provider.authErr = nil
	f.provider.mu.Unlock()

	if outcome := f.service.SignIn(ctx, f.client, "user@example.com", "Passw0rd!"); !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}

	attempts.mu.Lock()
	defer attempts.mu.Unlock()
	if len(attempts.attempts) != 2 || !attempts.attempts[1].Succeeded {
		t.Fatalf("expected success recorded, got %+v", attempts.attempts)
	}
	if attempts.countCalls != 1 {
		t.Fatalf("successful logins must not trigger the failure-rate check, got %d calls", attempts.countCalls)
	}
}

func TestSignInValidationRunsBeforeProvider(t *testing.T) {
	f := newCredentialFixture(t)

	outcome := f.service.SignIn(context.Background(), f.client, "not-an-email", "Passw0rd!")
	if outcome.Error != "Please enter a valid email address" {
		t.Fatalf("expected email validation error, got %q", outcome.Error)
	}
	if f.provider.calls(&f.provider.authCalls) != 0 {
		t.Fatal("provider must not be contacted on validation failure")
	}
}

func TestSignOut(t *testing.T) {
	f := newCredentialFixture(t)

	if outcome := f.service.SignOut(context.Background()); !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}

	f.provider.signOutErr = &port.ProviderError{Status: 401, Message: "session not found"}
	outcome := f.service.SignOut(context.Background())
	if outcome.Error != "session not found" {
		t.Fatalf("expected provider message passthrough, got %q", outcome.Error)
	}
}

func TestResetPasswordValidatesEmail(t *testing.T) {
	f := newCredentialFixture(t)

	outcome := f.service.ResetPassword(context.Background(), f.client, "bad-address")
	if outcome.Error != "Please enter a valid email address" {
		t.Fatalf("expected email validation error, got %q", outcome.Error)
	}
	if f.provider.calls(&f.provider.resetCalls) != 0 {
		t.Fatal("provider must not be contacted for an invalid address")
	}

	if outcome := f.service.ResetPassword(context.Background(), f.client, "user@example.com"); !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}
}

func TestResetPasswordEventCarriesMaskedAddressOnly(t *testing.T) {
	f := newCredentialFixture(t)
	publisher := &recordingPublisher{}
	f.service.WithEventPublisher(publisher)

	if outcome := f.service.ResetPassword(context.Background(), f.client, "user@example.com"); !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.resets) != 1 {
		t.Fatalf("expected 1 reset event, got %d", len(publisher.resets))
	}
	if got := publisher.resets[0].MaskedEmail; got != "use***@example.com" {
		t.Fatalf("expected masked address, got %q", got)
	}
}

func TestResetPasswordRateLimited(t *testing.T) {
	f := newCredentialFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if outcome := f.service.ResetPassword(ctx, f.client, "user@example.com"); !outcome.OK() {
			t.Fatalf("attempt %d: expected success, got %+v", i+1, outcome)
		}
	}

	outcome := f.service.ResetPassword(ctx, f.client, "user@example.com")
	if !outcome.RateLimited {
		t.Fatalf("expected 4th reset to be rate limited, got %+v", outcome)
	}
}

func TestUpdatePasswordEnforcesPolicy(t *testing.T) {
	f := newCredentialFixture(t)

	outcome := f.service.UpdatePassword(context.Background(), "weak")
	if outcome.OK() || f.provider.calls(&f.provider.updateCalls) != 0 {
		t.Fatalf("expected policy rejection before provider, got %+v", outcome)
	}

	if outcome := f.service.UpdatePassword(context.Background(), "Str0ng!Pass"); !outcome.OK() {
		t.Fatalf("expected success, got %+v", outcome)
	}
}

func TestGetUserSwallowsErrors(t *testing.T) {
	f := newCredentialFixture(t)

	f.provider.current = &domain.Session{UserID: "u-1", Email: "user@example.com"}
	if session := f.service.GetUser(context.Background()); session == nil || session.UserID != "u-1" {
		t.Fatalf("expected identity, got %v", session)
	}

	f.provider.currentErr = errors.New("network down")
	if session := f.service.GetUser(context.Background()); session != nil {
		t.Fatalf("expected nil on provider error, got %v", session)
	}
}
