package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/config"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second

	// refreshLead is how far ahead of access-token expiry the refresh fires.
	refreshLead = 30 * time.Second
	// minRefreshDelay keeps a short-lived token from spinning the refresh loop.
	minRefreshDelay = 5 * time.Second
)

// Client talks to a GoTrue-compatible identity API. It owns the tokens of the
// current session; every session transition it observes is pushed to
// subscribers registered via SessionChanges, making the client the single
// source of session truth for the rest of the process.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	logger  *zap.Logger

	mu      sync.Mutex
	tokens  *tokenSet
	session *domain.Session
	refresh *time.Timer

	subMu   sync.Mutex
	subs    map[int]chan domain.SessionEvent
	nextSub int
	closed  bool
}

type tokenSet struct {
	access  string
	refresh string
	expires time.Time
}

// New validates the provider settings and constructs the client. URL and anon
// key are required here rather than at config load so the service can boot
// far enough to report the misconfiguration.
func New(cfg config.ProviderSettings, log *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("provider: url is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("provider: anon key is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("provider: invalid url: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
		subs:    make(map[int]chan domain.SessionEvent),
	}, nil
}

// CreateAccount registers a new account. When the provider returns tokens
// immediately (email confirmation disabled) the session is adopted and a
// signed-in notification is emitted; otherwise the account stays pending
// until the user confirms.
func (c *Client) CreateAccount(ctx context.Context, email, password string, metadata map[string]string) error {
	payload := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", payload, false, &resp); err != nil {
		return err
	}

	if resp.AccessToken != "" {
		c.adoptSession(&resp, domain.SessionEventSignedIn)
	}

	c.logger.Info("account registered with provider",
		zap.String("email", logger.MaskEmail(email)),
		zap.Bool("session_issued", resp.AccessToken != ""),
	)
	return nil
}

// Authenticate performs a password grant and adopts the issued session.
func (c *Client) Authenticate(ctx context.Context, email, password string) error {
	payload := map[string]any{"email": email, "password": password}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", payload, false, &resp); err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return &port.ProviderError{Status: http.StatusBadGateway, Message: "provider returned no access token"}
	}

	c.adoptSession(&resp, domain.SessionEventSignedIn)
	return nil
}

// InvalidateSession revokes the current session server-side and drops the
// local one. The local session is dropped even when revocation fails with a
// provider error: the tokens may already be dead, and keeping them would
// strand the user signed in.
func (c *Client) InvalidateSession(ctx context.Context) error {
	access := c.accessToken()
	if access == "" {
		// Nothing to revoke; still notify so observers converge.
		c.dropSession(domain.SessionEventSignedOut)
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, true, nil)

	var provErr *port.ProviderError
	if err == nil || errors.As(err, &provErr) {
		c.dropSession(domain.SessionEventSignedOut)
	}
	return err
}

// CurrentIdentity reads the signed-in identity from the provider using the
// held access token. Returns (nil, nil) when no session is held.
func (c *Client) CurrentIdentity(ctx context.Context) (*domain.Session, error) {
	if c.accessToken() == "" {
		return nil, nil
	}

	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, true, &resp); err != nil {
		var provErr *port.ProviderError
		if errors.As(err, &provErr) && provErr.Status == http.StatusUnauthorized {
			// Token no longer valid; converge to unauthenticated.
			c.dropSession(domain.SessionEventExpired)
			return nil, nil
		}
		return nil, err
	}

	session := resp.toSession()

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	return session, nil
}

// SendPasswordReset dispatches a reset email.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", map[string]any{"email": email}, false, nil)
}

// UpdatePassword replaces the signed-in account's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	if c.accessToken() == "" {
		return &port.ProviderError{Status: http.StatusUnauthorized, Message: "no active session"}
	}
	return c.do(ctx, http.MethodPut, "/auth/v1/user", map[string]any{"password": newPassword}, true, nil)
}

// SessionChanges registers a subscriber for session notifications. The
// returned func unsubscribes; it is safe to call more than once.
func (c *Client) SessionChanges() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if existing, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(existing)
		}
	}
}

// Close stops the refresh timer and closes all subscriber channels.
func (c *Client) Close() {
	c.mu.Lock()
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	c.mu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// adoptSession installs the tokens and identity from a provider grant and
// schedules the refresh ahead of expiry.
func (c *Client) adoptSession(resp *sessionResponse, eventType domain.SessionEventType) {
	session := resp.User.toSession()
	expires := resp.expiry()

	c.mu.Lock()
	c.tokens = &tokenSet{access: resp.AccessToken, refresh: resp.RefreshToken, expires: expires}
	c.session = session
	c.scheduleRefreshLocked(expires)
	c.mu.Unlock()

	c.emit(domain.SessionEvent{Type: eventType, Session: session, At: time.Now().UTC()})
}

// dropSession clears tokens and identity and notifies subscribers.
func (c *Client) dropSession(eventType domain.SessionEventType) {
	c.mu.Lock()
	c.tokens = nil
	c.session = nil
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	c.mu.Unlock()

	c.emit(domain.SessionEvent{Type: eventType, Session: nil, At: time.Now().UTC()})
}

func (c *Client) scheduleRefreshLocked(expires time.Time) {
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	if expires.IsZero() {
		return
	}

	delay := time.Until(expires) - refreshLead
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}
	c.refresh = time.AfterFunc(delay, c.refreshSession)
}

// refreshSession exchanges the refresh token for a new grant. Failure means
// the session cannot be kept alive, so it is dropped as expired.
func (c *Client) refreshSession() {
	c.mu.Lock()
	if c.tokens == nil || c.tokens.refresh == "" {
		c.mu.Unlock()
		return
	}
	refreshToken := c.tokens.refresh
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
	defer cancel()

	payload := map[string]any{"refresh_token": refreshToken}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", payload, false, &resp); err != nil {
		c.logger.Warn("session refresh failed", zap.Error(err))
		c.dropSession(domain.SessionEventExpired)
		return
	}
	if resp.AccessToken == "" {
		c.logger.Warn("session refresh returned no access token")
		c.dropSession(domain.SessionEventExpired)
		return
	}

	c.adoptSession(&resp, domain.SessionEventTokenRefreshed)
	c.logger.Debug("session refreshed")
}

func (c *Client) emit(event domain.SessionEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed {
		return
	}

	for _, ch := range c.subs {
		select {
		case ch <- event:
		default:
			// Drop the oldest notification for a slow subscriber.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.access
}

// do issues a JSON request against the provider. Non-2xx responses become
// *port.ProviderError; transport failures are returned wrapped as-is.
func (c *Client) do(ctx context.Context, method, path string, payload any, authenticated bool, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		access := c.accessToken()
		if access == "" {
			return &port.ProviderError{Status: http.StatusUnauthorized, Message: "no active session"}
		}
		req.Header.Set("Authorization", "Bearer "+access)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &port.ProviderError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}

// errorMessage digs the human-readable message out of a GoTrue error body.
// The field name varies across endpoints and versions.
func errorMessage(raw []byte) string {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorField       string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}

	for _, candidate := range []string{body.Msg, body.Message, body.ErrorDescription, body.ErrorField} {
		if candidate != "" {
			return candidate
		}
	}
	return strings.TrimSpace(string(raw))
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         userResponse `json:"user"`
}

// expiry derives when the access token dies, preferring expires_in and
// falling back to the token's own exp claim.
func (r *sessionResponse) expiry() time.Time {
	if r.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(r.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Time{}
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userResponse) toSession() *domain.Session {
	if u.ID == "" {
		return nil
	}

	session := &domain.Session{UserID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["name"].(string); ok {
		session.DisplayName = name
	}
	return session
}
