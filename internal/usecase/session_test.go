package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
)

type recordingPublisher struct {
	mu        sync.Mutex
	signedIn  []domain.UserSignedInEvent
	signedOut []domain.UserSignedOutEvent
	resets    []domain.PasswordResetRequestedEvent
}

func (p *recordingPublisher) PublishUserSignedIn(_ context.Context, event domain.UserSignedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedIn = append(p.signedIn, event)
	return nil
}

func (p *recordingPublisher) PublishUserSignedOut(_ context.Context, event domain.UserSignedOutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedOut = append(p.signedOut, event)
	return nil
}

func (p *recordingPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, event)
	return nil
}

func waitForPhase(t *testing.T, store *SessionStore, want domain.AuthState) SessionState {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		state := store.State()
		if state.Phase() == want {
			return state
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for phase %q, stuck at %q", want, state.Phase())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionStoreStartsInitializing(t *testing.T) {
	provider := newStubProvider()
	provider.identityGate = make(chan struct{})

	store := NewSessionStore(provider, zaptest.NewLogger(t))
	t.Cleanup(store.Close)
	store.Start(context.Background())

	if state := store.State(); state.Phase() != domain.AuthStateInitializing {
		t.Fatalf("expected initializing before the provider read resolves, got %q", state.Phase())
	}

	provider.mu.Lock()
	provider.current = &domain.Session{UserID: "u-1", Email: "user@example.com"}
	provider.mu.Unlock()
	close(provider.identityGate)

	state := waitForPhase(t, store, domain.AuthStateAuthenticated)
	if state.Session.UserID != "u-1" {
		t.Fatalf("expected restored identity, got %+v", state.Session)
	}
}

func TestSessionStoreInitialReadErrorResolvesUnauthenticated(t *testing.T) {
	provider := newStubProvider()
	provider.currentErr = errors.New("provider unreachable")

	store := NewSessionStore(provider, zaptest.NewLogger(t))
	t.Cleanup(store.Close)
	store.Start(context.Background())

	state := waitForPhase(t, store, domain.AuthStateUnauthenticated)
	if state.Loading {
		t.Fatal("read error must not leave the store loading")
	}
}

func TestSessionStoreFollowsProviderNotifications(t *testing.T) {
	provider := newStubProvider()
	store := NewSessionStore(provider, zaptest.NewLogger(t))
	t.Cleanup(store.Close)
	store.Start(context.Background())

	waitForPhase(t, store, domain.AuthStateUnauthenticated)

	provider.events <- domain.SessionEvent{
		Type:    domain.SessionEventSignedIn,
		Session: &domain.Session{UserID: "u-2", Email: "other@example.com"},
		At:      time.Now().UTC(),
	}
	state := waitForPhase(t, store, domain.AuthStateAuthenticated)
	if state.Session.UserID != "u-2" {
		t.Fatalf("expected signed-in identity, got %+v", state.Session)
	}

	provider.events <- domain.SessionEvent{Type: domain.SessionEventSignedOut, At: time.Now().UTC()}
	state = waitForPhase(t, store, domain.AuthStateUnauthenticated)
	if state.Session != nil {
		t.Fatalf("expected cleared session, got %+v", state.Session)
	}
}

func TestSessionStoreSubscribeAndUnsubscribe(t *testing.T) {
	provider := newStubProvider()
	store := NewSessionStore(provider, zaptest.NewLogger(t))
	t.Cleanup(store.Close)
	store.Start(context.Background())
	waitForPhase(t, store, domain.AuthStateUnauthenticated)

	updates, unsubscribe := store.Subscribe()

	provider.events <- domain.SessionEvent{
		Type:    domain.SessionEventSignedIn,
		Session: &domain.Session{UserID: "u-3"},
	}

	select {
	case state := <-updates:
		if state.Phase() != domain.AuthStateAuthenticated {
			t.Fatalf("expected authenticated update, got %q", state.Phase())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber update")
	}

	unsubscribe()
	if _, open := <-updates; open {
		t.Fatal("expected channel closed after unsubscribe")
	}
	// A second unsubscribe is a no-op.
	unsubscribe()
}

func TestSessionStorePublishesTransitions(t *testing.T) {
	provider := newStubProvider()
	publisher := &recordingPublisher{}
	store := NewSessionStore(provider, zaptest.NewLogger(t)).WithEventPublisher(publisher)
	t.Cleanup(store.Close)
	store.Start(context.Background())
	waitForPhase(t, store, domain.AuthStateUnauthenticated)

	provider.events <- domain.SessionEvent{
		Type:    domain.SessionEventSignedIn,
		Session: &domain.Session{UserID: "u-4", Email: "user@example.com"},
	}
	waitForPhase(t, store, domain.AuthStateAuthenticated)

	provider.events <- domain.SessionEvent{Type: domain.SessionEventSignedOut}
	waitForPhase(t, store, domain.AuthStateUnauthenticated)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.signedIn) != 1 {
		t.Fatalf("expected one signed-in event, got %d", len(publisher.signedIn))
	}
	if publisher.signedIn[0].Email == "user@example.com" {
		t.Fatal("published event must carry the masked address")
	}
	if len(publisher.signedOut) != 1 || publisher.signedOut[0].Reason != "signed_out" {
		t.Fatalf("expected one signed-out event, got %+v", publisher.signedOut)
	}
}

func TestSessionStoreCloseTearsDown(t *testing.T) {
	provider := newStubProvider()
	store := NewSessionStore(provider, zaptest.NewLogger(t))
	store.Start(context.Background())
	waitForPhase(t, store, domain.AuthStateUnauthenticated)

	updates, _ := store.Subscribe()
	store.Close()

	if _, open := <-updates; open {
		t.Fatal("expected subscriber channel closed on Close")
	}
	// Close is idempotent.
	store.Close()
}
