package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/logger"
)

// SessionState is the observable cell UI surfaces read. Loading is true only
// until the initial provider read resolves.
type SessionState struct {
	Session *domain.Session
	Loading bool
}

// Phase maps the cell onto the three-state machine.
func (s SessionState) Phase() domain.AuthState {
	switch {
	case s.Loading:
		return domain.AuthStateInitializing
	case s.Session != nil:
		return domain.AuthStateAuthenticated
	default:
		return domain.AuthStateUnauthenticated
	}
}

// SessionStore holds the current authenticated identity. The provider's
// change-notification stream is the only writer; consumers read State or
// subscribe for updates and never mutate the session directly, so the UI can
// never diverge from what the provider says is logged in.
//
// Construct explicitly and drive with Start/Close; no process-wide singleton.
type SessionStore struct {
	provider port.IdentityProvider
	events   port.EventPublisher
	logger   *zap.Logger

	mu      sync.RWMutex
	session *domain.Session
	loading bool

	subMu   sync.Mutex
	subs    map[int]chan SessionState
	nextSub int

	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewSessionStore constructs a store in the Initializing state.
func NewSessionStore(provider port.IdentityProvider, log *zap.Logger) *SessionStore {
	if log == nil {
		log = zap.NewNop()
	}

	return &SessionStore{
		provider: provider,
		logger:   log,
		loading:  true,
		subs:     make(map[int]chan SessionState),
		done:     make(chan struct{}),
	}
}

// WithEventPublisher injects the optional auth event publisher; sign-in and
// sign-out transitions are forwarded to the message bus.
func (s *SessionStore) WithEventPublisher(events port.EventPublisher) *SessionStore {
	s.events = events
	return s
}

// Start subscribes to the provider stream and issues the initial identity
// read. The subscription is registered before the read so no notification
// delivered during the read is lost.
func (s *SessionStore) Start(ctx context.Context) {
	changes, unsubscribe := s.provider.SessionChanges()
	s.unsubscribe = unsubscribe

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		initial, err := s.provider.CurrentIdentity(ctx)
		if err != nil {
			// Default to unauthenticated rather than leaving the UI loading forever.
			s.logger.Warn("initial session read failed", zap.Error(err))
			initial = nil
		}
		s.apply(ctx, domain.SessionEvent{
			Type:    domain.SessionEventInitial,
			Session: initial,
			At:      time.Now().UTC(),
		})

		for {
			select {
			case event, ok := <-changes:
				if !ok {
					return
				}
				s.apply(ctx, event)
			case <-s.done:
				return
			}
		}
	}()
}

// State returns the current cell value.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionState{Session: s.session, Loading: s.loading}
}

// Subscribe registers a consumer. The returned func unsubscribes; updates
// after unsubscribe are never delivered. Slow consumers miss intermediate
// states rather than blocking the store.
func (s *SessionStore) Subscribe() (<-chan SessionState, func()) {
	ch := make(chan SessionState, 8)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

// Close tears the store down: the provider subscription is released and no
// further updates are applied or delivered.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
	s.wg.Wait()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// apply is the single write path for the cell; events are handled in the
// order the provider delivered them.
func (s *SessionStore) apply(ctx context.Context, event domain.SessionEvent) {
	s.mu.Lock()
	previous := s.session
	s.session = event.Session
	s.loading = false
	state := SessionState{Session: s.session, Loading: false}
	s.mu.Unlock()

	s.logger.Debug("session state updated",
		zap.String("event", string(event.Type)),
		zap.String("phase", string(state.Phase())),
	)

	s.publishTransition(ctx, event, previous)
	s.fanOut(state)
}

func (s *SessionStore) fanOut(state SessionState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
			// Drop the oldest buffered state to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}

func (s *SessionStore) publishTransition(ctx context.Context, event domain.SessionEvent, previous *domain.Session) {
	if s.events == nil {
		return
	}

	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch event.Type {
	case domain.SessionEventSignedIn:
		if event.Session == nil {
			return
		}
		err := s.events.PublishUserSignedIn(ctx, domain.UserSignedInEvent{
			EventID:  uuid.NewString(),
			UserID:   event.Session.UserID,
			Email:    logger.MaskEmail(event.Session.Email),
			SignedIn: at,
		})
		if err != nil {
			s.logger.Warn("publish signed-in event failed", zap.Error(err))
		}
	case domain.SessionEventSignedOut, domain.SessionEventExpired:
		if previous == nil {
			return
		}
		reason := "signed_out"
		if event.Type == domain.SessionEventExpired {
			reason = "session_expired"
		}
		err := s.events.PublishUserSignedOut(ctx, domain.UserSignedOutEvent{
			EventID:   uuid.NewString(),
			UserID:    previous.UserID,
			Reason:    reason,
			SignedOut: at,
		})
		if err != nil {
			s.logger.Warn("publish signed-out event failed", zap.Error(err))
		}
	}
}
