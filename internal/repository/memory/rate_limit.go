package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
)

// RateLimitStore keeps sliding-window attempt records in process memory.
// Each record is pruned lazily on access; a background sweeper additionally
// evicts keys whose attempts have all expired so long-running processes do
// not accumulate records for clients that never return.
type RateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	maxAge   time.Duration

	done    chan struct{}
	stopped sync.Once
}

// NewRateLimitStore constructs a store. maxAge bounds how long any attempt is
// retained regardless of the window queried and must cover the largest
// configured window.
func NewRateLimitStore(maxAge time.Duration) *RateLimitStore {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &RateLimitStore{
		attempts: make(map[string][]time.Time),
		maxAge:   maxAge,
		done:     make(chan struct{}),
	}
}

// StartSweeper launches periodic eviction of fully-expired keys. Stop halts it.
func (s *RateLimitStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				s.sweep(now)
			case <-s.done:
				return
			}
		}
	}()
}

// Stop terminates the sweeper goroutine.
func (s *RateLimitStore) Stop() {
	s.stopped.Do(func() {
		close(s.done)
	})
}

// RecordAttempt appends the timestamp to the identifier's record.
func (s *RateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

// TrimWindow removes attempts older than the window relative to reference time.
func (s *RateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.trimLocked(identifier, reference.Add(-window))
	return nil
}

// CountAttempts returns how many attempts fall inside the window ending at reference time.
func (s *RateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	count := 0
	for _, at := range s.attempts[identifier] {
		if at.After(threshold) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

// OldestAttempt returns the oldest attempt remaining inside the active window.
func (s *RateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range s.attempts[identifier] {
		if !at.After(threshold) || at.After(reference) {
			continue
		}
		if !found || at.Before(oldest) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

// ClearAttempts drops the record for the identifier entirely.
func (s *RateLimitStore) ClearAttempts(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, identifier)
	return nil
}

// Len reports the number of tracked identifiers, for tests and metrics.
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

func (s *RateLimitStore) trimLocked(identifier string, threshold time.Time) {
	record := s.attempts[identifier]
	if len(record) == 0 {
		return
	}

	kept := record[:0]
	for _, at := range record {
		if at.After(threshold) {
			kept = append(kept, at)
		}
	}

	if len(kept) == 0 {
		delete(s.attempts, identifier)
		return
	}
	s.attempts[identifier] = kept
}

func (s *RateLimitStore) sweep(now time.Time) {
	threshold := now.Add(-s.maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	for identifier := range s.attempts {
		s.trimLocked(identifier, threshold)
	}
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
