package xaytheon

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultExpirySkew is the safety margin subtracted from a credential's
// advertised lifetime, forcing renewal before actual server-side expiry.
const DefaultExpirySkew = 60 * time.Second

// Store holds the in-memory access credential, its expiry instant, the
// last restoration/refresh failure, and the observer list for "auth
// changed" notifications. It owns the refresh timer: setting a credential
// (re)arms it, clearing disarms it.
//
// Invariant: the access token is present iff the expiry is present; both
// are mutated under one lock acquisition.
type Store struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	skew    time.Duration
	storage TokenStorage
	logger  zerolog.Logger
	sched   *refreshScheduler
	onFire  func()

	cred    *Credential
	lastErr error
	subs    map[int]func(*User)
	nextSub int
}

func newStore(clock clockwork.Clock, skew time.Duration, storage TokenStorage, logger zerolog.Logger) *Store {
	if skew <= 0 {
		skew = DefaultExpirySkew
	}
	return &Store{
		clock:   clock,
		skew:    skew,
		storage: storage,
		logger:  logger,
		sched:   newRefreshScheduler(clock),
		subs:    make(map[int]func(*User)),
	}
}

// setRefreshFunc wires the callback the armed timer fires. Set once, at
// Session construction, before any credential exists.
func (s *Store) setRefreshFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFire = fn
}

// Set atomically installs the access token with expiry now+lifetime-skew,
// clears any prior failure, re-arms the refresh timer, and notifies
// observers. A nil user retains the previously known user (refresh
// responses may omit the profile).
func (s *Store) Set(token string, lifetime time.Duration, user *User) {
	s.mu.Lock()
	if user == nil && s.cred != nil {
		user = s.cred.User
	}
	expiresAt := s.clock.Now().Add(lifetime - s.skew)
	s.cred = &Credential{AccessToken: token, ExpiresAt: expiresAt, User: user}
	s.lastErr = nil
	onFire := s.onFire
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	s.sched.Arm(expiresAt, onFire)
	s.logger.Debug().Time("expires_at", expiresAt).Msg("credential set")
	notify(subs, user)
}

// Clear atomically drops the credential and user, disarms any pending
// refresh timer, removes the persisted refresh token, and notifies
// observers with a nil user. Idempotent. The last failure is retained for
// display until the next successful Set.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cred = nil
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	s.sched.Disarm()
	if s.storage != nil {
		if err := s.storage.Clear(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to clear persisted refresh token")
		}
	}
	s.logger.Debug().Msg("credential cleared")
	notify(subs, nil)
}

// IsExpiringSoon is the single source of truth consulted before every
// authenticated call: true when no expiry is set or now has reached it.
func (s *Store) IsExpiringSoon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred == nil || s.cred.ExpiringSoon(s.clock.Now())
}

// IsAuthenticated returns true iff an access token is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred != nil && s.cred.AccessToken != ""
}

// Current returns a copy of the credential, or nil when signed out.
func (s *Store) Current() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	cred := *s.cred
	return &cred
}

// CurrentUser returns the last known user, or nil when signed out.
func (s *Store) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	return s.cred.User
}

// LastError returns the most recent restoration/refresh failure, retained
// until the next successful Set.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// OnChange subscribes fn to "auth changed" notifications. fn is called
// synchronously after each credential mutation with the current user (nil
// when signed out). The returned func cancels the subscription.
func (s *Store) OnChange(fn func(*User)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshotSubsLocked copies the observer list so notifications run outside
// the lock; callbacks may read the store.
func (s *Store) snapshotSubsLocked() []func(*User) {
	subs := make([]func(*User), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(*User), user *User) {
	for _, fn := range subs {
		fn(user)
	}
}
