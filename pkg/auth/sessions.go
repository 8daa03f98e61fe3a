package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepSchedule is the cron spec for removing expired sessions.
const SweepSchedule = "@every 1m"

// Session is a server-side authenticated session.
type Session struct {
	ID      string
	User    string
	Expires time.Time
}

// SessionStore keeps authenticated sessions in memory, keyed by id.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	lifetime time.Duration
	now      func() time.Time

	cron   *cron.Cron
	logger *logrus.Logger
}

// NewSessionStore creates an empty store whose sessions last lifetime.
func NewSessionStore(lifetime time.Duration, logger *logrus.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]Session),
		lifetime: lifetime,
		now:      time.Now,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Create starts a new session for user.
func (s *SessionStore) Create(user string) Session {
	sess := Session{
		ID:      uuid.NewString(),
		User:    user,
		Expires: s.now().Add(s.lifetime),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Lookup returns the session with id if it exists and has not expired.
func (s *SessionStore) Lookup(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(sess.Expires) {
		delete(s.sessions, id)
		return Session{}, false
	}
	return sess, true
}

// Revoke removes the session with id.
func (s *SessionStore) Revoke(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.Expires) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Start schedules the periodic sweep.
func (s *SessionStore) Start() error {
	_, err := s.cron.AddFunc(SweepSchedule, func() {
		if n := s.Sweep(); n > 0 {
			s.logger.Debugf("Removed %d expired sessions", n)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the sweeper.
func (s *SessionStore) Stop() {
	<-s.cron.Stop().Done()
}
