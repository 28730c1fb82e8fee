package service

import (
	"sync"
	"time"

	"github.com/cass-tech/storefront/internal/log"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// Store keeps live sessions in memory and expires idle ones in the background.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	sweep    time.Duration

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewStore(idleTTL, sweepInterval time.Duration) *Store {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	s := &Store{
		sessions:    make(map[string]*Session),
		idleTTL:     idleTTL,
		sweep:       sweepInterval,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.expireSessions(now)
		case <-s.stopCleanup:
			return
		}
	}
}

// expireSessions drops sessions idle for longer than the TTL. Sessions with a
// completion in flight are kept.
func (s *Store) expireSessions(now time.Time) int {
	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		since := sess.idleSince()
		if since.IsZero() || now.Sub(since) < s.idleTTL {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, sess)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		log.L(sess.ctx()).Debug("expiring idle checkout session")
		sess.Close()
	}
	return len(expired)
}

// GetOrCreate returns the session for id, building it with create when absent.
func (s *Store) GetOrCreate(id string, create func() *Session) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// touched under the lock so the sweeper cannot pick a session being handed out
	if sess, ok := s.sessions[id]; ok {
		sess.touch()
		return sess, false
	}
	sess := create()
	sess.touch()
	s.sessions[id] = sess
	return sess, true
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove drops sess if it is still the one stored under its id.
func (s *Store) Remove(sess *Session) {
	s.mu.Lock()
	if cur, ok := s.sessions[sess.id]; ok && cur == sess {
		delete(s.sessions, sess.id)
	}
	s.mu.Unlock()
	sess.Close()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the sweeper and closes every session.
func (s *Store) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	return nil
}
