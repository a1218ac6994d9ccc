package scan

import (
	"errors"
	"sync"
	"time"
)

// DefaultCooldown is how long the gate stays busy after accepting a payload,
// independent of how long the network round-trip takes.
const DefaultCooldown = time.Second

// Session is the ephemeral state for one camera-active period: the cooldown
// window and the set of payload tokens already acted upon. A Session is
// created when scanning starts and closed when scanning stops or the active
// class changes; tokens never survive between sessions.
//
// The busy window and the seen-token set are orthogonal gates: the window
// throttles submission rate across all payloads, the set suppresses repeats
// of one payload for the life of the session. Both must pass for a payload
// to be accepted.
type Session struct {
	ID       string
	ClassID  string
	Cooldown time.Duration

	mu        sync.Mutex
	busyUntil time.Time
	seen      map[string]string // token -> student ID once bound, "" until then
	closed    bool
}

// NewSession creates a scan session for the given class.
// PRE: id is non-empty; cooldown <= 0 falls back to DefaultCooldown
// POST: Returns an open session with an empty seen set
func NewSession(id, classID string, cooldown time.Duration) *Session {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Session{
		ID:       id,
		ClassID:  classID,
		Cooldown: cooldown,
		seen:     make(map[string]string),
	}
}

// Validate checks if the Session has valid data.
// POST: Returns error if validation fails, nil otherwise
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("scan session must have an ID")
	}
	if s.ClassID == "" {
		return errors.New("scan session must be tied to a class")
	}
	return nil
}

// Accept decides whether a decoded payload may be processed, and reserves it
// if so. A payload is refused while the busy window from a prior accept is
// still open, or when its token was already acted upon this session.
// PRE: token is the raw decoded payload; now is the decode time
// POST: On true, the busy window is restarted and token is reserved
func (s *Session) Accept(token string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token == "" {
		return false
	}
	if now.Before(s.busyUntil) {
		return false
	}
	if _, dup := s.seen[token]; dup {
		return false
	}
	s.busyUntil = now.Add(s.Cooldown)
	s.seen[token] = ""
	return true
}

// Busy reports whether the cooldown window from the last accept is still open.
func (s *Session) Busy(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.busyUntil)
}

// Bind associates an accepted token with the student the backend resolved it
// to, so an unmark for that student can release the token.
// PRE: token was previously accepted
func (s *Session) Bind(token, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[token]; ok {
		s.seen[token] = studentID
	}
}

// Forget releases a token so a subsequent re-scan is honored. The busy window
// is left alone: a transient failure still burns the cooldown.
func (s *Session) Forget(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, token)
}

// ForgetStudent releases every token bound to the given student. Used when a
// student is unmarked so their code scans again.
// POST: No token bound to studentID remains in the seen set
func (s *Session) ForgetStudent(studentID string) {
	if studentID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, bound := range s.seen {
		if bound == studentID {
			delete(s.seen, token)
		}
	}
}

// Reset clears the seen set and the busy window. Used when the active class
// changes underneath a live session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]string)
	s.busyUntil = time.Time{}
}

// Close marks the session dead. Decodes and responses arriving after Close
// are discarded. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
