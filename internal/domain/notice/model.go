package notice

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a success notice stays visible before auto-expiring.
// Matches the portal snackbar's auto-hide duration.
const DefaultTTL = 3 * time.Second

// Notice is a transient UI message created on a successful status change.
type Notice struct {
	ID          string
	StudentName string
	Status      string
	CreatedAt   time.Time
	TTL         time.Duration
}

// Message returns the display text for the notice.
func (n Notice) Message() string {
	if n.Status == "unchecked" {
		return fmt.Sprintf("%s unmarked", n.StudentName)
	}
	return fmt.Sprintf("%s marked as %s", n.StudentName, n.Status)
}

// Expired reports whether the notice's display window has passed.
// PRE: CreatedAt and TTL are set
// POST: Returns true once now >= CreatedAt + TTL
func (n Notice) Expired(now time.Time) bool {
	return !now.Before(n.CreatedAt.Add(n.TTL))
}

// Board holds the currently displayable notices, pruning expired ones on read.
type Board struct {
	mu      sync.Mutex
	ttl     time.Duration
	notices []Notice
}

// NewBoard creates a notice board. ttl <= 0 falls back to DefaultTTL.
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{ttl: ttl}
}

// Publish adds a notice for a fresh status change.
// PRE: id and studentName are non-empty
// POST: Notice is visible until its TTL elapses
func (b *Board) Publish(id, studentName, status string, now time.Time) Notice {
	n := Notice{ID: id, StudentName: studentName, Status: status, CreatedAt: now, TTL: b.ttl}
	b.mu.Lock()
	b.notices = append(b.notices, n)
	b.mu.Unlock()
	return n
}

// Active returns the notices still within their display window and drops the
// rest.
func (b *Board) Active(now time.Time) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.notices[:0]
	for _, n := range b.notices {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	b.notices = kept
	out := make([]Notice, len(kept))
	copy(out, kept)
	return out
}
