package rosterview

import (
	"sync"
	"time"

	"courtside/internal/domain/class"
	"courtside/internal/domain/roster"
)

// View is the single client-side source of truth for the active class's
// roster. It changes through exactly two paths: wholesale replacement from a
// refetch, or application of one server-confirmed mutation. A refetch landing
// after a mutation simply overwrites it — the server is authoritative.
type View struct {
	mu       sync.RWMutex
	class    class.Context
	entries  []roster.Entry
	inflight map[string]struct{}
}

// Mutation is one server-confirmed status change to merge into the view.
type Mutation struct {
	StudentID      string
	Name           string // used when the student is not in the roster yet
	Email          string
	Status         roster.Status
	CheckedInAt    time.Time
	AlreadyPresent bool
}

// New creates an empty view.
func New() *View {
	return &View{inflight: make(map[string]struct{})}
}

// Replace swaps in a fresh roster for the given class, wholesale.
// POST: Entries are sorted; any previous state for another class is gone
func (v *View) Replace(cls class.Context, entries []roster.Entry) {
	sorted := append([]roster.Entry(nil), entries...)
	roster.Sort(sorted)

	v.mu.Lock()
	v.class = cls
	v.entries = sorted
	v.mu.Unlock()
}

// Class returns the context the current roster belongs to.
func (v *View) Class() class.Context {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.class
}

// Apply merges one confirmed mutation, keeping the sort order invariant.
// Responses issued under a different class context are stale and refused.
// PRE: m came from a successful backend acknowledgment
// POST: Returns false when the mutation was discarded as stale
func (v *View) Apply(issued class.Context, m Mutation) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !issued.Same(v.class) {
		return false
	}

	idx := -1
	for i := range v.entries {
		if v.entries[i].StudentID == m.StudentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		if m.StudentID == "" {
			return false
		}
		v.entries = append(v.entries, roster.Entry{
			StudentID: m.StudentID,
			Name:      m.Name,
			Email:     m.Email,
			Status:    roster.StatusUnchecked,
		})
		idx = len(v.entries) - 1
	}

	entry := &v.entries[idx]
	switch {
	case m.AlreadyPresent:
		// The backend had them marked before this scan: flag the repeat,
		// never regress the status or original check-in time.
		entry.AlreadyPresent = true
		if entry.Status == roster.StatusUnchecked {
			entry.Status = roster.StatusPresent
		}
		if entry.CheckedInAt.IsZero() {
			entry.CheckedInAt = m.CheckedInAt
		}
	case m.Status == roster.StatusUnchecked:
		entry.Status = roster.StatusUnchecked
		entry.CheckedInAt = time.Time{}
		entry.AlreadyPresent = false
	default:
		entry.Status = m.Status
		entry.CheckedInAt = m.CheckedInAt
		entry.AlreadyPresent = false
	}

	roster.Sort(v.entries)
	return true
}

// Begin reserves a student for one in-flight mutation. A second mutation for
// the same student is refused until End is called, so rapid double clicks
// cannot race each other.
// POST: Returns false when a mutation for the student is already in flight
func (v *View) Begin(studentID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, busy := v.inflight[studentID]; busy {
		return false
	}
	v.inflight[studentID] = struct{}{}
	return true
}

// End releases the in-flight reservation for a student.
func (v *View) End(studentID string) {
	v.mu.Lock()
	delete(v.inflight, studentID)
	v.mu.Unlock()
}

// Snapshot returns a sorted copy of all entries.
func (v *View) Snapshot() []roster.Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]roster.Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Get returns the entry for a student.
func (v *View) Get(studentID string) (roster.Entry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, e := range v.entries {
		if e.StudentID == studentID {
			return e, true
		}
	}
	return roster.Entry{}, false
}
