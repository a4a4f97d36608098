package pipeline

import (
	"errors"
	"sync"
	"time"
)

// ErrStale is returned by Commit when a newer request already committed
var ErrStale = errors.New("a newer chart request already completed")

// Ticket orders chart requests within one register
type Ticket uint64

// Snapshot is the register content at one point in time
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	Content   *Result   `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Register is a single-slot, replace-only holder for the current figure.
// Results are committed with the ticket of the request that produced them;
// the most recently requested result wins regardless of completion order.
type Register struct {
	mu      sync.Mutex
	issued  uint64
	held    uint64
	content *Result
	updated time.Time
}

// Begin issues a ticket for a new request
func (r *Register) Begin() Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.issued++
	return Ticket(r.issued)
}

// Commit replaces the content unless a request issued after t has already
// committed.
func (r *Register) Commit(t Ticket, content *Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uint64(t) < r.held {
		return ErrStale
	}

	r.held = uint64(t)
	r.content = content
	r.updated = time.Now()
	return nil
}

// Load returns the current content
func (r *Register) Load() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{Seq: r.held, Content: r.content, UpdatedAt: r.updated}
}

// Clear empties the register. Requests issued before the call can no longer
// commit.
func (r *Register) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.held = r.issued + 1
	r.issued = r.held
	r.content = nil
	r.updated = time.Now()
}
