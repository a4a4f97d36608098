package plugin

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sabio/datlas-chat-plugin/pkg/pipeline"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Session store limits
const (
	DefaultSessionIdle = time.Hour
	DefaultMaxSessions = 1000
)

// Session is the per-conversation state: files attached since the last
// turn, the dataset charts are drawn from, and the current figure.
type Session struct {
	ID     string
	Figure pipeline.Register

	mu       sync.Mutex
	attached []table.UploadedFile
	consumed uint64 // files ever drained from attached
	dataset  string
	lastUsed time.Time
}

// Batch is a snapshot of the files queued for one turn
type Batch struct {
	Files   []table.UploadedFile
	Dataset string
	upTo    uint64
}

// Attach queues files for the next turn
func (s *Session) Attach(files ...table.UploadedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attached = append(s.attached, files...)
}

// Pending returns the queued files and the dataset they select without
// draining the queue. A turn calls Consume once it has used them.
func (s *Session) Pending() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Batch{
		Files:   append([]table.UploadedFile(nil), s.attached...),
		Dataset: s.datasetLocked(),
		upTo:    s.consumed + uint64(len(s.attached)),
	}
}

// Consume drains the files of b that are still queued. The first ready one
// becomes the session dataset; without one the previous dataset is kept.
// Files attached after b was taken stay queued.
func (s *Session) Consume(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.upTo <= s.consumed {
		return
	}
	n := int(b.upTo - s.consumed)
	if n > len(s.attached) {
		n = len(s.attached)
	}

	for _, f := range s.attached[:n] {
		if f.Status == table.StatusReady {
			s.dataset = f.RawContent
			break
		}
	}
	s.attached = append([]table.UploadedFile(nil), s.attached[n:]...)
	s.consumed += uint64(n)
}

// Dataset returns the CSV text charts are drawn from
func (s *Session) Dataset() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.datasetLocked()
}

// must hold s.mu
func (s *Session) datasetLocked() string {
	for _, f := range s.attached {
		if f.Status == table.StatusReady {
			return f.RawContent
		}
	}
	return s.dataset
}

// PendingCount reports how many files wait for the next turn
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.attached)
}

// sessionStore holds the sessions of one instance. Sessions idle for longer
// than idle are dropped, and past max the least recently used one goes.
type sessionStore struct {
	idle    time.Duration
	max     int
	now     func() time.Time
	onEvict func(id string)

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

func newSessionStore(onEvict func(id string)) *sessionStore {
	return &sessionStore{
		idle:     DefaultSessionIdle,
		max:      DefaultMaxSessions,
		now:      time.Now,
		onEvict:  onEvict,
		sessions: make(map[string]*Session),
	}
}

// get returns the session for id, creating it if needed. An empty id gets a
// fresh session with a generated id.
func (st *sessionStore) get(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	st.mu.Lock()
	now := st.now()
	evicted := st.sweep(now)

	s, ok := st.sessions[id]
	if !ok {
		s = &Session{ID: id, lastUsed: now}
		st.sessions[id] = s
		evicted = append(evicted, st.trim(id)...)
	}
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
	st.mu.Unlock()

	st.evicted(evicted)
	return s
}

// remove drops a session and reports whether it existed
func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		st.evicted([]string{id})
	}
	return ok
}

func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}

func (st *sessionStore) evicted(ids []string) {
	if st.onEvict == nil {
		return
	}
	for _, id := range ids {
		st.onEvict(id)
	}
}

// sweep drops idle sessions, at most once per tenth of the idle period.
// must hold st.mu
func (st *sessionStore) sweep(now time.Time) []string {
	if st.idle <= 0 || now.Sub(st.lastSweep) < st.idle/10 {
		return nil
	}
	st.lastSweep = now

	var ids []string
	for id, s := range st.sessions {
		s.mu.Lock()
		stale := now.Sub(s.lastUsed) > st.idle
		s.mu.Unlock()

		if stale {
			delete(st.sessions, id)
			ids = append(ids, id)
		}
	}
	return ids
}

// trim drops the least recently used sessions other than keep past max.
// must hold st.mu
func (st *sessionStore) trim(keep string) []string {
	over := len(st.sessions) - st.max
	if st.max <= 0 || over <= 0 {
		return nil
	}

	type entry struct {
		id   string
		used time.Time
	}
	entries := make([]entry, 0, len(st.sessions))
	for id, s := range st.sessions {
		if id == keep {
			continue
		}
		s.mu.Lock()
		entries = append(entries, entry{id, s.lastUsed})
		s.mu.Unlock()
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].used.Before(entries[b].used) })

	ids := make([]string, 0, over)
	for _, e := range entries[:over] {
		delete(st.sessions, e.id)
		ids = append(ids, e.id)
	}
	return ids
}
