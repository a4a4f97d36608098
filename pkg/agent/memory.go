package agent

import (
	"sync"
	"time"

	"github.com/sabio/datlas-chat-plugin/pkg/llm"
)

// Default history limits
const (
	DefaultMaxTurns = 100
	DefaultMaxChars = 100000 // ~25k tokens
)

// Turn is one stored message of a conversation
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Limits bound a History. Zero means the default, negative means unlimited.
type Limits struct {
	MaxTurns int
	MaxChars int
}

func (l Limits) withDefaults() Limits {
	if l.MaxTurns == 0 {
		l.MaxTurns = DefaultMaxTurns
	}
	if l.MaxChars == 0 {
		l.MaxChars = DefaultMaxChars
	}
	return l
}

// History is the bounded conversation log of one session. Oldest turns are
// evicted first; the newest turn is always kept.
type History struct {
	mu     sync.RWMutex
	turns  []Turn
	chars  int
	limits Limits
}

// NewHistory creates an empty history
func NewHistory(limits Limits) *History {
	return &History{limits: limits.withDefaults()}
}

// Append records a turn and evicts old ones past the limits
func (h *History) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{Role: role, Content: content, At: time.Now()})
	h.chars += len(content)
	h.evict()
}

// AppendExchange records a user turn and its reply together
func (h *History) AppendExchange(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.turns = append(h.turns,
		Turn{Role: llm.RoleUser, Content: user, At: now},
		Turn{Role: llm.RoleAssistant, Content: assistant, At: now},
	)
	h.chars += len(user) + len(assistant)
	h.evict()
}

// must hold h.mu
func (h *History) evict() {
	over := func() bool {
		if len(h.turns) <= 1 {
			return false
		}
		if h.limits.MaxTurns > 0 && len(h.turns) > h.limits.MaxTurns {
			return true
		}
		return h.limits.MaxChars > 0 && h.chars > h.limits.MaxChars
	}

	drop := 0
	for over() {
		h.chars -= len(h.turns[0].Content)
		h.turns = h.turns[1:]
		drop++
	}
	if drop > 0 {
		// release the evicted prefix
		h.turns = append([]Turn(nil), h.turns...)
	}
}

// Turns returns a copy of the stored turns, oldest first
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Stats describes history usage
type Stats struct {
	Turns    int `json:"turns"`
	Chars    int `json:"chars"`
	MaxTurns int `json:"max_turns"`
	MaxChars int `json:"max_chars"`
}

// Stats returns the current usage
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{
		Turns:    len(h.turns),
		Chars:    h.chars,
		MaxTurns: h.limits.MaxTurns,
		MaxChars: h.limits.MaxChars,
	}
}
