package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/sabio/datlas-chat-plugin/pkg/llm"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// DefaultInlineBytes caps the size of a file inlined into a chat turn
const DefaultInlineBytes = 256 * 1024

// Options configures a Manager
type Options struct {
	SystemPrompt string
	Limits       Limits
	// InlineBytes is the largest attachment sent with a turn (0 = default, <0 = never)
	InlineBytes int
}

// Manager handles chat sessions and LLM interaction
type Manager struct {
	client      llm.Client
	prompt      string
	limits      Limits
	inlineBytes int

	mu       sync.RWMutex
	sessions map[string]*History
}

// NewManager creates a new chat manager
func NewManager(client llm.Client, opts Options) *Manager {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = ChatSystemPrompt
	}
	if opts.InlineBytes == 0 {
		opts.InlineBytes = DefaultInlineBytes
	}

	return &Manager{
		client:      client,
		prompt:      opts.SystemPrompt,
		limits:      opts.Limits,
		inlineBytes: opts.InlineBytes,
		sessions:    make(map[string]*History),
	}
}

// RunChat asks the model to answer text in the context of the session
// history. The exchange is recorded only when the model answers, so a failed
// turn can be retried without leaving a dangling user message.
func (m *Manager) RunChat(ctx context.Context, sessionID, text string, files []table.UploadedFile) (string, error) {
	history := m.history(sessionID)

	reply, err := m.client.Chat(ctx, m.prompt, m.messages(history, text, files))
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}

	reply = ReplyText(reply)
	history.AppendExchange(text, reply)
	return reply, nil
}

// RunChatStream streams the model reply to text. Nothing is recorded; the
// caller stores a completed reply with CommitTurn.
func (m *Manager) RunChatStream(ctx context.Context, sessionID, text string, files []table.UploadedFile) (<-chan llm.StreamChunk, error) {
	return m.client.StreamChat(ctx, m.prompt, m.messages(m.history(sessionID), text, files))
}

// CommitTurn records a completed user turn and the model reply
func (m *Manager) CommitTurn(sessionID, text, reply string) {
	m.history(sessionID).AppendExchange(text, ReplyText(reply))
}

// ClearSession drops the conversation history of a session
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
}

// Stats returns history usage for a session. Unknown sessions report no
// turns.
func (m *Manager) Stats(sessionID string) Stats {
	m.mu.RLock()
	h, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return NewHistory(m.limits).Stats()
	}
	return h.Stats()
}

func (m *Manager) history(sessionID string) *History {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.sessions[sessionID]; ok {
		return h
	}

	h := NewHistory(m.limits)
	m.sessions[sessionID] = h
	return h
}

// messages converts stored turns and appends the new user turn with its files
func (m *Manager) messages(h *History, text string, files []table.UploadedFile) []llm.Message {
	turns := h.Turns()
	out := make([]llm.Message, len(turns), len(turns)+1)
	for i, t := range turns {
		out[i] = llm.Message{Role: t.Role, Content: t.Content}
	}

	return append(out, llm.Message{
		Role:        llm.RoleUser,
		Content:     text,
		Attachments: Attachments(files, m.inlineBytes),
	})
}

// Attachments selects the ready files small enough to inline
func Attachments(files []table.UploadedFile, limit int) []llm.Attachment {
	if limit < 0 {
		return nil
	}

	var out []llm.Attachment
	for _, f := range files {
		if f.Status != table.StatusReady || f.RawContent == "" || len(f.RawContent) > limit {
			continue
		}
		out = append(out, llm.Attachment{
			Name:     f.Name,
			MimeType: table.CSVMimeType,
			Data:     []byte(f.RawContent),
		})
	}
	return out
}

var envelopeFence = regexp.MustCompile("(?s)```json\\s*(.+?)\\s*```")

// ReplyText returns the text to show for a model reply. A reply carrying a
// {"description": ...} plot envelope is reduced to its description.
func ReplyText(reply string) string {
	var raw string
	if m := envelopeFence.FindStringSubmatch(reply); m != nil {
		raw = m[1]
	} else if t := strings.TrimSpace(reply); strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
		raw = t
	}
	if raw == "" {
		return reply
	}

	var env struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Description == "" {
		return reply
	}
	return env.Description
}
