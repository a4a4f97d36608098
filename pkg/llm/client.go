package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Attachment is a file inlined into a user turn
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// Message is one conversation turn sent to a provider
type Message struct {
	Role        string
	Content     string
	Attachments []Attachment
}

// StreamChunk represents a chunk of streaming response
type StreamChunk struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Content interface{} `json:"content,omitempty"`
}

// Stream chunk types
const (
	ChunkStart    = "start"
	ChunkToken    = "token"
	ChunkComplete = "complete"
	ChunkChart    = "chart"
	ChunkError    = "error"
	ChunkDone     = "done"
)

// Client is a text-generation provider
type Client interface {
	// Chat returns the assistant reply to the conversation
	Chat(ctx context.Context, system string, messages []Message) (string, error)
	// StreamChat streams the assistant reply token by token
	StreamChat(ctx context.Context, system string, messages []Message) (<-chan StreamChunk, error)
	// GenerateJSON asks for a reply constrained to JSON
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	// Health checks that the provider is reachable with the configured key
	Health(ctx context.Context) error
}

// Provider names
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config selects and configures a Client
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	ChatModel string
	JSONModel string
}

// New creates the client named by cfg.Provider
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// inlineText renders text attachments into the message body for providers
// that only take plain text
func inlineText(m Message) string {
	if len(m.Attachments) == 0 {
		return m.Content
	}

	var b strings.Builder
	b.WriteString(m.Content)
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, "\n\n[Attached file: %s (%s)]\n%s", a.Name, a.MimeType, a.Data)
	}
	return b.String()
}
