package plugin

import (
	"github.com/sabio/datlas-chat-plugin/pkg/agent"
	"github.com/sabio/datlas-chat-plugin/pkg/pipeline"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Sender of a chat log entry
const (
	SenderUser   = "user"
	SenderBot    = "bot"
	SenderSystem = "system"
)

// ChatRequest represents an incoming chat request
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	// Chart forces (true) or suppresses (false) the chart pipeline. When
	// unset, the pipeline runs for messages that ask for a plot.
	Chart *bool `json:"chart,omitempty"`
}

// Message is an entry to append to the chat log
type Message struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// ChatResponse represents a chat response
type ChatResponse struct {
	Response  string           `json:"response"`
	SessionID string           `json:"session_id"`
	Messages  []Message        `json:"messages"`
	Content   *pipeline.Result `json:"content,omitempty"`
}

// ChartRequest runs the chart pipeline without a chat turn
type ChartRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	// CSV overrides the session dataset
	CSV string `json:"csv,omitempty"`
}

// ChartResponse carries the pipeline result or the user-facing error
type ChartResponse struct {
	SessionID string           `json:"session_id"`
	Content   *pipeline.Result `json:"content,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// SessionResponse describes the state kept for a session
type SessionResponse struct {
	SessionID    string            `json:"session_id"`
	History      agent.Stats       `json:"history"`
	PendingFiles int               `json:"pending_files"`
	HasDataset   bool              `json:"has_dataset"`
	Figure       pipeline.Snapshot `json:"figure"`
}

// UploadFile is one base64 encoded file in an upload request
type UploadFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// UploadRequest attaches files, inline or by URL, to a session
type UploadRequest struct {
	SessionID string       `json:"session_id"`
	Files     []UploadFile `json:"files"`
	URL       string       `json:"url,omitempty"`
}

// FileSummary is an uploaded file without its content
type FileSummary struct {
	Name         string           `json:"name"`
	Size         int              `json:"size"`
	Type         string           `json:"type"`
	Status       table.FileStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// UploadResponse lists per-file outcomes
type UploadResponse struct {
	SessionID string        `json:"session_id"`
	Files     []FileSummary `json:"files"`
}

func summarize(f table.UploadedFile) FileSummary {
	return FileSummary{
		Name:         f.Name,
		Size:         f.Size,
		Type:         f.Type,
		Status:       f.Status,
		ErrorMessage: f.ErrorMessage,
	}
}
