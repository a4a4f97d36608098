package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient talks to the Gemini API
type GeminiClient struct {
	client    *genai.Client
	chatModel string
	jsonModel string
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultGeminiModel
	}
	jsonModel := cfg.JSONModel
	if jsonModel == "" {
		jsonModel = chatModel
	}

	return &GeminiClient{client: client, chatModel: chatModel, jsonModel: jsonModel}, nil
}

// contents converts the conversation. Attachments become inline data parts.
func contents(history []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}

		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		for _, a := range m.Attachments {
			parts = append(parts, genai.NewPartFromBytes(a.Data, a.MimeType))
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out
}

func chatConfig(system string) *genai.GenerateContentConfig {
	if system == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
}

// Chat returns the model reply to the conversation
func (c *GeminiClient) Chat(ctx context.Context, system string, history []Message) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, contents(history), chatConfig(system))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return resp.Text(), nil
}

// GenerateJSON requests an application/json response
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.jsonModel, genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return resp.Text(), nil
}

// StreamChat streams the model reply
func (c *GeminiClient) StreamChat(ctx context.Context, system string, history []Message) (<-chan StreamChunk, error) {
	chunks := make(chan StreamChunk, 100)

	go func() {
		defer close(chunks)

		chunks <- StreamChunk{Type: ChunkStart}

		var full strings.Builder
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.chatModel, contents(history), chatConfig(system)) {
			if err != nil {
				chunks <- StreamChunk{
					Type:    ChunkError,
					Message: fmt.Sprintf("Stream error: %v", err),
				}
				return
			}
			if delta := resp.Text(); delta != "" {
				full.WriteString(delta)
				chunks <- StreamChunk{Type: ChunkToken, Message: delta}
			}
		}

		chunks <- StreamChunk{Type: ChunkComplete, Message: full.String()}
	}()

	return chunks, nil
}

// Health fetches the chat model's metadata
func (c *GeminiClient) Health(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.chatModel, nil); err != nil {
		return fmt.Errorf("Gemini health check failed: %w", err)
	}
	return nil
}
