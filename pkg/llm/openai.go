package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultOpenAIChatModel = openai.GPT4oMini
)

// OpenAIClient wraps the OpenAI API client
type OpenAIClient struct {
	client    *openai.Client
	http      *resty.Client
	chatModel string
	jsonModel string
}

// NewOpenAIClient creates a new OpenAI client. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = baseURL

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultOpenAIChatModel
	}
	jsonModel := cfg.JSONModel
	if jsonModel == "" {
		jsonModel = chatModel
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(10 * time.Second)

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(config),
		http:      httpClient,
		chatModel: chatModel,
		jsonModel: jsonModel,
	}, nil
}

func (c *OpenAIClient) messages(system string, history []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range history {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: inlineText(m),
		})
	}
	return out
}

// Chat performs a non-streaming chat completion
func (c *OpenAIClient) Chat(ctx context.Context, system string, history []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: c.messages(system, history),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

// GenerateJSON requests a JSON object response for a single prompt
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.jsonModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

// StreamChat performs a streaming chat completion
func (c *OpenAIClient) StreamChat(ctx context.Context, system string, history []Message) (<-chan StreamChunk, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: c.messages(system, history),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	chunks := make(chan StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer stream.Close()

		chunks <- StreamChunk{Type: ChunkStart}

		var full strings.Builder
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				chunks <- StreamChunk{
					Type:    ChunkError,
					Message: fmt.Sprintf("Stream error: %v", err),
				}
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			if delta := response.Choices[0].Delta.Content; delta != "" {
				full.WriteString(delta)
				chunks <- StreamChunk{Type: ChunkToken, Message: delta}
			}
		}

		chunks <- StreamChunk{Type: ChunkComplete, Message: full.String()}
	}()

	return chunks, nil
}

// Health lists models to check the endpoint and key
func (c *OpenAIClient) Health(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/models")
	if err != nil {
		return fmt.Errorf("OpenAI health check failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("OpenAI health check failed: status %d", resp.StatusCode())
	}
	return nil
}
