package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/sabio/datlas-chat-plugin/pkg/llm"
	"github.com/sabio/datlas-chat-plugin/pkg/pipeline"
)

// handleChatStream streams the chat reply with SSE. The chart pipeline runs
// alongside and its outcome is sent as a chart or error chunk after the reply.
func (i *Instance) handleChatStream(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	var chatReq ChatRequest
	if err := json.Unmarshal(req.Body, &chatReq); err != nil {
		return sendError(sender, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	session := i.sessions.get(chatReq.SessionID)
	batch := session.Pending()

	if strings.TrimSpace(chatReq.Message) == "" && !hasReady(batch.Files) {
		return sendError(sender, http.StatusBadRequest, "Message is required")
	}
	if !i.allow() {
		return sendError(sender, http.StatusTooManyRequests, msgRateLimited)
	}

	log.DefaultLogger.Info("Chat stream request", "session", session.ID, "message_length", len(chatReq.Message))

	var charts chan chartOutcome
	if wantsChart(chatReq) {
		charts = make(chan chartOutcome, 1)
		ticket := session.Figure.Begin()
		go func() {
			charts <- i.runChart(ctx, session, ticket, chatReq.Message, batch.Dataset)
		}()
	}

	chunks, err := i.agent.RunChatStream(ctx, session.ID, chatReq.Message, batch.Files)
	if err != nil {
		log.DefaultLogger.Error("Stream failed to start", "error", err)
		if charts != nil {
			<-charts
		}
		return sendError(sender, http.StatusInternalServerError, fmt.Sprintf("Failed to start stream: %v", err))
	}

	if err := sender.Send(&backend.CallResourceResponse{
		Status:  http.StatusOK,
		Headers: map[string][]string{"Content-Type": {"text/event-stream"}},
	}); err != nil {
		return err
	}

	var (
		full   strings.Builder
		failed bool
	)
	for chunk := range chunks {
		switch chunk.Type {
		case llm.ChunkToken:
			full.WriteString(chunk.Message)
		case llm.ChunkError:
			log.DefaultLogger.Error("Chat stream failed", "session", session.ID, "error", chunk.Message)
			chunk.Message = msgChatFailed
			failed = true
		}

		if err := sendSSE(sender, chunk); err != nil {
			log.DefaultLogger.Error("Failed to send SSE", "error", err)
			return err
		}
	}

	// a failed stream keeps the files queued and leaves no history behind
	if !failed && full.Len() > 0 {
		i.agent.CommitTurn(session.ID, chatReq.Message, full.String())
		session.Consume(batch)
	}

	if charts != nil {
		if chunk, ok := chartChunk(<-charts); ok {
			if err := sendSSE(sender, chunk); err != nil {
				return err
			}
		}
	}

	return sendSSE(sender, llm.StreamChunk{Type: llm.ChunkDone})
}

// chartChunk converts a pipeline outcome into an SSE chunk. Superseded
// results produce no chunk.
func chartChunk(o chartOutcome) (llm.StreamChunk, bool) {
	switch {
	case errors.Is(o.err, pipeline.ErrStale):
		return llm.StreamChunk{}, false
	case o.err != nil:
		return llm.StreamChunk{Type: llm.ChunkError, Message: msgPlotPrefix + UserMessage(o.err)}, true
	}
	return llm.StreamChunk{Type: llm.ChunkChart, Message: o.result.Description(), Content: o.result}, true
}

// sendSSE sends a chunk as a Server-Sent Event
func sendSSE(sender backend.CallResourceResponseSender, chunk llm.StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}

	return sender.Send(&backend.CallResourceResponse{
		Body: []byte(fmt.Sprintf("data: %s\n\n", data)),
	})
}
