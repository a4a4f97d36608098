package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/pipeline"
	"github.com/sabio/datlas-chat-plugin/pkg/provider"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// User-facing texts
const (
	msgChatFailed   = "Oops! Something went wrong. Please try again."
	msgRateLimited  = "Rate limit exceeded, please wait a moment."
	msgPlotPrefix   = "Plotting Error: "
	msgHeaders      = "Could not read data headers. Please check the CSV file format."
	msgInstructions = "AI failed to generate valid plot instructions. The response might be malformed or the API call failed."
	msgTimeout      = "The request took too long. Please try again."
)

// UserMessage converts a pipeline error into the single line shown to the user
func UserMessage(err error) string {
	var (
		netErr   *provider.NetworkError
		insErr   *provider.InstructionError
		typeErr  *chart.UnsupportedTypeError
		readErr  *table.FileReadError
		sheetErr *table.SpreadsheetError
		parseErr *table.ParseError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, table.ErrHeaderMissing):
		return msgHeaders
	case errors.Is(err, table.ErrEmptySpreadsheet):
		return table.EmptySpreadsheetMessage
	case errors.As(err, &netErr):
		return fmt.Sprintf("AI analysis failed: %v", netErr.Err)
	case errors.As(err, &insErr):
		return msgInstructions
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Failed to build plot. Unknown plot type: %s", typeErr.Type)
	case errors.As(err, &readErr), errors.As(err, &sheetErr):
		return fmt.Sprintf("Error reading file: %v", err)
	case errors.As(err, &parseErr):
		return "Failed to parse data. Please check if it's a valid CSV."
	}
	return msgChatFailed
}

// wantsChart decides whether a chat turn also runs the chart pipeline
func wantsChart(req ChatRequest) bool {
	if req.Chart != nil {
		return *req.Chart
	}
	return provider.IsPlotRequest(req.Message)
}

func hasReady(files []table.UploadedFile) bool {
	for _, f := range files {
		if f.Status == table.StatusReady {
			return true
		}
	}
	return false
}

// chartOutcome is the result of one pipeline run committed to a session
type chartOutcome struct {
	result *pipeline.Result
	err    error
}

// runChart runs the pipeline and commits the result under ticket. A result
// superseded by a newer request is reported as pipeline.ErrStale.
func (i *Instance) runChart(ctx context.Context, s *Session, ticket pipeline.Ticket, prompt, csv string) chartOutcome {
	res, err := pipeline.Run(ctx, i.charts, prompt, csv, pipeline.Options{MaxRows: i.settings.MaxRows})
	if err != nil {
		log.DefaultLogger.Warn("Chart pipeline failed", "session", s.ID, "error", err)
		return chartOutcome{err: err}
	}

	if err := s.Figure.Commit(ticket, res); err != nil {
		log.DefaultLogger.Info("Dropping superseded chart", "session", s.ID, "id", res.ID)
		return chartOutcome{err: err}
	}
	return chartOutcome{result: res}
}

// handleChat runs one user turn. The chat reply and the chart pipeline run
// concurrently; each failure becomes a system message.
func (i *Instance) handleChat(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	var chatReq ChatRequest
	if err := json.Unmarshal(req.Body, &chatReq); err != nil {
		return sendError(sender, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	// queued files stay attached until a chat turn has used them
	session := i.sessions.get(chatReq.SessionID)
	batch := session.Pending()

	if strings.TrimSpace(chatReq.Message) == "" && !hasReady(batch.Files) {
		return sendError(sender, http.StatusBadRequest, "Message is required")
	}
	if !i.allow() {
		return sendError(sender, http.StatusTooManyRequests, msgRateLimited)
	}

	doChart := wantsChart(chatReq)
	log.DefaultLogger.Info("Chat request", "session", session.ID,
		"message_length", len(chatReq.Message), "files", len(batch.Files), "chart", doChart)

	var (
		wg      sync.WaitGroup
		reply   string
		chatErr error
		outcome chartOutcome
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reply, chatErr = i.agent.RunChat(ctx, session.ID, chatReq.Message, batch.Files)
	}()

	if doChart {
		ticket := session.Figure.Begin()
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome = i.runChart(ctx, session, ticket, chatReq.Message, batch.Dataset)
		}()
	}

	wg.Wait()

	resp := ChatResponse{SessionID: session.ID, Messages: []Message{}}

	if chatErr != nil {
		log.DefaultLogger.Error("Chat failed", "session", session.ID, "error", chatErr)
		resp.Messages = append(resp.Messages, Message{Text: msgChatFailed, Sender: SenderSystem})
	} else {
		session.Consume(batch)
		resp.Response = reply
		resp.Messages = append(resp.Messages, Message{Text: reply, Sender: SenderBot})
	}

	if doChart {
		switch {
		case errors.Is(outcome.err, pipeline.ErrStale):
			// a newer turn owns the figure
		case outcome.err != nil:
			resp.Messages = append(resp.Messages, Message{Text: msgPlotPrefix + UserMessage(outcome.err), Sender: SenderSystem})
		default:
			resp.Content = outcome.result
			if d := outcome.result.Description(); d != "" {
				resp.Messages = append(resp.Messages, Message{Text: d, Sender: SenderBot})
			}
		}
	}

	return sendJSON(sender, http.StatusOK, resp)
}

// handleChart runs the chart pipeline alone
func (i *Instance) handleChart(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	var chartReq ChartRequest
	if err := json.Unmarshal(req.Body, &chartReq); err != nil {
		return sendError(sender, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	if provider.Kind(i.settings.ChartMode) == provider.KindRemote && !i.allow() {
		return sendError(sender, http.StatusTooManyRequests, msgRateLimited)
	}

	session := i.sessions.get(chartReq.SessionID)
	csv := chartReq.CSV
	if csv == "" {
		csv = session.Dataset()
	}

	log.DefaultLogger.Info("Chart request", "session", session.ID, "mode", i.settings.ChartMode, "csv_bytes", len(csv))

	outcome := i.runChart(ctx, session, session.Figure.Begin(), chartReq.Prompt, csv)
	resp := ChartResponse{SessionID: session.ID, Content: outcome.result}

	switch {
	case errors.Is(outcome.err, pipeline.ErrStale):
		resp.Error = outcome.err.Error()
		return sendJSON(sender, http.StatusConflict, resp)
	case outcome.err != nil:
		resp.Error = UserMessage(outcome.err)
		return sendJSON(sender, http.StatusUnprocessableEntity, resp)
	}
	return sendJSON(sender, http.StatusOK, resp)
}

// handleFigure returns or clears the session's current figure
func (i *Instance) handleFigure(_ context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	id, err := sessionID(req.URL)
	if err != nil {
		return sendError(sender, http.StatusBadRequest, err.Error())
	}
	session := i.sessions.get(id)

	if req.Method == http.MethodDelete {
		session.Figure.Clear()
		log.DefaultLogger.Info("Figure cleared", "session", id)
	}

	return sendJSON(sender, http.StatusOK, session.Figure.Load())
}

// sessionID reads the required session_id query parameter
func sessionID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	id := u.Query().Get("session_id")
	if id == "" {
		return "", errors.New("session_id is required")
	}
	return id, nil
}

// handleSession reports a session's history usage and queued files. DELETE
// forgets the session: history, attachments, dataset and figure.
func (i *Instance) handleSession(_ context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	id, err := sessionID(req.URL)
	if err != nil {
		return sendError(sender, http.StatusBadRequest, err.Error())
	}

	if req.Method == http.MethodDelete {
		existed := i.sessions.remove(id)
		log.DefaultLogger.Info("Session reset", "session", id, "existed", existed)
		return sendJSON(sender, http.StatusOK, SessionResponse{SessionID: id, History: i.agent.Stats(id)})
	}

	session := i.sessions.get(id)
	return sendJSON(sender, http.StatusOK, SessionResponse{
		SessionID:    id,
		History:      i.agent.Stats(id),
		PendingFiles: session.PendingCount(),
		HasDataset:   session.Dataset() != "",
		Figure:       session.Figure.Load(),
	})
}

// handleUpload converts files into CSV text and queues them for the next turn
func (i *Instance) handleUpload(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	var upReq UploadRequest
	if err := json.Unmarshal(req.Body, &upReq); err != nil {
		return sendError(sender, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if len(upReq.Files) == 0 && upReq.URL == "" {
		return sendError(sender, http.StatusBadRequest, "No files to upload")
	}

	session := i.sessions.get(upReq.SessionID)

	files := make([]table.UploadedFile, 0, len(upReq.Files)+1)
	for _, f := range upReq.Files {
		files = append(files, table.DecodeUpload(f.Name, f.Type, f.Data))
	}
	if upReq.URL != "" {
		files = append(files, i.fetcher.Fetch(ctx, upReq.URL))
	}

	resp := UploadResponse{SessionID: session.ID, Files: make([]FileSummary, len(files))}
	for n, f := range files {
		if f.Status == table.StatusError {
			log.DefaultLogger.Warn("File rejected", "session", session.ID, "file", f.Name, "error", f.ErrorMessage)
		}
		resp.Files[n] = summarize(f)
	}

	session.Attach(files...)
	return sendJSON(sender, http.StatusOK, resp)
}
