package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"golang.org/x/time/rate"

	"github.com/sabio/datlas-chat-plugin/pkg/agent"
	"github.com/sabio/datlas-chat-plugin/pkg/llm"
	"github.com/sabio/datlas-chat-plugin/pkg/provider"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// ID is the Grafana plugin identifier
const ID = "sabio-datlas-chat"

// Make sure Plugin implements required interfaces
var (
	_ backend.CallResourceHandler = (*Plugin)(nil)
	_ backend.CheckHealthHandler  = (*Plugin)(nil)
)

// ClientFactory builds the LLM client of an instance
type ClientFactory func(ctx context.Context, cfg llm.Config) (llm.Client, error)

// Plugin is the main plugin struct that manages instances
type Plugin struct {
	mu        sync.RWMutex
	instances map[int64]*Instance
	newClient ClientFactory
}

// Instance represents a plugin instance for one organization
type Instance struct {
	settings *PluginSettings
	updated  time.Time
	client   llm.Client
	agent    *agent.Manager
	charts   provider.Provider
	fetcher  *table.Fetcher
	limiter  *rate.Limiter
	sessions *sessionStore
}

// NewPlugin creates a new Plugin
func NewPlugin() *Plugin {
	return &Plugin{
		instances: make(map[int64]*Instance),
		newClient: llm.New,
	}
}

// CallResource handles HTTP requests to plugin resources
func (p *Plugin) CallResource(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	log.DefaultLogger.Info("CallResource", "path", req.Path, "method", req.Method)

	instance, err := p.getInstance(ctx, req.PluginContext)
	if err != nil {
		return sendError(sender, http.StatusInternalServerError, fmt.Sprintf("Failed to get plugin instance: %v", err))
	}

	route := req.Method + " " + req.Path
	switch route {
	case "POST upload":
		return instance.handleUpload(ctx, req, sender)
	case "POST chat":
		return instance.handleChat(ctx, req, sender)
	case "POST chat-stream":
		return instance.handleChatStream(ctx, req, sender)
	case "POST chart":
		return instance.handleChart(ctx, req, sender)
	case "GET figure", "DELETE figure":
		return instance.handleFigure(ctx, req, sender)
	case "GET session", "DELETE session":
		return instance.handleSession(ctx, req, sender)
	case "GET health":
		return instance.handleHealth(ctx, req, sender)
	}

	switch req.Path {
	case "upload", "chat", "chat-stream", "chart", "figure", "session", "health":
		return sendError(sender, http.StatusMethodNotAllowed, "Method not allowed")
	}
	return sendError(sender, http.StatusNotFound, "Not found")
}

// CheckHealth reports whether the configured LLM provider is reachable
func (p *Plugin) CheckHealth(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	instance, err := p.getInstance(ctx, req.PluginContext)
	if err != nil {
		return &backend.CheckHealthResult{
			Status:  backend.HealthStatusError,
			Message: err.Error(),
		}, nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := instance.client.Health(healthCtx); err != nil {
		return &backend.CheckHealthResult{
			Status:  backend.HealthStatusError,
			Message: err.Error(),
		}, nil
	}

	return &backend.CheckHealthResult{
		Status:  backend.HealthStatusOk,
		Message: fmt.Sprintf("%s provider reachable, chart mode %s", instance.settings.LLMProvider, instance.settings.ChartMode),
	}, nil
}

// getInstance gets or creates an instance for the given plugin context
func (p *Plugin) getInstance(ctx context.Context, pluginCtx backend.PluginContext) (*Instance, error) {
	instanceID := pluginCtx.OrgID
	updated := settingsUpdated(pluginCtx)

	p.mu.RLock()
	instance, exists := p.instances[instanceID]
	p.mu.RUnlock()

	if exists && instance.updated.Equal(updated) {
		return instance, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if instance, exists = p.instances[instanceID]; exists && instance.updated.Equal(updated) {
		return instance, nil
	}

	instance, err := p.createInstance(ctx, pluginCtx)
	if err != nil {
		return nil, err
	}
	instance.updated = updated

	p.instances[instanceID] = instance
	return instance, nil
}

func settingsUpdated(pluginCtx backend.PluginContext) time.Time {
	if pluginCtx.AppInstanceSettings != nil {
		return pluginCtx.AppInstanceSettings.Updated
	}
	if pluginCtx.DataSourceInstanceSettings != nil {
		return pluginCtx.DataSourceInstanceSettings.Updated
	}
	return time.Time{}
}

// createInstance creates a new plugin instance
func (p *Plugin) createInstance(ctx context.Context, pluginCtx backend.PluginContext) (*Instance, error) {
	log.DefaultLogger.Info("Creating new plugin instance", "org_id", pluginCtx.OrgID)

	var jsonData []byte
	var decryptedSecrets map[string]string

	if pluginCtx.AppInstanceSettings != nil {
		jsonData = pluginCtx.AppInstanceSettings.JSONData
		decryptedSecrets = pluginCtx.AppInstanceSettings.DecryptedSecureJSONData
	} else if pluginCtx.DataSourceInstanceSettings != nil {
		jsonData = pluginCtx.DataSourceInstanceSettings.JSONData
		decryptedSecrets = pluginCtx.DataSourceInstanceSettings.DecryptedSecureJSONData
	}

	settings, err := LoadSettings(jsonData)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings.ApplySecrets(decryptedSecrets)

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	client, err := p.newClient(ctx, settings.LLMConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var charts provider.Provider
	switch provider.Kind(settings.ChartMode) {
	case provider.KindHeuristic:
		charts = provider.NewHeuristic()
	default:
		charts = provider.NewRemote(client)
	}

	log.DefaultLogger.Info("Initializing chat manager",
		"llm_provider", settings.LLMProvider, "chart_mode", settings.ChartMode)

	chat := agent.NewManager(client, agent.Options{
		InlineBytes: settings.InlineAttachmentBytes,
	})

	return &Instance{
		settings: settings,
		client:   client,
		agent:    chat,
		charts:   charts,
		fetcher:  table.NewFetcher(settings.FetchMaxBytes),
		limiter:  newRateLimiter(settings.RateLimitRPS, settings.RateLimitBurst),
		// dropped sessions take their chat history with them
		sessions: newSessionStore(chat.ClearSession),
	}, nil
}

const healthTimeout = 3 * time.Second

// handleHealth returns health status
func (i *Instance) handleHealth(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	err := i.client.Health(healthCtx)
	cancel()

	llmStatus := map[string]interface{}{"ok": true, "provider": i.settings.LLMProvider}
	status, code := "healthy", http.StatusOK
	if err != nil {
		llmStatus["ok"] = false
		llmStatus["error"] = err.Error()
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	return sendJSON(sender, code, map[string]interface{}{
		"status":       status,
		"llm_provider": llmStatus,
		"chart_mode":   i.settings.ChartMode,
	})
}

// sendJSON sends a JSON response
func sendJSON(sender backend.CallResourceResponseSender, status int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return sendError(sender, http.StatusInternalServerError, fmt.Sprintf("Failed to marshal JSON: %v", err))
	}

	return sender.Send(&backend.CallResourceResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	})
}

// sendError sends an error response
func sendError(sender backend.CallResourceResponseSender, status int, message string) error {
	body, _ := json.Marshal(map[string]string{"error": message})
	return sender.Send(&backend.CallResourceResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	})
}
