package mcpgateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// ToolCallRequest is the body of the tools/call endpoints.
type ToolCallRequest struct {
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
}

// ResourceReadRequest is the body of the resources/read endpoints.
type ResourceReadRequest struct {
	URI string `json:"uri"`
}

// PromptGetRequest is the body of the prompts/get endpoints.
type PromptGetRequest struct {
	PromptName string            `json:"promptName"`
	Arguments  map[string]string `json:"arguments"`
}

func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /servers", g.handleRegister)
	mux.HandleFunc("DELETE /servers", g.handleUnregister)
	mux.HandleFunc("GET /servers", g.handleListServers)
	mux.HandleFunc("GET /servers/protocols", g.handleProtocols)
	mux.HandleFunc("GET /servers/{id}", g.handleGetServer)
	mux.HandleFunc("GET /servers/{id}/tools", g.handleDirectTools)
	mux.HandleFunc("GET /servers/{id}/resources", g.handleDirectResources)
	mux.HandleFunc("GET /servers/{id}/prompts", g.handleDirectPrompts)

	mux.HandleFunc("GET /inspector/history", g.handleHistory)
	mux.HandleFunc("DELETE /inspector/history", g.handleClearHistory)
	mux.HandleFunc("GET /inspector/{serverId}/history", g.handleServerHistory)
	mux.HandleFunc("GET /inspector/{serverId}/tools", g.handleInspectorListTools)
	mux.HandleFunc("POST /inspector/{serverId}/tools/call", g.handleInspectorCallTool)
	mux.HandleFunc("GET /inspector/{serverId}/resources", g.handleInspectorListResources)
	mux.HandleFunc("POST /inspector/{serverId}/resources/read", g.handleInspectorReadResource)
	mux.HandleFunc("GET /inspector/{serverId}/prompts", g.handleInspectorListPrompts)
	mux.HandleFunc("POST /inspector/{serverId}/prompts/get", g.handleInspectorGetPrompt)

	mux.HandleFunc("GET /router/{serverName}/tools", g.rateLimited(g.handleRouterListTools))
	mux.HandleFunc("POST /router/{serverName}/tools/call", g.rateLimited(g.handleRouterCallTool))
	mux.HandleFunc("GET /router/{serverName}/resources", g.rateLimited(g.handleRouterListResources))
	mux.HandleFunc("POST /router/{serverName}/resources/read", g.rateLimited(g.handleRouterReadResource))
	mux.HandleFunc("GET /router/{serverName}/prompts", g.rateLimited(g.handleRouterListPrompts))
	mux.HandleFunc("POST /router/{serverName}/prompts/get", g.rateLimited(g.handleRouterGetPrompt))

	mux.HandleFunc("GET /monitors/summary", g.handleMonitorSummary)
	mux.HandleFunc("GET /monitors/{id}/detail", g.handleMonitorDetail)

	mux.Handle("GET /metrics", promhttp.HandlerFor(g.prom, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	if !g.opts.DisableMCP {
		path := g.opts.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		mux.Handle(path, g.streamHandler)
		if !strings.HasSuffix(path, "/") {
			mux.Handle(path+"/", g.streamHandler)
		}
	}
	return mux
}

func (g *Gateway) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				g.opts.Logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", rec)
				g.writeCode(w, http.StatusInternalServerError, CodeInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Registry

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	rec, err := g.RegisterServer(r.Context(), req)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	g.writeOK(w, rec)
}

func (g *Gateway) handleUnregister(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("serverName")
	id := r.URL.Query().Get("serverId")
	if name == "" || id == "" {
		g.writeError(w, r, fmt.Errorf("%w: serverName and serverId are required", ErrInvalidArgument))
		return
	}
	rec, err := g.UnregisterServer(r.Context(), name, id)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	g.writeOK(w, rec)
}

func (g *Gateway) handleListServers(w http.ResponseWriter, r *http.Request) {
	g.writeOK(w, g.Servers())
}

func (g *Gateway) handleProtocols(w http.ResponseWriter, r *http.Request) {
	g.writeOK(w, registry.TransportKinds())
}

func (g *Gateway) handleGetServer(w http.ResponseWriter, r *http.Request) {
	rec, err := g.Server(r.URL.Query().Get("serverName"), r.PathValue("id"))
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	g.writeOK(w, rec)
}

// Direct listing reads through the cached connection and records nothing.

func (g *Gateway) handleDirectTools(w http.ResponseWriter, r *http.Request) {
	session, err := g.directSession(r)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	tools, err := session.ListTools(r.Context())
	g.respond(w, r, tools, err)
}

func (g *Gateway) handleDirectResources(w http.ResponseWriter, r *http.Request) {
	session, err := g.directSession(r)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	resources, err := session.ListResources(r.Context())
	g.respond(w, r, resources, err)
}

func (g *Gateway) handleDirectPrompts(w http.ResponseWriter, r *http.Request) {
	session, err := g.directSession(r)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	prompts, err := session.ListPrompts(r.Context())
	g.respond(w, r, prompts, err)
}

func (g *Gateway) directSession(r *http.Request) (*mcpmgr.Session, error) {
	rec, err := g.registry.GetByID(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	return g.manager.GetClient(r.Context(), rec.ID)
}

// Inspector

func (g *Gateway) handleInspectorListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := g.inspector.ListTools(r.Context(), r.PathValue("serverId"))
	g.respond(w, r, tools, err)
}

func (g *Gateway) handleInspectorCallTool(w http.ResponseWriter, r *http.Request) {
	var req ToolCallRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.ToolName == "" {
		g.writeError(w, r, fmt.Errorf("%w: toolName is required", ErrInvalidArgument))
		return
	}
	res, err := g.inspector.CallTool(r.Context(), r.PathValue("serverId"), req.ToolName, req.Arguments)
	g.respond(w, r, res, err)
}

func (g *Gateway) handleInspectorListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := g.inspector.ListResources(r.Context(), r.PathValue("serverId"))
	g.respond(w, r, resources, err)
}

func (g *Gateway) handleInspectorReadResource(w http.ResponseWriter, r *http.Request) {
	var req ResourceReadRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.URI == "" {
		g.writeError(w, r, fmt.Errorf("%w: uri is required", ErrInvalidArgument))
		return
	}
	res, err := g.inspector.ReadResource(r.Context(), r.PathValue("serverId"), req.URI)
	g.respond(w, r, res, err)
}

func (g *Gateway) handleInspectorListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := g.inspector.ListPrompts(r.Context(), r.PathValue("serverId"))
	g.respond(w, r, prompts, err)
}

func (g *Gateway) handleInspectorGetPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptGetRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.PromptName == "" {
		g.writeError(w, r, fmt.Errorf("%w: promptName is required", ErrInvalidArgument))
		return
	}
	res, err := g.inspector.GetPrompt(r.Context(), r.PathValue("serverId"), req.PromptName, req.Arguments)
	g.respond(w, r, res, err)
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	source, err := sourceParam(r.URL.Query().Get("source"))
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	items, total := g.inspector.History(source, page, size)
	g.writeOK(w, Page[invocationlog.Entry]{Items: items, Page: page, Size: size, Total: total})
}

func (g *Gateway) handleServerHistory(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	items, total := g.inspector.ServerHistory(r.PathValue("serverId"), page, size)
	g.writeOK(w, Page[invocationlog.Entry]{Items: items, Page: page, Size: size, Total: total})
}

func (g *Gateway) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	g.inspector.ClearHistory()
	g.writeOK(w, nil)
}

// Router

func (g *Gateway) handleRouterListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := g.router.ListTools(r.Context(), r.PathValue("serverName"), r.Header.Get(ClientIDHeader))
	g.respond(w, r, tools, err)
}

func (g *Gateway) handleRouterCallTool(w http.ResponseWriter, r *http.Request) {
	var req ToolCallRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.ToolName == "" {
		g.writeError(w, r, fmt.Errorf("%w: toolName is required", ErrInvalidArgument))
		return
	}
	res, err := g.router.CallTool(r.Context(), r.PathValue("serverName"), r.Header.Get(ClientIDHeader), req.ToolName, req.Arguments)
	g.respond(w, r, res, err)
}

func (g *Gateway) handleRouterListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := g.router.ListResources(r.Context(), r.PathValue("serverName"), r.Header.Get(ClientIDHeader))
	g.respond(w, r, resources, err)
}

func (g *Gateway) handleRouterReadResource(w http.ResponseWriter, r *http.Request) {
	var req ResourceReadRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.URI == "" {
		g.writeError(w, r, fmt.Errorf("%w: uri is required", ErrInvalidArgument))
		return
	}
	res, err := g.router.ReadResource(r.Context(), r.PathValue("serverName"), r.Header.Get(ClientIDHeader), req.URI)
	g.respond(w, r, res, err)
}

func (g *Gateway) handleRouterListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := g.router.ListPrompts(r.Context(), r.PathValue("serverName"), r.Header.Get(ClientIDHeader))
	g.respond(w, r, prompts, err)
}

func (g *Gateway) handleRouterGetPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptGetRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.PromptName == "" {
		g.writeError(w, r, fmt.Errorf("%w: promptName is required", ErrInvalidArgument))
		return
	}
	res, err := g.router.GetPrompt(r.Context(), r.PathValue("serverName"), r.Header.Get(ClientIDHeader), req.PromptName, req.Arguments)
	g.respond(w, r, res, err)
}

// Monitors

func (g *Gateway) handleMonitorSummary(w http.ResponseWriter, r *http.Request) {
	g.writeOK(w, g.MonitorSummaries())
}

func (g *Gateway) handleMonitorDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := g.MonitorDetail(r.PathValue("id"))
	g.respond(w, r, detail, err)
}

func (g *Gateway) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	g.writeOK(w, data)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", ErrInvalidArgument, err)
	}
	return nil
}

func pageParams(r *http.Request) (page, size int, err error) {
	q := r.URL.Query()
	page, size = 0, defaultPageSize
	if raw := q.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 0 {
			return 0, 0, fmt.Errorf("%w: page must be a non-negative integer", ErrInvalidArgument)
		}
	}
	if raw := q.Get("size"); raw != "" {
		if size, err = strconv.Atoi(raw); err != nil || size <= 0 {
			return 0, 0, fmt.Errorf("%w: size must be a positive integer", ErrInvalidArgument)
		}
	}
	return page, min(size, maxPageSize), nil
}

func sourceParam(raw string) (invocationlog.Source, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case string(invocationlog.SourceInspector):
		return invocationlog.SourceInspector, nil
	case string(invocationlog.SourceRouter):
		return invocationlog.SourceRouter, nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, raw)
	}
}
