package mcpgateway

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// refreshService re-reads one logical service's tools and prompts from its
// first instance and swaps them on the façade. A service with no instances
// left loses its features. Failures are logged; the previous snapshot stays.
func (g *Gateway) refreshService(ctx context.Context, service string) {
	if g.opts.DisableMCP {
		return
	}
	g.facadeMu.Lock()
	defer g.facadeMu.Unlock()

	instances := g.registry.ListInstances(service)
	if len(instances) == 0 {
		tools, prompts := g.features.Drop(service)
		if len(tools) > 0 {
			g.server.RemoveTools(tools...)
		}
		if len(prompts) > 0 {
			g.server.RemovePrompts(prompts...)
		}
		return
	}

	ctx, cancel := g.syncContext(ctx)
	defer cancel()
	session, err := g.manager.GetClient(ctx, instances[0].ID)
	if err != nil {
		g.logError("refresh service", err, "server", service)
		return
	}
	tools, err := session.ListTools(ctx)
	if err != nil {
		g.logError("sync tools", err, "server", service)
		return
	}
	prompts, err := session.ListPrompts(ctx)
	if err != nil {
		g.logError("sync prompts", err, "server", service)
		return
	}

	removedTools, addedTools, toolConflicts := g.features.UpdateTools(service, tools)
	if len(removedTools) > 0 {
		g.server.RemoveTools(removedTools...)
	}
	for _, reg := range addedTools {
		g.server.AddTool(reg.Tool, g.callFacadeTool)
	}
	removedPrompts, addedPrompts, promptConflicts := g.features.UpdatePrompts(service, prompts)
	if len(removedPrompts) > 0 {
		g.server.RemovePrompts(removedPrompts...)
	}
	for _, reg := range addedPrompts {
		g.server.AddPrompt(reg.Prompt, g.getFacadePrompt)
	}
	if len(toolConflicts) > 0 || len(promptConflicts) > 0 {
		g.opts.Logger.Warn("façade names owned by another service", "server", service, "tools", toolConflicts, "prompts", promptConflicts)
	}
	g.opts.Logger.Debug("synced service", "server", service, "tools", len(addedTools), "prompts", len(addedPrompts))
}

// callFacadeTool resolves the façade name at call time, so a handler left
// over from a previous snapshot routes to the current owner.
func (g *Gateway) callFacadeTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.Params == nil {
		return nil, fmt.Errorf("%w: missing tool params", ErrInvalidArgument)
	}
	target, ok := g.features.ToolTarget(req.Params.Name)
	if !ok {
		return nil, fmt.Errorf("mcpgateway: unknown tool %q", req.Params.Name)
	}
	var args any
	if len(req.Params.Arguments) > 0 {
		args = req.Params.Arguments
	}
	return g.router.CallTool(ctx, target.Service, sessionID(req.Session), target.NativeName, args)
}

func (g *Gateway) getFacadePrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if req.Params == nil {
		return nil, fmt.Errorf("%w: missing prompt params", ErrInvalidArgument)
	}
	target, ok := g.features.PromptTarget(req.Params.Name)
	if !ok {
		return nil, fmt.Errorf("mcpgateway: unknown prompt %q", req.Params.Name)
	}
	return g.router.GetPrompt(ctx, target.Service, sessionID(req.Session), target.NativeName, req.Params.Arguments)
}

func sessionID(session *mcp.ServerSession) string {
	if session == nil {
		return ""
	}
	return session.ID()
}
