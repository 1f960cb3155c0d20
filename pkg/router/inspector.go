package router

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
)

// Inspector targets one instance by id, bypassing the balancer. It is the
// debugging entry point and also serves the invocation history.
type Inspector struct {
	opts Options
	inv  *invoker
}

func NewInspector(opts *Options) (*Inspector, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Inspector{opts: o, inv: newInvoker(o)}, nil
}

// call fails with registry.ErrNotFound for unknown ids; nothing is recorded
// in that case.
func (i *Inspector) call(serverID string, op invocationlog.OperationType, target string, args any) (call, error) {
	start := time.Now()
	if _, err := i.opts.Registry.GetByID(serverID); err != nil {
		return call{}, err
	}
	return call{
		source:   invocationlog.SourceInspector,
		op:       op,
		serverID: serverID,
		target:   target,
		args:     args,
		start:    start,
	}, nil
}

func (i *Inspector) ListTools(ctx context.Context, serverID string) ([]*mcp.Tool, error) {
	c, err := i.call(serverID, invocationlog.OpToolList, "", nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, i.inv, c, func(ctx context.Context, s *mcpmgr.Session) ([]*mcp.Tool, error) {
		return s.ListTools(ctx)
	})
}

func (i *Inspector) CallTool(ctx context.Context, serverID, tool string, args any) (*mcp.CallToolResult, error) {
	c, err := i.call(serverID, invocationlog.OpToolCall, tool, args)
	if err != nil {
		return nil, err
	}
	return run(ctx, i.inv, c, func(ctx context.Context, s *mcpmgr.Session) (*mcp.CallToolResult, error) {
		return s.CallTool(ctx, tool, args)
	})
}

func (i *Inspector) ListResources(ctx context.Context, serverID string) ([]*mcp.Resource, error) {
	c, err := i.call(serverID, invocationlog.OpResourceList, "", nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, i.inv, c, func(ctx context.Context, s *mcpmgr.Session) ([]*mcp.Resource, error) {
		return s.ListResources(ctx)
	})
}

func (i *Inspector) ReadResource(ctx context.Context, serverID, uri string) (*mcp.ReadResourceResult, error) {
	c, err := i.call(serverID, invocationlog.OpResourceRead, uri, nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, i.inv, c, func(ctx context.Context, s *mcpmgr.Session) (*mcp.ReadResourceResult, error) {
		return s.ReadResource(ctx, uri)
	})
}

func (i *Inspector) ListPrompts(ctx context.Context, serverID string) ([]*mcp.Prompt, error) {
	c, err := i.call(serverID, invocationlog.OpPromptList, "", nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, i.inv, c, func(ctx context.Context, s *mcpmgr.Session) ([]*mcp.Prompt, error) {
		return s.ListPrompts(ctx)
	})
}

func (i *Inspector) GetPrompt(ctx context.Context, serverID, prompt string, args map[string]string) (*mcp.GetPromptResult, error) {
	c, err := i.call(serverID, invocationlog.OpPromptGet, prompt, args)
	if err != nil {
		return nil, err
	}
	return run(ctx, i.inv, c, func(ctx context.Context, s *mcpmgr.Session) (*mcp.GetPromptResult, error) {
		return s.GetPrompt(ctx, prompt, args)
	})
}

// History pages the shared invocation log, optionally narrowed to one source.
func (i *Inspector) History(source invocationlog.Source, page, size int) (entries []invocationlog.Entry, total int) {
	if source == "" {
		return i.opts.History.GetPage(page, size), i.opts.History.Size()
	}
	return i.opts.History.GetPageBySource(source, page, size), i.opts.History.CountBySource(source)
}

func (i *Inspector) ServerHistory(serverID string, page, size int) (entries []invocationlog.Entry, total int) {
	return i.opts.History.GetPageByServerID(serverID, page, size), i.opts.History.CountByServerID(serverID)
}

func (i *Inspector) ClearHistory() {
	i.opts.History.Clear()
}
