package router

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

// Router addresses backends by logical service name and balances calls
// across the instances registered under it. It never dials: an instance
// without a cached session fails with mcpmgr.ErrNotConnected.
type Router struct {
	opts Options
	inv  *invoker
}

func NewRouter(opts *Options) (*Router, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Router{opts: o, inv: newInvoker(o)}, nil
}

// StrategyName identifies the balancing strategy in use.
func (r *Router) StrategyName() string { return r.opts.Strategy.Name() }

func (r *Router) pick(name string, op invocationlog.OperationType) (registry.ServerRecord, error) {
	instances := r.opts.Registry.ListInstances(name)
	if len(instances) == 0 {
		return registry.ServerRecord{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if isListOperation(op) && !r.opts.BalanceListOperations {
		return instances[0], nil
	}
	rec, ok := r.opts.Strategy.Select(instances)
	if !ok {
		return registry.ServerRecord{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return rec, nil
}

func (r *Router) call(name, clientID string, op invocationlog.OperationType, target string, args any) (call, error) {
	start := time.Now()
	rec, err := r.pick(name, op)
	if err != nil {
		return call{}, err
	}
	return call{
		source:   invocationlog.SourceRouter,
		op:       op,
		serverID: rec.ID,
		target:   target,
		clientID: clientID,
		args:     args,
		start:    start,
	}, nil
}

func (r *Router) ListTools(ctx context.Context, name, clientID string) ([]*mcp.Tool, error) {
	c, err := r.call(name, clientID, invocationlog.OpToolList, "", nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, r.inv, c, func(ctx context.Context, s *mcpmgr.Session) ([]*mcp.Tool, error) {
		return s.ListTools(ctx)
	})
}

func (r *Router) CallTool(ctx context.Context, name, clientID, tool string, args any) (*mcp.CallToolResult, error) {
	c, err := r.call(name, clientID, invocationlog.OpToolCall, tool, args)
	if err != nil {
		return nil, err
	}
	return run(ctx, r.inv, c, func(ctx context.Context, s *mcpmgr.Session) (*mcp.CallToolResult, error) {
		return s.CallTool(ctx, tool, args)
	})
}

func (r *Router) ListResources(ctx context.Context, name, clientID string) ([]*mcp.Resource, error) {
	c, err := r.call(name, clientID, invocationlog.OpResourceList, "", nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, r.inv, c, func(ctx context.Context, s *mcpmgr.Session) ([]*mcp.Resource, error) {
		return s.ListResources(ctx)
	})
}

func (r *Router) ReadResource(ctx context.Context, name, clientID, uri string) (*mcp.ReadResourceResult, error) {
	c, err := r.call(name, clientID, invocationlog.OpResourceRead, uri, nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, r.inv, c, func(ctx context.Context, s *mcpmgr.Session) (*mcp.ReadResourceResult, error) {
		return s.ReadResource(ctx, uri)
	})
}

func (r *Router) ListPrompts(ctx context.Context, name, clientID string) ([]*mcp.Prompt, error) {
	c, err := r.call(name, clientID, invocationlog.OpPromptList, "", nil)
	if err != nil {
		return nil, err
	}
	return run(ctx, r.inv, c, func(ctx context.Context, s *mcpmgr.Session) ([]*mcp.Prompt, error) {
		return s.ListPrompts(ctx)
	})
}

func (r *Router) GetPrompt(ctx context.Context, name, clientID, prompt string, args map[string]string) (*mcp.GetPromptResult, error) {
	c, err := r.call(name, clientID, invocationlog.OpPromptGet, prompt, args)
	if err != nil {
		return nil, err
	}
	return run(ctx, r.inv, c, func(ctx context.Context, s *mcpmgr.Session) (*mcp.GetPromptResult, error) {
		return s.GetPrompt(ctx, prompt, args)
	})
}
