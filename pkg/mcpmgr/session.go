package mcpmgr

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Session is the cached handle for one backend instance. The Manager owns
// it; callers borrow it and must not Close it themselves.
type Session struct {
	serverID string
	cs       *mcp.ClientSession
	timeout  time.Duration
}

func (s *Session) ServerID() string { return s.serverID }

// ListTools follows pagination cursors and returns every tool. A backend that
// does not implement tools/list yields an empty list.
func (s *Session) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tools := []*mcp.Tool{}
	params := &mcp.ListToolsParams{}
	for {
		res, err := s.cs.ListTools(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err, "tools/list") {
				return []*mcp.Tool{}, nil
			}
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

func (s *Session) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
}

func (s *Session) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resources := []*mcp.Resource{}
	params := &mcp.ListResourcesParams{}
	for {
		res, err := s.cs.ListResources(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err, "resources/list") {
				return []*mcp.Resource{}, nil
			}
			return nil, err
		}
		resources = append(resources, res.Resources...)
		if res.NextCursor == "" {
			return resources, nil
		}
		params = &mcp.ListResourcesParams{Cursor: res.NextCursor}
	}
}

func (s *Session) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
}

func (s *Session) ListPrompts(ctx context.Context) ([]*mcp.Prompt, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	prompts := []*mcp.Prompt{}
	params := &mcp.ListPromptsParams{}
	for {
		res, err := s.cs.ListPrompts(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err, "prompts/list") {
				return []*mcp.Prompt{}, nil
			}
			return nil, err
		}
		prompts = append(prompts, res.Prompts...)
		if res.NextCursor == "" {
			return prompts, nil
		}
		params = &mcp.ListPromptsParams{Cursor: res.NextCursor}
	}
}

func (s *Session) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: name, Arguments: args})
}

func (s *Session) close() error { return s.cs.Close() }

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isMethodUnavailableError(err error, method string) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	if !(strings.Contains(lower, "method not found") ||
		strings.Contains(lower, "not implemented") ||
		strings.Contains(lower, "unsupported") ||
		strings.Contains(lower, "does not support") ||
		strings.Contains(lower, "unimplemented")) {
		return false
	}
	if strings.Contains(lower, "method not found") {
		return true
	}
	for _, part := range strings.FieldsFunc(strings.ToLower(method), func(r rune) bool {
		return r == '/' || r == ':' || r == '.' || r == '_' || r == '-'
	}) {
		if part != "" && strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
