package mcpgateway

import (
	"maps"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	metaKeyService    = "mcpgateway.service"
	metaKeyNativeName = "mcpgateway.native_name"
)

// featureIndex tracks which façade names belong to which logical service so a
// refresh can swap one service's features without touching the others.
type featureIndex struct {
	ns NamespaceStrategy

	mu sync.RWMutex

	tools          map[string]featureTarget
	serviceTools   map[string][]string
	prompts        map[string]featureTarget
	servicePrompts map[string][]string
}

type featureTarget struct {
	GatewayName string
	Service     string
	NativeName  string
}

type toolRegistration struct {
	Tool   *mcp.Tool
	Target featureTarget
}

type promptRegistration struct {
	Prompt *mcp.Prompt
	Target featureTarget
}

func newFeatureIndex(ns NamespaceStrategy) *featureIndex {
	return &featureIndex{
		ns:             ns,
		tools:          make(map[string]featureTarget),
		serviceTools:   make(map[string][]string),
		prompts:        make(map[string]featureTarget),
		servicePrompts: make(map[string][]string),
	}
}

// UpdateTools replaces service's tools. A name already owned by another
// service is left with its owner and reported in conflicts.
func (f *featureIndex) UpdateTools(service string, upstream []*mcp.Tool) (removed []string, added []toolRegistration, conflicts []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed = removeLocked(f.tools, f.serviceTools, service)
	added = make([]toolRegistration, 0, len(upstream))
	names := make([]string, 0, len(upstream))
	for _, tool := range upstream {
		if tool == nil {
			continue
		}
		gatewayName := f.ns.ToolName(service, tool.Name)
		if owner, taken := f.tools[gatewayName]; taken && owner.Service != service {
			conflicts = append(conflicts, gatewayName)
			continue
		}
		target := featureTarget{GatewayName: gatewayName, Service: service, NativeName: tool.Name}
		f.tools[gatewayName] = target
		added = append(added, toolRegistration{Tool: cloneTool(tool, gatewayName, service), Target: target})
		names = append(names, gatewayName)
	}
	if len(names) > 0 {
		f.serviceTools[service] = names
	}
	return removed, added, conflicts
}

func (f *featureIndex) UpdatePrompts(service string, upstream []*mcp.Prompt) (removed []string, added []promptRegistration, conflicts []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed = removeLocked(f.prompts, f.servicePrompts, service)
	added = make([]promptRegistration, 0, len(upstream))
	var names []string
	for _, prompt := range upstream {
		if prompt == nil {
			continue
		}
		gatewayName := f.ns.PromptName(service, prompt.Name)
		if owner, taken := f.prompts[gatewayName]; taken && owner.Service != service {
			conflicts = append(conflicts, gatewayName)
			continue
		}
		target := featureTarget{GatewayName: gatewayName, Service: service, NativeName: prompt.Name}
		f.prompts[gatewayName] = target
		added = append(added, promptRegistration{Prompt: clonePrompt(prompt, gatewayName, service), Target: target})
		names = append(names, gatewayName)
	}
	if len(names) > 0 {
		f.servicePrompts[service] = names
	}
	return removed, added, conflicts
}

// Drop forgets every feature of service and returns the names to remove.
func (f *featureIndex) Drop(service string) (tools, prompts []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeLocked(f.tools, f.serviceTools, service), removeLocked(f.prompts, f.servicePrompts, service)
}

func (f *featureIndex) ToolTarget(name string) (featureTarget, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tools[name]
	return t, ok
}

func (f *featureIndex) PromptTarget(name string) (featureTarget, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prompts[name]
	return p, ok
}

func removeLocked(targets map[string]featureTarget, byService map[string][]string, service string) []string {
	names := byService[service]
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		delete(targets, name)
	}
	delete(byService, service)
	return append([]string(nil), names...)
}

func cloneTool(tool *mcp.Tool, gatewayName, service string) *mcp.Tool {
	clone := *tool
	clone.Name = gatewayName
	if clone.InputSchema == nil {
		clone.InputSchema = map[string]any{"type": "object"}
	}
	clone.Meta = withMeta(tool.Meta, map[string]any{
		metaKeyService:    service,
		metaKeyNativeName: tool.Name,
	})
	return &clone
}

func clonePrompt(prompt *mcp.Prompt, gatewayName, service string) *mcp.Prompt {
	clone := *prompt
	clone.Name = gatewayName
	clone.Meta = withMeta(prompt.Meta, map[string]any{
		metaKeyService:    service,
		metaKeyNativeName: prompt.Name,
	})
	return &clone
}

func withMeta(base map[string]any, extras map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any)
	}
	maps.Copy(out, extras)
	return out
}
