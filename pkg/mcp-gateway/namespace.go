package mcpgateway

import (
	"fmt"
	"strings"
)

// NamespaceStrategy generates the façade identifiers for a logical service's
// tools and prompts. ValidService rejects service names that could make two
// services produce the same identifier.
type NamespaceStrategy interface {
	ToolName(service, toolName string) string
	PromptName(service, promptName string) string
	ValidService(service string) error
}

// ServiceNamespace prefixes every identifier with the logical service name,
// separating fields with a configurable delimiter (defaults to "__").
type ServiceNamespace struct {
	Separator string
}

func (s ServiceNamespace) separator() string {
	if s.Separator == "" {
		return "__"
	}
	return s.Separator
}

func (s ServiceNamespace) ToolName(service, toolName string) string {
	return s.decorate(service, toolName)
}

func (s ServiceNamespace) PromptName(service, promptName string) string {
	return s.decorate(service, promptName)
}

// ValidService fails for names containing the separator: "a__b" + "c" and
// "a" + "b__c" would both become "a__b__c".
func (s ServiceNamespace) ValidService(service string) error {
	if strings.Contains(service, s.separator()) {
		return fmt.Errorf("%w: service name %q must not contain %q", ErrInvalidArgument, service, s.separator())
	}
	return nil
}

func (s ServiceNamespace) decorate(service, value string) string {
	return fmt.Sprintf("%s%s%s", service, s.separator(), value)
}
