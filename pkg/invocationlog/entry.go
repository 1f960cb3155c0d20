// Package invocationlog keeps a bounded, newest-first audit trail of backend
// calls made through the gateway.
package invocationlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Source identifies which entry point issued a call.
type Source string

const (
	SourceInspector Source = "INSPECTOR"
	SourceRouter    Source = "ROUTER"
)

// OperationType names the protocol operation that was invoked.
type OperationType string

const (
	OpToolList     OperationType = "TOOL_LIST"
	OpToolCall     OperationType = "TOOL_CALL"
	OpResourceList OperationType = "RESOURCE_LIST"
	OpResourceRead OperationType = "RESOURCE_READ"
	OpPromptList   OperationType = "PROMPT_LIST"
	OpPromptGet    OperationType = "PROMPT_GET"
)

// Status is the call outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Entry is immutable once added to a Store.
type Entry struct {
	CallID        string          `json:"callId"`
	Source        Source          `json:"source"`
	ServerID      string          `json:"serverId"`
	OperationType OperationType   `json:"operationType"`
	TargetName    string          `json:"targetName,omitempty"`
	Arguments     any             `json:"arguments,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
	Status        Status          `json:"status"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	DurationMs    int64           `json:"durationMs"`
	Timestamp     time.Time       `json:"timestamp"`
	ClientID      string          `json:"clientId,omitempty"`
}

// NewCallID returns a fresh call identifier.
func NewCallID() string {
	return "inv-" + uuid.NewString()
}
