// Package agent runs the turn-taking loop between a reasoning model and the
// retrieval tools.
package agent

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one action requested by the model. Arguments is a JSON object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of the conversation transcript.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolSpec describes a callable tool with a JSON-schema parameter object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Reasoner produces the next assistant message for a transcript. The system
// prompt is passed separately and never stored in the transcript.
type Reasoner interface {
	Reason(ctx context.Context, system string, messages []Message, tools []ToolSpec) (Message, error)
}
