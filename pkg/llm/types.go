package llm

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation sent to a Generator.
//
// Assistant messages may carry the tool calls the model requested. Tool
// messages answer exactly one of those calls, referenced by ToolCallID.
type Message struct {
	Role       Role       `json:"role" yaml:"role"`
	Content    string     `json:"content" yaml:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func NewToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}

// ToolCall is a complete, coalesced tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments unmarshals the call arguments into v.
func (tc ToolCall) DecodeArguments(v any) error {
	args := tc.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return errors.Wrapf(err, "decode arguments of tool call %s (%s)", tc.ID, tc.Name)
	}
	return nil
}

// ToolDefinition describes a tool exposed to the model.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ToolCallFragment is a partial tool call as emitted by a streaming provider.
// Fragments sharing an Index (or an ID) belong to the same call; Name and
// Arguments are deltas that must be concatenated.
type ToolCallFragment struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamChunk is one element of a streaming generation. The stream channel is
// closed right after the chunk that has Done set or carries Err.
type StreamChunk struct {
	Content   string             `json:"content,omitempty"`
	ToolCalls []ToolCallFragment `json:"tool_calls,omitempty"`
	Done      bool               `json:"done,omitempty"`
	Err       error              `json:"-"`
}

// ObjectSchema names the JSON schema a structured generation must satisfy.
type ObjectSchema struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Generator is the generation capability the engine consumes. Implementations
// own retries and timeouts; callers never retry.
type Generator interface {
	// GenerateText returns the complete assistant reply.
	GenerateText(ctx context.Context, messages []Message) (string, error)
	// StreamText streams the reply, exposing tools to the model when given.
	StreamText(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)
	// GenerateJSON returns a JSON document that the model produced for the schema.
	// Use GenerateObject to get a validated, decoded value.
	GenerateJSON(ctx context.Context, messages []Message, schema ObjectSchema) (json.RawMessage, error)
}
