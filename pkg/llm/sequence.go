package llm

import (
	"fmt"
)

// ToolSequenceError reports a tool message that does not answer a pending call
// of the immediately preceding assistant message.
type ToolSequenceError struct {
	Index      int
	ToolCallID string
}

func (e *ToolSequenceError) Error() string {
	return fmt.Sprintf("tool message %d answers unknown or already answered tool call %q", e.Index, e.ToolCallID)
}

// ValidateToolSequence checks that every tool message answers a pending tool
// call of the closest preceding assistant message, with only tool messages in
// between.
func ValidateToolSequence(messages []Message) error {
	var pending map[string]bool
	for i, m := range messages {
		switch m.Role {
		case RoleAssistant:
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		case RoleTool:
			if m.ToolCallID == "" || !pending[m.ToolCallID] {
				return &ToolSequenceError{Index: i, ToolCallID: m.ToolCallID}
			}
			delete(pending, m.ToolCallID)
		default:
			pending = nil
		}
	}
	return nil
}
