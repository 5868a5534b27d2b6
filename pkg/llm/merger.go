package llm

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// ToolCallMerger coalesces streamed tool call fragments into complete calls.
//
// Fragments are matched by call ID when the ID is already known, otherwise by
// stream index. Calls are returned in the order they were first seen.
type ToolCallMerger struct {
	calls   []*pendingCall
	byID    map[string]int
	byIndex map[int]int
}

func NewToolCallMerger() *ToolCallMerger {
	return &ToolCallMerger{
		byID:    make(map[string]int),
		byIndex: make(map[int]int),
	}
}

func (m *ToolCallMerger) Add(fragments ...ToolCallFragment) {
	for _, f := range fragments {
		key := -1
		if f.ID != "" {
			if k, ok := m.byID[f.ID]; ok {
				key = k
			}
		}
		if key < 0 {
			if k, ok := m.byIndex[f.Index]; ok && (f.ID == "" || m.calls[k].id == "" || m.calls[k].id == f.ID) {
				key = k
			}
		}
		if key < 0 {
			key = len(m.calls)
			m.calls = append(m.calls, &pendingCall{})
		}
		m.byIndex[f.Index] = key

		c := m.calls[key]
		if f.ID != "" && c.id == "" {
			c.id = f.ID
			m.byID[f.ID] = key
		}
		// some providers repeat the full name on every fragment
		if f.Name != "" && f.Name != c.name {
			c.name += f.Name
		}
		c.args.WriteString(f.Arguments)
	}
}

// Len returns the number of distinct calls seen so far.
func (m *ToolCallMerger) Len() int {
	return len(m.calls)
}

// ToolCalls returns a snapshot of the coalesced calls. Calls whose provider
// never sent an ID get a generated, stable one.
func (m *ToolCallMerger) ToolCalls() []ToolCall {
	out := make([]ToolCall, 0, len(m.calls))
	for i, c := range m.calls {
		if c.id == "" {
			c.id = "call_" + uuid.NewString()
			m.byID[c.id] = i
		}
		args := strings.TrimSpace(c.args.String())
		if args == "" {
			args = "{}"
		}
		out = append(out, ToolCall{
			ID:        c.id,
			Name:      c.name,
			Arguments: json.RawMessage(args),
		})
	}
	return out
}
