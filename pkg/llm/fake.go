package llm

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// FakeCall records one invocation of a FakeGenerator.
type FakeCall struct {
	Method   string
	Messages []Message
	Tools    []ToolDefinition
	Schema   string
}

// FakeGenerator is a scripted Generator for tests and offline runs. Each
// method delegates to its hook; unset hooks return empty results.
type FakeGenerator struct {
	TextFunc   func(messages []Message) (string, error)
	StreamFunc func(messages []Message, tools []ToolDefinition) ([]StreamChunk, error)
	ObjectFunc func(messages []Message, schema ObjectSchema) (json.RawMessage, error)

	mu    sync.Mutex
	calls []FakeCall
}

var _ Generator = (*FakeGenerator)(nil)

func (f *FakeGenerator) record(c FakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns a copy of all recorded calls.
func (f *FakeGenerator) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts recorded calls of the given method.
func (f *FakeGenerator) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *FakeGenerator) GenerateText(_ context.Context, messages []Message) (string, error) {
	f.record(FakeCall{Method: "GenerateText", Messages: messages})
	if f.TextFunc == nil {
		return "", nil
	}
	return f.TextFunc(messages)
}

func (f *FakeGenerator) GenerateJSON(_ context.Context, messages []Message, schema ObjectSchema) (json.RawMessage, error) {
	f.record(FakeCall{Method: "GenerateJSON", Messages: messages, Schema: schema.Name})
	if f.ObjectFunc == nil {
		return json.RawMessage("{}"), nil
	}
	return f.ObjectFunc(messages, schema)
}

func (f *FakeGenerator) StreamText(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	f.record(FakeCall{Method: "StreamText", Messages: messages, Tools: tools})
	var chunks []StreamChunk
	if f.StreamFunc != nil {
		var err error
		chunks, err = f.StreamFunc(messages, tools)
		if err != nil {
			return nil, err
		}
	}
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
			if c.Done || c.Err != nil {
				return
			}
		}
		select {
		case out <- StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// ScriptedStreams returns a StreamFunc that plays the given responses in
// order. Once exhausted it answers with an empty, tool-less response.
func ScriptedStreams(responses ...[]StreamChunk) func([]Message, []ToolDefinition) ([]StreamChunk, error) {
	var mu sync.Mutex
	next := 0
	return func([]Message, []ToolDefinition) ([]StreamChunk, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(responses) {
			return nil, nil
		}
		r := responses[next]
		next++
		return r, nil
	}
}

// ObjectsByName returns an ObjectFunc answering each schema name with the
// JSON encoding of the mapped value. Unknown names fail.
func ObjectsByName(objects map[string]any) func([]Message, ObjectSchema) (json.RawMessage, error) {
	return func(_ []Message, schema ObjectSchema) (json.RawMessage, error) {
		v, ok := objects[schema.Name]
		if !ok {
			return nil, errors.Errorf("no scripted object for schema %q", schema.Name)
		}
		if err, ok := v.(error); ok {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// TextChunks splits text into stream chunks of at most size bytes.
func TextChunks(text string, size int) []StreamChunk {
	if size <= 0 {
		size = len(text)
	}
	var out []StreamChunk
	for len(text) > 0 {
		n := size
		if n > len(text) {
			n = len(text)
		}
		out = append(out, StreamChunk{Content: text[:n]})
		text = text[n:]
	}
	return out
}

// ToolCallChunks renders a tool call as a sequence of fragments the way
// streaming providers do: id and name first, then the arguments in pieces.
func ToolCallChunks(index int, id, name string, args any) []StreamChunk {
	b, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	s := string(b)
	out := []StreamChunk{{ToolCalls: []ToolCallFragment{{Index: index, ID: id, Name: name}}}}
	for len(s) > 0 {
		n := 7
		if n > len(s) {
			n = len(s)
		}
		out = append(out, StreamChunk{ToolCalls: []ToolCallFragment{{Index: index, Arguments: s[:n]}}})
		s = s[n:]
	}
	return out
}
