package researcher

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-go-golems/scout/pkg/actions"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/search"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) (*search.Response, error)
}

func (f *fakeSearch) Search(_ context.Context, query string, _ search.Options) (*search.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.fn(query)
}

func resultsFor(prefix string, n int) *search.Response {
	resp := &search.Response{}
	for i := 0; i < n; i++ {
		resp.Results = append(resp.Results, search.Result{
			Title:   fmt.Sprintf("%s %d", prefix, i),
			URL:     fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			Content: "content",
		})
	}
	return resp
}

func newResearcher(t *testing.T, gen llm.Generator, provider search.Provider) *Researcher {
	registry, err := actions.NewBuiltinRegistry(intents.NewBuiltinRegistry(), actions.Dependencies{Search: provider})
	require.NoError(t, err)
	return New(gen, registry)
}

func config(mode turns.Mode) turns.Config {
	return turns.Config{Mode: mode, Sources: []turns.Source{turns.SourceWeb}}
}

func concat(parts ...[]llm.StreamChunk) []llm.StreamChunk {
	var out []llm.StreamChunk
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestSearchThenDoneRunsTwoIterations(t *testing.T) {
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 2), nil }}
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(
		llm.ToolCallChunks(0, "c1", actions.ActionWebSearch, map[string]any{"queries": []string{"X"}}),
		llm.ToolCallChunks(0, "c2", actions.ActionDone, map[string]any{}),
	)}

	res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{
		Query:  "X?",
		Config: config(turns.ModeSpeed),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, actions.OutputSearchResults, res.Outputs[0].Type)
	assert.Len(t, res.Chunks(), 2)
	assert.Equal(t, []string{"X"}, provider.queries)

	// plan is not offered in speed mode
	calls := gen.Calls()
	require.Len(t, calls, 2)
	for _, tool := range calls[0].Tools {
		assert.NotEqual(t, actions.ActionPlan, tool.Name)
	}
	// the second iteration sees the tool answer of the first
	second := calls[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
}

func TestDoneLastSkipsRestOfBatch(t *testing.T) {
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 2), nil }}
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(
		concat(
			llm.ToolCallChunks(0, "c1", actions.ActionWebSearch, map[string]any{"queries": []string{"X"}}),
			llm.ToolCallChunks(1, "c2", actions.ActionDone, map[string]any{}),
		),
	)}

	res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{
		Query:  "X?",
		Config: config(turns.ModeSpeed),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Outputs)
	assert.Empty(t, provider.queries)
	for _, m := range res.Messages {
		assert.NotEqual(t, llm.RoleTool, m.Role)
	}
}

func TestDoneBeforeOtherCallsIsExecuted(t *testing.T) {
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 1), nil }}
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(
		concat(
			llm.ToolCallChunks(0, "c1", actions.ActionDone, map[string]any{}),
			llm.ToolCallChunks(1, "c2", actions.ActionWebSearch, map[string]any{"queries": []string{"Y"}}),
		),
	)}

	res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{
		Query:  "Y?",
		Config: config(turns.ModeSpeed),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, []string{"Y"}, provider.queries)
}

func TestFailingSearchIsIsolated(t *testing.T) {
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) {
		if q == "bad" {
			return nil, errors.New("engine down")
		}
		return resultsFor(q, 5), nil
	}}
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(
		concat(
			llm.ToolCallChunks(0, "c1", actions.ActionWebSearch, map[string]any{"queries": []string{"good"}}),
			llm.ToolCallChunks(1, "c2", actions.ActionWebSearch, map[string]any{"queries": []string{"bad"}}),
		),
	)}

	res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{
		Query:  "q",
		Config: config(turns.ModeBalanced),
	})
	require.NoError(t, err)
	// second iteration gets an empty response and stops
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Outputs, 1)
	assert.Len(t, res.Chunks(), 5)

	var errorMessages int
	for _, m := range res.Messages {
		if m.Role == llm.RoleTool && m.ToolCallID == "c2" {
			errorMessages++
			assert.Contains(t, m.Content, "Error:")
		}
	}
	assert.Equal(t, 1, errorMessages)
}

func TestLoopIsBoundedWithoutDone(t *testing.T) {
	for _, mode := range []turns.Mode{turns.ModeSpeed, turns.ModeBalanced, turns.ModeQuality} {
		t.Run(string(mode), func(t *testing.T) {
			provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 1), nil }}
			n := 0
			var mu sync.Mutex
			gen := &llm.FakeGenerator{StreamFunc: func([]llm.Message, []llm.ToolDefinition) ([]llm.StreamChunk, error) {
				mu.Lock()
				defer mu.Unlock()
				n++
				return llm.ToolCallChunks(0, fmt.Sprintf("c%d", n), actions.ActionWebSearch, map[string]any{"queries": []string{"again"}}), nil
			}}
			res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{Query: "q", Config: config(mode)})
			require.NoError(t, err)
			assert.Equal(t, mode.MaxIterations(), res.Iterations)
			assert.Len(t, res.Outputs, mode.MaxIterations())
		})
	}
}

func TestNoToolCallsStopsImmediately(t *testing.T) {
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(llm.TextChunks("nothing to do", 4))}
	res, err := newResearcher(t, gen, &fakeSearch{}).Run(context.Background(), Input{Query: "q", Config: config(turns.ModeQuality)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Outputs)
}

func TestPlanSurfacesAsSingleReasoningStep(t *testing.T) {
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 1), nil }}
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(
		concat(
			llm.ToolCallChunks(0, "p1", actions.ActionPlan, map[string]any{"plan": "first idea"}),
			llm.ToolCallChunks(1, "p2", actions.ActionPlan, map[string]any{"plan": "better idea"}),
			llm.ToolCallChunks(2, "s1", actions.ActionWebSearch, map[string]any{"queries": []string{"topic"}}),
		),
		llm.ToolCallChunks(0, "d1", actions.ActionDone, map[string]any{}),
	)}
	trace := actions.NewTrace(nil, "research")

	res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{
		Query:  "q",
		Config: config(turns.ModeBalanced),
		Trace:  trace,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)

	var reasoning []blocks.SubStep
	for _, s := range trace.Steps() {
		if s.Type == blocks.SubStepReasoning {
			reasoning = append(reasoning, s)
		}
	}
	require.Len(t, reasoning, 1)
	assert.Equal(t, "better idea", reasoning[0].Reasoning)
	assert.Equal(t, blocks.SubStepReasoning, trace.Steps()[0].Type)
}

func TestInvalidToolSequenceIsFatal(t *testing.T) {
	gen := &llm.FakeGenerator{}
	_, err := newResearcher(t, gen, &fakeSearch{}).Run(context.Background(), Input{
		Query:   "q",
		History: []llm.Message{llm.NewToolMessage("orphan", "web_search", "{}")},
		Config:  config(turns.ModeSpeed),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolSequence))
	assert.Equal(t, 0, gen.CallCount("StreamText"))
}

func TestStreamFailureReturnsPartialResult(t *testing.T) {
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 1), nil }}
	gen := &llm.FakeGenerator{StreamFunc: llm.ScriptedStreams(
		llm.ToolCallChunks(0, "c1", actions.ActionWebSearch, map[string]any{"queries": []string{"x"}}),
		[]llm.StreamChunk{{Err: errors.New("connection reset")}},
	)}
	res, err := newResearcher(t, gen, provider).Run(context.Background(), Input{Query: "q", Config: config(turns.ModeBalanced)})
	require.Error(t, err)
	assert.Len(t, res.Outputs, 1)
}
