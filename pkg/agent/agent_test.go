package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-go-golems/scout/pkg/actions"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/classifier"
	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/search"
	"github.com/go-go-golems/scout/pkg/session"
	"github.com/go-go-golems/scout/pkg/store"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/go-go-golems/scout/pkg/widgets"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	fn func(query string) (*search.Response, error)
}

func (f *fakeSearch) Search(_ context.Context, query string, _ search.Options) (*search.Response, error) {
	if f.fn == nil {
		return &search.Response{}, nil
	}
	return f.fn(query)
}

func resultsFor(prefix string, n int) *search.Response {
	resp := &search.Response{}
	for i := 0; i < n; i++ {
		resp.Results = append(resp.Results, search.Result{
			Title:   fmt.Sprintf("%s %d", prefix, i),
			URL:     fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			Content: fmt.Sprintf("about %s", prefix),
		})
	}
	return resp
}

func newAgent(t *testing.T, gen llm.Generator, provider search.Provider, st store.Store) *SearchAgent {
	intentRegistry := intents.NewBuiltinRegistry()
	actionRegistry, err := actions.NewBuiltinRegistry(intentRegistry, actions.Dependencies{Search: provider})
	require.NoError(t, err)
	a, err := New(Dependencies{
		Generator: gen,
		Store:     st,
		Intents:   intentRegistry,
		Widgets:   widgets.NewBuiltinRegistry(nil, widgets.URLs{}),
		Actions:   actionRegistry,
	})
	require.NoError(t, err)
	return a
}

func classification(skipSearch bool, query string, intentNames []string, ws []map[string]any) map[string]any {
	if ws == nil {
		ws = []map[string]any{}
	}
	return map[string]any{
		"skipSearch":         skipSearch,
		"standaloneFollowUp": query,
		"intents":            intentNames,
		"widgets":            ws,
	}
}

func blocksOfType(bs []blocks.Block, t blocks.Type) []blocks.Block {
	var out []blocks.Block
	for _, b := range bs {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

func eventTypes(s *session.Session) []session.EventType {
	var out []session.EventType
	for _, ev := range s.History() {
		out = append(out, ev.Type)
	}
	return out
}

func TestCalculationOnlyTurnSkipsResearch(t *testing.T) {
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: classification(true, "What's 12% of 250?",
				[]string{"widget_response"},
				[]map[string]any{{"type": widgets.TypeCalculation, "params": map[string]any{"expression": "12% of 250"}}}),
		}),
		StreamFunc: llm.ScriptedStreams(llm.TextChunks("12% of 250 is 30.", 5)),
	}
	provider := &fakeSearch{fn: func(string) (*search.Response, error) {
		t.Error("search must not run")
		return nil, errors.New("unexpected")
	}}
	st := store.NewMemoryStore()
	s := session.New()
	defer func() { _ = s.Close() }()

	err := newAgent(t, gen, provider, st).Run(context.Background(), s, Input{
		ChatID:    "chat",
		MessageID: "m1",
		Query:     "What's 12% of 250?",
		Config:    turns.Config{Mode: turns.ModeBalanced, Sources: []turns.Source{turns.SourceWeb}},
	})
	require.NoError(t, err)

	// the writer is the only streaming call
	assert.Equal(t, 1, gen.CallCount("StreamText"))

	all := s.GetAllBlocks()
	assert.Empty(t, blocksOfType(all, blocks.TypeResearch))
	assert.Empty(t, blocksOfType(all, blocks.TypeSource))

	ws := blocksOfType(all, blocks.TypeWidget)
	require.Len(t, ws, 1)
	data, err := ws[0].Widget()
	require.NoError(t, err)
	assert.Equal(t, widgets.TypeCalculation, data.WidgetType)
	params, ok := data.Params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), params["result"])

	texts := blocksOfType(all, blocks.TypeText)
	require.Len(t, texts, 1)
	text, err := texts[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "12% of 250 is 30.", text)

	writer := gen.Calls()[len(gen.Calls())-1]
	assert.Contains(t, writer.Messages[0].Content, "calculation widget evaluated")
	assert.NotContains(t, writer.Messages[0].Content, "<search_results>")

	types := eventTypes(s)
	assert.Equal(t, session.EventMessageEnd, types[len(types)-1])
	assert.Contains(t, types, session.EventResearchComplete)

	msg, err := st.GetMessage(context.Background(), "chat", "m1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, msg.Status)
	assert.Len(t, msg.Blocks, len(all))
}

func TestResearchTurnCitesSources(t *testing.T) {
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: classification(false, "latest go release", []string{"web_search"}, nil),
		}),
		StreamFunc: llm.ScriptedStreams(
			llm.ToolCallChunks(0, "c1", actions.ActionWebSearch, map[string]any{"queries": []string{"go release"}}),
			llm.ToolCallChunks(0, "c2", actions.ActionDone, map[string]any{}),
			llm.TextChunks("Go 1.x is out [1].", 4),
		),
	}
	provider := &fakeSearch{fn: func(q string) (*search.Response, error) { return resultsFor(q, 2), nil }}
	s := session.New()
	defer func() { _ = s.Close() }()

	err := newAgent(t, gen, provider, nil).Run(context.Background(), s, Input{
		Query:  "what's new in go?",
		Config: turns.Config{Mode: turns.ModeSpeed, Sources: []turns.Source{turns.SourceWeb}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.CallCount("StreamText"))

	all := s.GetAllBlocks()
	research := blocksOfType(all, blocks.TypeResearch)
	require.Len(t, research, 1)
	rd, err := research[0].Research()
	require.NoError(t, err)
	require.Len(t, rd.SubSteps, 2)
	assert.Equal(t, blocks.SubStepSearching, rd.SubSteps[0].Type)
	assert.Equal(t, blocks.SubStepSearchResults, rd.SubSteps[1].Type)

	sources := blocksOfType(all, blocks.TypeSource)
	require.Len(t, sources, 1)
	chunks, err := sources[0].Sources()
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	writer := gen.Calls()[len(gen.Calls())-1]
	system := writer.Messages[0].Content
	assert.Contains(t, system, `<result index="1" title="go release 0" url="https://example.com/go release/0">`)
	assert.Contains(t, system, `<result index="2"`)
	last := writer.Messages[len(writer.Messages)-1]
	assert.Equal(t, "what's new in go?", last.Content)
}

func TestClassificationFailureEndsTurn(t *testing.T) {
	gen := &llm.FakeGenerator{ObjectFunc: llm.ObjectsByName(map[string]any{
		classifier.SchemaName: errors.New("model unavailable"),
	})}
	st := store.NewMemoryStore()
	s := session.New()
	defer func() { _ = s.Close() }()

	err := newAgent(t, gen, &fakeSearch{}, st).Run(context.Background(), s, Input{
		ChatID: "chat", MessageID: "m1", Query: "q",
		Config: turns.Config{Sources: []turns.Source{turns.SourceWeb}},
	})
	var clsErr *classifier.Error
	require.ErrorAs(t, err, &clsErr)
	assert.Equal(t, 0, gen.CallCount("StreamText"))

	types := eventTypes(s)
	require.NotEmpty(t, types)
	assert.Equal(t, session.EventError, types[len(types)-1])

	msg, err := st.GetMessage(context.Background(), "chat", "m1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, msg.Status)
}

func TestAnswerStreamFailureKeepsPartialText(t *testing.T) {
	stream := append(llm.TextChunks("partial", 3), llm.StreamChunk{Err: errors.New("connection reset")})
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: classification(true, "hello", []string{"writing_task"}, nil),
		}),
		StreamFunc: llm.ScriptedStreams(stream),
	}
	st := store.NewMemoryStore()
	s := session.New()
	defer func() { _ = s.Close() }()

	err := newAgent(t, gen, &fakeSearch{}, st).Run(context.Background(), s, Input{
		ChatID: "chat", MessageID: "m1", Query: "hello",
	})
	var streamErr *GenerationStreamError
	require.ErrorAs(t, err, &streamErr)

	texts := blocksOfType(s.GetAllBlocks(), blocks.TypeText)
	require.Len(t, texts, 1)
	text, err := texts[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "partial", text)

	msg, err := st.GetMessage(context.Background(), "chat", "m1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, msg.Status)
	assert.Len(t, msg.Blocks, 1)
}

func TestReansweringTruncatesLaterMessages(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_, err := st.EnsureChat(ctx, store.Chat{ID: "chat", Title: "first"})
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := st.InsertMessage(ctx, store.Message{ChatID: "chat", MessageID: id, Query: id, Status: store.StatusCompleted})
		require.NoError(t, err)
	}

	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: classification(true, "again", []string{"writing_task"}, nil),
		}),
		StreamFunc: llm.ScriptedStreams(llm.TextChunks("done", 10)),
	}
	s := session.New()
	defer func() { _ = s.Close() }()

	require.NoError(t, newAgent(t, gen, &fakeSearch{}, st).Run(ctx, s, Input{
		ChatID: "chat", MessageID: "m2", Query: "again",
	}))

	msgs, err := st.ListMessages(ctx, "chat")
	require.NoError(t, err)
	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.MessageID)
	}
	assert.Equal(t, []string{"m1", "m2"}, ids)
	assert.Equal(t, store.StatusCompleted, msgs[1].Status)
	assert.Len(t, msgs[1].Blocks, 1)
}

func TestSuggestionsBlock(t *testing.T) {
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: classification(true, "tell me a joke", []string{"writing_task"}, nil),
			suggestionsSchemaName: map[string]any{"suggestions": []string{" another one? ", "", "why is it funny?"}},
		}),
		StreamFunc: llm.ScriptedStreams(llm.TextChunks("A joke.", 3)),
	}
	s := session.New()
	defer func() { _ = s.Close() }()

	require.NoError(t, newAgent(t, gen, &fakeSearch{}, nil).Run(context.Background(), s, Input{
		Query:  "tell me a joke",
		Config: turns.Config{Suggestions: true},
	}))

	suggestions := blocksOfType(s.GetAllBlocks(), blocks.TypeSuggestion)
	require.Len(t, suggestions, 1)
	list, err := suggestions[0].Suggestions()
	require.NoError(t, err)
	assert.Equal(t, []string{"another one?", "why is it funny?"}, list)
}

func TestFailingSuggestionsAreIgnored(t *testing.T) {
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: classification(true, "hi", []string{"writing_task"}, nil),
		}),
		StreamFunc: llm.ScriptedStreams(llm.TextChunks("Hello!", 3)),
	}
	s := session.New()
	defer func() { _ = s.Close() }()

	require.NoError(t, newAgent(t, gen, &fakeSearch{}, nil).Run(context.Background(), s, Input{
		Query:  "hi",
		Config: turns.Config{Suggestions: true},
	}))
	assert.Empty(t, blocksOfType(s.GetAllBlocks(), blocks.TypeSuggestion))
}

func TestBuildContext(t *testing.T) {
	chunks := []turns.Chunk{
		turns.NewChunk(" first ", "A", "https://a"),
		turns.NewChunk("second", "B", "https://b"),
	}
	wc := BuildContext(chunks, []widgets.Output{
		{Type: "weather", LLMContext: "It is 20°C in Paris."},
		{Type: "stock", LLMContext: "  "},
	})
	assert.Equal(t,
		"<result index=\"1\" title=\"A\" url=\"https://a\">\nfirst\n</result>\n"+
			"<result index=\"2\" title=\"B\" url=\"https://b\">\nsecond\n</result>\n",
		wc.SearchResults)
	assert.Equal(t, "<widget type=\"weather\">\nIt is 20°C in Paris.\n</widget>\n", wc.WidgetContext)
	assert.True(t, strings.HasPrefix(wc.SearchResults, "<result index=\"1\""))
}
