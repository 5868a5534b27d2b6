// Package researcher runs the bounded tool-calling loop that gathers evidence
// for a turn.
package researcher

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-go-golems/scout/pkg/actions"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/prompts"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrToolSequence is returned when the conversation sent to the model has a
// tool message that does not answer a pending call. It is an orchestration bug.
var ErrToolSequence = errors.New("invalid tool message sequence")

type Input struct {
	Query          string
	History        []llm.Message
	Config         turns.Config
	Classification turns.Classification
	// Trace receives the research sub-steps. It may be nil.
	Trace *actions.Trace
}

type Result struct {
	// Outputs holds every search_results output in the order produced.
	Outputs    []actions.Output
	Iterations int
	// Messages is the conversation including the research exchange.
	Messages []llm.Message
}

// Chunks flattens the results of all outputs.
func (r Result) Chunks() []turns.Chunk {
	lists := make([][]turns.Chunk, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		lists = append(lists, o.Results)
	}
	return turns.FlattenChunks(lists...)
}

type Researcher struct {
	gen     llm.Generator
	actions *actions.Registry
	now     func() time.Time
}

func New(gen llm.Generator, registry *actions.Registry) *Researcher {
	return &Researcher{gen: gen, actions: registry, now: time.Now}
}

func (r *Researcher) systemPrompt(in Input, iteration int, enabled []actions.Definition) (string, error) {
	hasPlan := false
	for _, d := range enabled {
		if d.Kind == actions.KindPlan {
			hasPlan = true
		}
	}
	return prompts.Researcher(prompts.ResearcherData{
		Date:          r.now(),
		Mode:          string(in.Config.Mode),
		Iteration:     iteration,
		MaxIterations: in.Config.Mode.MaxIterations(),
		Query:         in.Query,
		Actions:       actions.Describe(enabled),
		HasPlan:       hasPlan,
	})
}

// planWatcher surfaces plan calls as a reasoning sub-step while the stream is
// still running. Repeated plan calls in one iteration overwrite the same step.
type planWatcher struct {
	trace  *actions.Trace
	stepID string
	last   string
}

func (p *planWatcher) observe(calls []llm.ToolCall) {
	text := ""
	for _, c := range calls {
		if c.Name != actions.ActionPlan {
			continue
		}
		var in actions.PlanInput
		if err := json.Unmarshal(c.Arguments, &in); err != nil {
			continue
		}
		if t := strings.TrimSpace(in.Plan); t != "" {
			text = t
		}
	}
	if text == "" || text == p.last {
		return
	}
	p.last = text
	p.stepID = p.trace.Upsert(p.stepID, blocks.SubStep{Type: blocks.SubStepReasoning, Reasoning: text})
}

func isDone(call llm.ToolCall) bool {
	return call.Name == actions.ActionDone
}

// Run iterates until the model calls done as its last action, requests no
// action at all, or the iteration cap of the mode is reached. A batch ending
// in done is not executed.
func (r *Researcher) Run(ctx context.Context, in Input) (Result, error) {
	enabled := r.actions.Enabled(in.Config, in.Classification)
	tools := actions.ToolDefinitions(enabled)
	maxIterations := in.Config.Mode.MaxIterations()

	history := make([]llm.Message, 0, len(in.History)+1)
	history = append(history, in.History...)
	history = append(history, llm.NewUserMessage(in.Query))

	res := Result{Outputs: []actions.Output{}}
	ec := actions.ExecContext{Config: in.Config, Classification: in.Classification, Trace: in.Trace}

	for i := 0; i < maxIterations; i++ {
		system, err := r.systemPrompt(in, i, enabled)
		if err != nil {
			res.Messages = history
			return res, err
		}
		messages := append([]llm.Message{llm.NewSystemMessage(system)}, history...)
		if err := llm.ValidateToolSequence(messages); err != nil {
			res.Messages = history
			return res, errors.Wrap(ErrToolSequence, err.Error())
		}

		stream, err := r.gen.StreamText(ctx, messages, tools)
		if err != nil {
			res.Messages = history
			return res, errors.Wrapf(err, "research iteration %d", i)
		}
		res.Iterations++

		watcher := &planWatcher{trace: in.Trace}
		content, calls, err := llm.Collect(ctx, stream, func(chunk llm.StreamChunk, _ string, m *llm.ToolCallMerger) {
			if len(chunk.ToolCalls) > 0 {
				watcher.observe(m.ToolCalls())
			}
		})
		if err != nil {
			res.Messages = history
			return res, errors.Wrapf(err, "research iteration %d", i)
		}
		watcher.observe(calls)

		log.Debug().
			Int("iteration", i).
			Int("tool_calls", len(calls)).
			Msg("research iteration streamed")

		if len(calls) == 0 {
			break
		}
		// done as the last call ends research; the rest of that batch is not run
		if isDone(calls[len(calls)-1]) {
			log.Debug().Int("iteration", i).Int("skipped_calls", len(calls)-1).Msg("research done")
			break
		}
		history = append(history, llm.NewAssistantMessage(content, calls...))

		results := r.actions.ExecuteAll(ctx, calls, ec)
		for _, result := range results {
			history = append(history, llm.NewToolMessage(result.Call.ID, result.Call.Name, result.Output.ToolContent()))
			if result.Output.Type == actions.OutputSearchResults {
				res.Outputs = append(res.Outputs, result.Output)
			}
		}
	}

	res.Messages = history
	log.Info().
		Int("iterations", res.Iterations).
		Int("outputs", len(res.Outputs)).
		Msg("research finished")
	return res, nil
}
