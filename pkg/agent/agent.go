// Package agent coordinates one answer turn: classification, widgets and
// research in parallel, then a streamed, cited answer.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/scout/pkg/actions"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/classifier"
	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/prompts"
	"github.com/go-go-golems/scout/pkg/researcher"
	"github.com/go-go-golems/scout/pkg/session"
	"github.com/go-go-golems/scout/pkg/store"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/go-go-golems/scout/pkg/widgets"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultSuggestionCount = 4

// Input describes one turn.
type Input struct {
	ChatID    string
	MessageID string
	Query     string
	History   []llm.Message
	Config    turns.Config
}

type Dependencies struct {
	Generator llm.Generator
	// Store is optional. Without it turns are not persisted.
	Store   store.Store
	Intents *intents.Registry
	Widgets *widgets.Registry
	Actions *actions.Registry
}

type SearchAgent struct {
	gen             llm.Generator
	store           store.Store
	classifier      *classifier.Classifier
	widgets         *widgets.Executor
	researcher      *researcher.Researcher
	suggestionCount int
	now             func() time.Time
}

type Option func(*SearchAgent)

func WithSuggestionCount(n int) Option {
	return func(a *SearchAgent) {
		if n > 0 {
			a.suggestionCount = n
		}
	}
}

func New(deps Dependencies, options ...Option) (*SearchAgent, error) {
	if deps.Generator == nil {
		return nil, errors.New("agent needs a generator")
	}
	if deps.Intents == nil || deps.Actions == nil {
		return nil, errors.New("agent needs intent and action registries")
	}
	if deps.Widgets == nil {
		deps.Widgets = widgets.NewRegistry()
	}
	a := &SearchAgent{
		gen:             deps.Generator,
		store:           deps.Store,
		classifier:      classifier.New(deps.Generator, deps.Intents, deps.Widgets),
		widgets:         widgets.NewExecutor(deps.Widgets),
		researcher:      researcher.New(deps.Generator, deps.Actions),
		suggestionCount: DefaultSuggestionCount,
		now:             time.Now,
	}
	for _, o := range options {
		o(a)
	}
	return a, nil
}

// registerTurn records the turn as answering. Re-answering an earlier message
// drops every later message of the chat.
func (a *SearchAgent) registerTurn(ctx context.Context, in Input) error {
	if a.store == nil {
		return nil
	}
	existing, err := a.store.GetMessage(ctx, in.ChatID, in.MessageID)
	switch {
	case err == nil:
		if err := a.store.DeleteMessagesAfter(ctx, in.ChatID, existing.ID); err != nil {
			return errors.Wrap(err, "truncate chat")
		}
		return errors.Wrap(
			a.store.UpdateMessage(ctx, in.ChatID, in.MessageID, store.StatusAnswering, []blocks.Block{}),
			"reset message")
	case errors.Is(err, store.ErrNotFound):
		sources := make([]string, 0, len(in.Config.Sources))
		for _, s := range in.Config.Sources {
			sources = append(sources, string(s))
		}
		if _, err := a.store.EnsureChat(ctx, store.Chat{
			ID:        in.ChatID,
			Title:     in.Query,
			CreatedAt: a.now().UTC(),
			Sources:   sources,
			Files:     in.Config.FileIDs,
		}); err != nil {
			return errors.Wrap(err, "create chat")
		}
		_, err := a.store.InsertMessage(ctx, store.Message{
			ChatID:    in.ChatID,
			MessageID: in.MessageID,
			BackendID: uuid.NewString(),
			Query:     in.Query,
			CreatedAt: a.now().UTC(),
			Status:    store.StatusAnswering,
			Blocks:    []blocks.Block{},
		})
		return errors.Wrap(err, "insert message")
	default:
		return errors.Wrap(err, "lookup message")
	}
}

func (a *SearchAgent) persist(ctx context.Context, in Input, status store.Status, sink session.Sink) {
	if a.store == nil {
		return
	}
	// the turn context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	if err := a.store.UpdateMessage(ctx, in.ChatID, in.MessageID, status, sink.GetAllBlocks()); err != nil {
		log.Error().Err(err).
			Str("chat_id", in.ChatID).
			Str("message_id", in.MessageID).
			Msg("failed to persist message")
	}
}

func (a *SearchAgent) fail(ctx context.Context, in Input, sink session.Sink, err error) error {
	log.Error().Err(err).Str("chat_id", in.ChatID).Str("message_id", in.MessageID).Msg("turn failed")
	sink.Emit(session.EventError, session.ErrorData{Message: err.Error()})
	a.persist(ctx, in, store.StatusError, sink)
	return err
}

// Run answers one turn. Everything it produces goes to sink; it returns once
// the turn is persisted. Any returned error was also emitted as an error event.
func (a *SearchAgent) Run(ctx context.Context, sink session.Sink, in Input) error {
	if in.MessageID == "" {
		in.MessageID = uuid.NewString()
	}
	if in.ChatID == "" {
		in.ChatID = uuid.NewString()
	}
	in.Config.Mode = turns.ParseMode(string(in.Config.Mode))

	log.Info().
		Str("chat_id", in.ChatID).
		Str("message_id", in.MessageID).
		Str("mode", string(in.Config.Mode)).
		Msg("starting turn")

	if err := a.registerTurn(ctx, in); err != nil {
		sink.Emit(session.EventError, session.ErrorData{Message: err.Error()})
		return err
	}

	cls, err := a.classifier.Classify(ctx, classifier.Input{
		Query:   in.Query,
		History: in.History,
		Config:  in.Config,
	})
	if err != nil {
		return a.fail(ctx, in, sink, err)
	}

	var (
		widgetOutputs []widgets.Output
		research      researcher.Result
		researchErr   error
	)

	var g errgroup.Group
	if a.widgets.ShouldRun(cls) {
		g.Go(func() error {
			widgetOutputs = a.widgets.Execute(ctx, widgets.Input{
				Classification: cls,
				Query:          cls.StandaloneFollowUp,
				History:        in.History,
				Generator:      a.gen,
			})
			for _, o := range widgetOutputs {
				sink.EmitBlock(blocks.NewWidgetBlock(o.Type, o.Data))
			}
			return nil
		})
	}
	if !cls.SkipSearch {
		researchBlock := blocks.NewResearchBlock()
		sink.EmitBlock(researchBlock)
		trace := actions.NewTrace(sink, researchBlock.ID)
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					researchErr = errors.Errorf("research panicked: %v", p)
				}
			}()
			research, researchErr = a.researcher.Run(ctx, researcher.Input{
				Query:          cls.StandaloneFollowUp,
				History:        in.History,
				Config:         in.Config,
				Classification: cls,
				Trace:          trace,
			})
			return nil
		})
	}
	_ = g.Wait()

	if researchErr != nil {
		if errors.Is(researchErr, researcher.ErrToolSequence) {
			return a.fail(ctx, in, sink, researchErr)
		}
		log.Warn().Err(researchErr).Msg("research ended early, answering with partial results")
	}

	wc := BuildContext(research.Chunks(), widgetOutputs)
	if len(wc.Sources) > 0 {
		sink.EmitBlock(blocks.NewSourceBlock(wc.Sources))
	}
	sink.Emit(session.EventResearchComplete, nil)

	answer, err := a.write(ctx, in, sink, wc)
	if err != nil {
		return a.fail(ctx, in, sink, err)
	}

	if in.Config.Suggestions {
		suggestions, err := a.suggest(ctx, in, answer)
		if err != nil {
			log.Warn().Err(err).Msg("failed to generate suggestions")
		} else if len(suggestions) > 0 {
			sink.EmitBlock(blocks.NewSuggestionBlock(suggestions))
		}
	}

	sink.Emit(session.EventMessageEnd, nil)
	a.persist(ctx, in, store.StatusCompleted, sink)
	log.Info().
		Str("chat_id", in.ChatID).
		Str("message_id", in.MessageID).
		Int("sources", len(wc.Sources)).
		Int("widgets", len(widgetOutputs)).
		Msg("turn completed")
	return nil
}

// write streams the answer into a text block that is created on the first
// content chunk and patched on every following one.
func (a *SearchAgent) write(ctx context.Context, in Input, sink session.Sink, wc WriterContext) (string, error) {
	system, err := prompts.Writer(prompts.WriterData{
		Date:               a.now(),
		Mode:               string(in.Config.Mode),
		SearchResults:      wc.SearchResults,
		WidgetContext:      wc.WidgetContext,
		SystemInstructions: in.Config.SystemInstructions,
	})
	if err != nil {
		return "", err
	}
	messages := make([]llm.Message, 0, len(in.History)+2)
	messages = append(messages, llm.NewSystemMessage(system))
	messages = append(messages, in.History...)
	messages = append(messages, llm.NewUserMessage(in.Query))

	stream, err := a.gen.StreamText(ctx, messages, nil)
	if err != nil {
		return "", &GenerationStreamError{Err: err}
	}

	var textBlockID string
	var patchErr error
	content, _, err := llm.Collect(ctx, stream, func(chunk llm.StreamChunk, content string, _ *llm.ToolCallMerger) {
		if chunk.Content == "" || patchErr != nil {
			return
		}
		if textBlockID == "" {
			b := blocks.NewTextBlock(content)
			textBlockID = b.ID
			sink.EmitBlock(b)
			return
		}
		patchErr = sink.UpdateBlock(textBlockID, []blocks.PatchOp{blocks.ReplaceData(content)})
	})
	if err != nil {
		return content, &GenerationStreamError{Err: err}
	}
	if patchErr != nil {
		return content, &GenerationStreamError{Err: patchErr}
	}
	return strings.TrimSpace(content), nil
}
