// Package classifier turns a conversation and its latest query into a
// Classification with one structured generation call.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/prompts"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/go-go-golems/scout/pkg/widgets"
	"github.com/iancoleman/strcase"
	"github.com/rs/zerolog/log"
)

// SchemaName is the name of the structured output requested from the model.
const SchemaName = "classification"

// Error means the turn could not be classified. It is fatal for the turn.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type widgetRequest struct {
	Type   string         `json:"type" jsonschema:"description=Widget type from the list of available widgets"`
	Params map[string]any `json:"params,omitempty" jsonschema:"description=Widget parameters matching its params schema"`
}

type output struct {
	SkipSearch         bool            `json:"skipSearch" jsonschema:"description=True when no retrieval is needed for this message"`
	StandaloneFollowUp string          `json:"standaloneFollowUp" jsonschema:"description=The latest message rewritten to be understandable on its own"`
	Intents            []string        `json:"intents" jsonschema:"description=Names of the applicable intents"`
	Widgets            []widgetRequest `json:"widgets" jsonschema:"description=Widgets to run for this message"`
}

type Input struct {
	Query   string
	History []llm.Message
	Config  turns.Config
}

type Classifier struct {
	gen     llm.Generator
	intents *intents.Registry
	widgets *widgets.Registry
	now     func() time.Time
}

func New(gen llm.Generator, intentRegistry *intents.Registry, widgetRegistry *widgets.Registry) *Classifier {
	return &Classifier{gen: gen, intents: intentRegistry, widgets: widgetRegistry, now: time.Now}
}

// FormatConversation renders user and assistant turns as a plain transcript.
func FormatConversation(history []llm.Message) string {
	var sb strings.Builder
	for _, m := range history {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, strings.TrimSpace(m.Content))
	}
	return sb.String()
}

func (c *Classifier) messages(in Input) ([]llm.Message, error) {
	widgetDescriptions := ""
	if c.widgets != nil {
		widgetDescriptions = c.widgets.Describe()
	}
	system, err := prompts.Classifier(prompts.ClassifierData{
		Date:    c.now(),
		Intents: c.intents.Describe(in.Config),
		Widgets: widgetDescriptions,
	})
	if err != nil {
		return nil, err
	}
	user := fmt.Sprintf("<conversation>\n%s</conversation>\n<user_query>\n%s\n</user_query>",
		FormatConversation(in.History), in.Query)
	return []llm.Message{llm.NewSystemMessage(system), llm.NewUserMessage(user)}, nil
}

// Classify runs the classification call. Intents that are unknown or not
// enabled for the config and unknown widgets are dropped.
func (c *Classifier) Classify(ctx context.Context, in Input) (turns.Classification, error) {
	messages, err := c.messages(in)
	if err != nil {
		return turns.Classification{}, &Error{Err: err}
	}
	out, err := llm.GenerateObject[output](ctx, c.gen, SchemaName, messages)
	if err != nil {
		return turns.Classification{}, &Error{Err: err}
	}

	cls := turns.Classification{
		SkipSearch:         out.SkipSearch,
		StandaloneFollowUp: strings.TrimSpace(out.StandaloneFollowUp),
		Intents:            []turns.IntentName{},
		Widgets:            []turns.WidgetInvocation{},
	}
	if cls.StandaloneFollowUp == "" {
		cls.StandaloneFollowUp = in.Query
	}

	seen := map[turns.IntentName]bool{}
	for _, raw := range out.Intents {
		name := turns.IntentName(strcase.ToSnake(strings.TrimSpace(raw)))
		if seen[name] {
			continue
		}
		if !c.intents.IsEnabled(name, in.Config) {
			log.Debug().Str("intent", raw).Msg("dropping unknown or disabled intent")
			continue
		}
		seen[name] = true
		cls.Intents = append(cls.Intents, name)
	}

	seenWidgets := map[string]bool{}
	for _, w := range out.Widgets {
		t := strcase.ToSnake(strings.TrimSpace(w.Type))
		if seenWidgets[t] {
			continue
		}
		if c.widgets == nil {
			break
		}
		if _, ok := c.widgets.Get(t); !ok {
			log.Debug().Str("widget", w.Type).Msg("dropping unknown widget")
			continue
		}
		seenWidgets[t] = true
		cls.Widgets = append(cls.Widgets, turns.WidgetInvocation{Type: t, Params: w.Params})
	}

	log.Debug().
		Bool("skip_search", cls.SkipSearch).
		Str("standalone", cls.StandaloneFollowUp).
		Interface("intents", cls.Intents).
		Int("widgets", len(cls.Widgets)).
		Msg("classified query")
	return cls, nil
}
