// Package actions is the catalogue of operations the researcher can invoke as
// tools. Each action names the intent that gates it, so the classifier and the
// researcher always agree on what is available.
package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

type OutputType string

const (
	OutputSearchResults OutputType = "search_results"
	OutputReasoning     OutputType = "reasoning"
	OutputDone          OutputType = "done"
	OutputError         OutputType = "error"
)

type Output struct {
	Type      OutputType    `json:"type"`
	Results   []turns.Chunk `json:"results,omitempty"`
	Reasoning string        `json:"reasoning,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func SearchResults(results []turns.Chunk) Output {
	if results == nil {
		results = []turns.Chunk{}
	}
	return Output{Type: OutputSearchResults, Results: results}
}

func Reasoning(text string) Output {
	return Output{Type: OutputReasoning, Reasoning: text}
}

func Done() Output {
	return Output{Type: OutputDone}
}

func Failed(err error) Output {
	return Output{Type: OutputError, Error: err.Error()}
}

type toolResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// ToolContent renders the output as the content of a tool message.
func (o Output) ToolContent() string {
	switch o.Type {
	case OutputSearchResults:
		if len(o.Results) == 0 {
			return "No results found."
		}
		rs := make([]toolResult, 0, len(o.Results))
		for _, c := range o.Results {
			rs = append(rs, toolResult{Title: c.Title(), URL: c.URL(), Content: c.Content})
		}
		b, err := json.Marshal(rs)
		if err != nil {
			return fmt.Sprintf("%d results", len(o.Results))
		}
		return string(b)
	case OutputReasoning:
		return "Plan noted: " + o.Reasoning
	case OutputDone:
		return "Research finished."
	case OutputError:
		return "Error: " + o.Error
	default:
		return ""
	}
}

// ExecutionError is a failure of a single action call.
type ExecutionError struct {
	Action string
	CallID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %s (call %s): %v", e.Action, e.CallID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ExecContext is the per-turn state an action executes in.
type ExecContext struct {
	Config         turns.Config
	Classification turns.Classification
	Trace          *Trace
	CallID         string
}

type Kind string

const (
	KindSearch  Kind = "search"
	KindReading Kind = "reading"
	KindPlan    Kind = "plan"
	KindDone    Kind = "done"
)

type ExecuteFunc func(ctx context.Context, args json.RawMessage, ec ExecContext) (Output, error)

type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Kind        Kind
	// Intent gates the action. Empty means always available.
	Intent turns.IntentName
	// RequiresIntent also requires the classifier to have selected Intent.
	RequiresIntent bool
	// Modes restricts the action to the listed modes. Empty means all.
	Modes   []turns.Mode
	Execute ExecuteFunc
}

func (d Definition) availableIn(mode turns.Mode) bool {
	if len(d.Modes) == 0 {
		return true
	}
	for _, m := range d.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (d Definition) ToolDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
}

type DefinitionOption func(*Definition)

func WithIntent(intent turns.IntentName, required bool) DefinitionOption {
	return func(d *Definition) {
		d.Intent = intent
		d.RequiresIntent = required
	}
}

func WithKind(k Kind) DefinitionOption {
	return func(d *Definition) {
		d.Kind = k
	}
}

func WithModes(modes ...turns.Mode) DefinitionOption {
	return func(d *Definition) {
		d.Modes = modes
	}
}

// NewDefinition builds an action whose arguments decode into In. The tool
// schema is reflected from In and arguments are validated against it.
func NewDefinition[In any](
	name, description string,
	fn func(ctx context.Context, in In, ec ExecContext) (Output, error),
	options ...DefinitionOption,
) Definition {
	var zero In
	schema := llm.ReflectSchema(zero)
	d := Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Execute: func(ctx context.Context, args json.RawMessage, ec ExecContext) (Output, error) {
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			if err := llm.ValidateAgainstSchema(schema, args); err != nil {
				return Output{}, errors.Wrap(err, "invalid arguments")
			}
			var in In
			if err := json.Unmarshal(args, &in); err != nil {
				return Output{}, errors.Wrap(err, "decode arguments")
			}
			return fn(ctx, in, ec)
		},
	}
	for _, o := range options {
		o(&d)
	}
	return d
}
