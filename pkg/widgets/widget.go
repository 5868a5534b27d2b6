// Package widgets runs structured side answers (weather, stock quote,
// calculation) next to the research loop. A widget never fails a turn: errors
// turn into a degraded Output.
package widgets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Output is what an executed widget contributes: Data is shown to the user,
// LLMContext is handed to the writer.
type Output struct {
	Type       string `json:"type"`
	Data       any    `json:"data"`
	LLMContext string `json:"llmContext"`
	Failed     bool   `json:"failed,omitempty"`
}

// Input is everything a widget may look at to resolve its parameters.
type Input struct {
	Classification turns.Classification
	Query          string
	History        []llm.Message
	Generator      llm.Generator
}

// Messages returns the conversation followed by the current query.
func (in Input) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(in.History)+1)
	out = append(out, in.History...)
	return append(out, llm.NewUserMessage(in.Query))
}

type Widget interface {
	Type() string
	Description() string
	// Schema describes the parameters the classifier may pass.
	Schema() *jsonschema.Schema
	ShouldExecute(c turns.Classification) bool
	// Execute returns nil when the widget decides it does not apply.
	Execute(ctx context.Context, in Input) (*Output, error)
}

type Error struct {
	Widget string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("widget %s: %v", e.Widget, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// selected is the common ShouldExecute: the classifier listed the widget.
func selected(widgetType string, c turns.Classification) bool {
	_, ok := c.Widget(widgetType)
	return ok
}

type Registry struct {
	mu      sync.RWMutex
	order   []string
	widgets map[string]Widget
}

func NewRegistry() *Registry {
	return &Registry{widgets: map[string]Widget{}}
}

func (r *Registry) Register(w Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.Type() == "" {
		return errors.New("widget type cannot be empty")
	}
	if _, ok := r.widgets[w.Type()]; ok {
		return errors.Errorf("widget %s already registered", w.Type())
	}
	r.order = append(r.order, w.Type())
	r.widgets[w.Type()] = w
	return nil
}

func (r *Registry) Get(widgetType string) (Widget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.widgets[widgetType]
	return w, ok
}

// List returns the widgets in registration order.
func (r *Registry) List() []Widget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Widget, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.widgets[t])
	}
	return out
}

// Describe renders every widget with its parameter schema for the classifier prompt.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, w := range r.List() {
		schema, err := json.Marshal(w.Schema())
		if err != nil {
			schema = []byte("{}")
		}
		fmt.Fprintf(&sb, "<widget type=%q>\n%s\nparams schema: %s\n</widget>\n", w.Type(), strings.TrimSpace(w.Description()), schema)
	}
	return sb.String()
}
