package actions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
)

type Registry struct {
	intents *intents.Registry

	mu    sync.RWMutex
	order []string
	defs  map[string]Definition
}

func NewRegistry(intentRegistry *intents.Registry) *Registry {
	return &Registry{intents: intentRegistry, defs: map[string]Definition{}}
}

func (r *Registry) Intents() *intents.Registry {
	return r.intents
}

// Register adds an action. Its intent must already be registered.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return errors.New("action name cannot be empty")
	}
	if d.Execute == nil {
		return errors.Errorf("action %s has no executor", d.Name)
	}
	if d.Intent != "" {
		if _, ok := r.intents.Get(d.Intent); !ok {
			return errors.Errorf("action %s references unknown intent %s", d.Name, d.Intent)
		}
	} else if d.RequiresIntent {
		return errors.Errorf("action %s requires an intent but names none", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[d.Name]; ok {
		return errors.Errorf("action %s already registered", d.Name)
	}
	r.order = append(r.order, d.Name)
	r.defs[d.Name] = d
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

// IsEnabled reports whether the action may run for the config and classification.
func (r *Registry) IsEnabled(d Definition, cfg turns.Config, c turns.Classification) bool {
	if !d.availableIn(cfg.Mode) {
		return false
	}
	if d.Intent == "" {
		return true
	}
	if !r.intents.IsEnabled(d.Intent, cfg) {
		return false
	}
	return !d.RequiresIntent || c.HasIntent(d.Intent)
}

// Enabled lists the actions available for the turn in registration order.
func (r *Registry) Enabled(cfg turns.Config, c turns.Classification) []Definition {
	var out []Definition
	for _, d := range r.List() {
		if r.IsEnabled(d, cfg, c) {
			out = append(out, d)
		}
	}
	return out
}

func ToolDefinitions(defs []Definition) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ToolDefinition())
	}
	return out
}

// Describe renders the actions for the researcher prompt.
func Describe(defs []Definition) string {
	var sb strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&sb, "<action name=%q>\n%s\n</action>\n", d.Name, strings.TrimSpace(d.Description))
	}
	return sb.String()
}
