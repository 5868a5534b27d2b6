// Package intents is the catalogue of user needs the classifier can select.
// Every intent owns the enablement predicate for its source; actions refer to
// an intent instead of carrying their own predicate.
package intents

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
)

type Intent struct {
	Name        turns.IntentName
	Description string
	// RequiresSearch is false for intents answered without retrieval.
	RequiresSearch bool
	// Enabled reports whether the intent is available for a run. Nil means always.
	Enabled func(cfg turns.Config) bool
}

func (i Intent) IsEnabled(cfg turns.Config) bool {
	if i.Enabled == nil {
		return true
	}
	return i.Enabled(cfg)
}

type Registry struct {
	mu      sync.RWMutex
	order   []turns.IntentName
	intents map[turns.IntentName]Intent
}

func NewRegistry() *Registry {
	return &Registry{intents: map[turns.IntentName]Intent{}}
}

func (r *Registry) Register(i Intent) error {
	if i.Name == "" {
		return errors.New("intent name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intents[i.Name]; ok {
		return errors.Errorf("intent %s already registered", i.Name)
	}
	r.order = append(r.order, i.Name)
	r.intents[i.Name] = i
	return nil
}

func (r *Registry) MustRegister(i Intent) {
	if err := r.Register(i); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name turns.IntentName) (Intent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.intents[name]
	return i, ok
}

// IsEnabled reports whether name is registered and enabled for cfg.
func (r *Registry) IsEnabled(name turns.IntentName, cfg turns.Config) bool {
	i, ok := r.Get(name)
	return ok && i.IsEnabled(cfg)
}

// Enabled lists the intents available for cfg in registration order.
func (r *Registry) Enabled(cfg turns.Config) []Intent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Intent
	for _, name := range r.order {
		if i := r.intents[name]; i.IsEnabled(cfg) {
			out = append(out, i)
		}
	}
	return out
}

// Describe renders the enabled intents as a prompt section.
func (r *Registry) Describe(cfg turns.Config) string {
	var sb strings.Builder
	for _, i := range r.Enabled(cfg) {
		fmt.Fprintf(&sb, "<intent name=%q requires_search=\"%t\">\n%s\n</intent>\n", i.Name, i.RequiresSearch, strings.TrimSpace(i.Description))
	}
	return sb.String()
}

func sourceEnabled(s turns.Source) func(turns.Config) bool {
	return func(cfg turns.Config) bool {
		return cfg.HasSource(s)
	}
}

// NewBuiltinRegistry returns the registry with all built-in intents.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Intent{
		Name:           turns.IntentWebSearch,
		RequiresSearch: true,
		Enabled:        sourceEnabled(turns.SourceWeb),
		Description: `Questions that need current or factual information from the web: news, events, facts,
products, people, places, how-to guides. Select whenever the answer depends on information
you cannot be sure of without looking it up.`,
	})
	r.MustRegister(Intent{
		Name:           turns.IntentAcademicSearch,
		RequiresSearch: true,
		Enabled:        sourceEnabled(turns.SourceAcademic),
		Description: `Questions about scientific research, papers, studies or scholarly topics. Select when peer
reviewed or academic material would make the answer better.`,
	})
	r.MustRegister(Intent{
		Name:           turns.IntentDiscussionSearch,
		RequiresSearch: true,
		Enabled:        sourceEnabled(turns.SourceDiscussions),
		Description: `Questions where opinions, experiences or community discussions help: recommendations,
comparisons by real users, troubleshooting stories. Select when forum threads are valuable.`,
	})
	r.MustRegister(Intent{
		Name:           turns.IntentPrivateSearch,
		RequiresSearch: true,
		Enabled: func(cfg turns.Config) bool {
			return cfg.HasFiles()
		},
		Description: `Questions about the files the user uploaded. Select when the query refers to their documents
or could be answered from them.`,
	})
	r.MustRegister(Intent{
		Name:           turns.IntentWidgetResponse,
		RequiresSearch: false,
		Description: `The query is fully answered by one of the widgets (weather, stock quote, calculation).
Combine with skipSearch when nothing else is needed.`,
	})
	r.MustRegister(Intent{
		Name:           turns.IntentWritingTask,
		RequiresSearch: false,
		Description: `Writing, rewriting, summarizing, translating or greeting tasks that need no external
information. Combine with skipSearch.`,
	})
	return r
}
