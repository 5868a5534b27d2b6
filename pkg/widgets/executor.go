package widgets

import (
	"context"
	"fmt"

	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Executor runs every applicable widget of a registry concurrently.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Degraded is the output of a widget that failed.
func Degraded(widgetType string, err error) Output {
	return Output{
		Type:   widgetType,
		Data:   map[string]any{"error": err.Error()},
		Failed: true,
		LLMContext: fmt.Sprintf(
			"The %s widget could not load its data (%v). Briefly apologize that this information is unavailable right now.",
			widgetType, err),
	}
}

func (e *Executor) runOne(ctx context.Context, w Widget, in Input) (out *Output) {
	defer func() {
		if r := recover(); r != nil {
			werr := &Error{Widget: w.Type(), Err: errors.Errorf("panic: %v", r)}
			log.Error().Err(werr).Msg("widget panicked")
			d := Degraded(w.Type(), werr.Err)
			out = &d
		}
	}()
	res, err := w.Execute(ctx, in)
	if err != nil {
		werr := &Error{Widget: w.Type(), Err: err}
		log.Warn().Err(werr).Msg("widget failed")
		d := Degraded(w.Type(), err)
		return &d
	}
	if res != nil && res.Type == "" {
		res.Type = w.Type()
	}
	return res
}

// Execute runs the widgets selected by the classification and joins on all of
// them. Outputs keep registration order. Failures never propagate.
func (e *Executor) Execute(ctx context.Context, in Input) []Output {
	ws := e.registry.List()
	results := make([]*Output, len(ws))

	var g errgroup.Group
	for i, w := range ws {
		if !w.ShouldExecute(in.Classification) {
			continue
		}
		i, w := i, w
		g.Go(func() error {
			results[i] = e.runOne(ctx, w, in)
			return nil
		})
	}
	_ = g.Wait()

	var out []Output
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	log.Debug().Int("widgets", len(out)).Msg("widgets executed")
	return out
}

// ShouldRun reports whether any registered widget applies to the classification.
func (e *Executor) ShouldRun(c turns.Classification) bool {
	for _, w := range e.registry.List() {
		if w.ShouldExecute(c) {
			return true
		}
	}
	return false
}
