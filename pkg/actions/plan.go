package actions

import (
	"context"
	"strings"

	"github.com/go-go-golems/scout/pkg/turns"
)

const (
	ActionPlan = "plan"
	ActionDone = "done"
)

type PlanInput struct {
	Plan string `json:"plan" jsonschema:"description=What you know so far and what you will do next"`
}

type DoneInput struct{}

// NewPlan is the reasoning preamble. The researcher surfaces its argument as
// a reasoning sub-step while the call streams.
func NewPlan() Definition {
	return NewDefinition(ActionPlan,
		"Before acting, state briefly what you already know, what is missing and which actions you will take next. Call it together with the actions of this step.",
		func(_ context.Context, in PlanInput, _ ExecContext) (Output, error) {
			return Reasoning(strings.TrimSpace(in.Plan)), nil
		},
		WithKind(KindPlan),
		WithModes(turns.ModeBalanced, turns.ModeQuality),
	)
}

func NewDone() Definition {
	return NewDefinition(ActionDone,
		"Call when the gathered information is enough to answer the question, or when further searching will not help.",
		func(context.Context, DoneInput, ExecContext) (Output, error) {
			return Done(), nil
		},
		WithKind(KindDone),
	)
}
