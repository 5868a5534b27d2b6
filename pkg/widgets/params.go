package widgets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/pkg/errors"
)

type extraction[P any] struct {
	NotApplicable bool `json:"notApplicable" jsonschema:"description=True when the conversation gives nothing this widget could answer"`
	Params        P    `json:"params"`
}

// resolveParams decodes the classifier's params for the widget. Params that do
// not match the schema are an error. When they are absent or incomplete the
// parameters are extracted from the conversation with a structured call.
// The bool result is false when the widget does not apply.
func resolveParams[P any](
	ctx context.Context,
	in Input,
	widgetType string,
	instructions string,
	complete func(P) bool,
) (P, bool, error) {
	var params P
	if inv, ok := in.Classification.Widget(widgetType); ok && len(inv.Params) > 0 {
		raw, err := json.Marshal(inv.Params)
		if err != nil {
			return params, false, errors.Wrap(err, "marshal params")
		}
		if err := llm.ValidateAgainstSchema(llm.ReflectSchema(params), raw); err != nil {
			return params, false, errors.Wrap(err, "invalid params")
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return params, false, errors.Wrap(err, "decode params")
		}
		if complete(params) {
			return params, true, nil
		}
	}

	if in.Generator == nil {
		return params, false, errors.New("params missing and no generator to extract them")
	}
	messages := append([]llm.Message{llm.NewSystemMessage(fmt.Sprintf(
		"You extract the parameters of the %s widget from a conversation.\n%s\n"+
			"Use the latest user message first and earlier messages only to fill gaps. "+
			"Set notApplicable to true if the widget cannot answer anything in the conversation.",
		widgetType, instructions))}, in.Messages()...)
	ex, err := llm.GenerateObject[extraction[P]](ctx, in.Generator, widgetType+"_params", messages)
	if err != nil {
		return params, false, errors.Wrap(err, "extract params")
	}
	if ex.NotApplicable {
		return params, false, nil
	}
	if !complete(ex.Params) {
		return params, false, errors.New("could not determine parameters")
	}
	return ex.Params, true, nil
}
