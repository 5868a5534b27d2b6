package agent

import (
	"context"
	"strings"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/prompts"
)

const suggestionsSchemaName = "suggestions"

type suggestionsOutput struct {
	Suggestions []string `json:"suggestions" jsonschema:"description=Follow-up questions"`
}

func (a *SearchAgent) suggest(ctx context.Context, in Input, answer string) ([]string, error) {
	system, err := prompts.Suggestions(a.suggestionCount)
	if err != nil {
		return nil, err
	}
	messages := make([]llm.Message, 0, len(in.History)+3)
	messages = append(messages, llm.NewSystemMessage(system))
	messages = append(messages, in.History...)
	messages = append(messages, llm.NewUserMessage(in.Query), llm.NewAssistantMessage(answer))

	out, err := llm.GenerateObject[suggestionsOutput](ctx, a.gen, suggestionsSchemaName, messages)
	if err != nil {
		return nil, err
	}
	suggestions := make([]string, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
		if len(suggestions) == a.suggestionCount {
			break
		}
	}
	return suggestions, nil
}
