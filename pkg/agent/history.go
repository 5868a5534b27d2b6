package agent

import (
	"strings"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/store"
)

// HistoryFromMessages rebuilds the conversation preceding messageID from the
// persisted messages of a chat. Only completed messages contribute; the
// answer of each is the text of its text blocks.
func HistoryFromMessages(msgs []store.Message, messageID string) []llm.Message {
	var out []llm.Message
	for _, m := range msgs {
		if m.MessageID == messageID {
			break
		}
		if m.Status != store.StatusCompleted {
			continue
		}
		var answer strings.Builder
		for _, b := range m.Blocks {
			if b.Type != blocks.TypeText {
				continue
			}
			text, err := b.Text()
			if err != nil {
				continue
			}
			answer.WriteString(text)
		}
		out = append(out, llm.NewUserMessage(m.Query), llm.NewAssistantMessage(answer.String()))
	}
	return out
}
