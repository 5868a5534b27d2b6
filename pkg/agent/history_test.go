package agent

import (
	"testing"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/store"
	"github.com/stretchr/testify/assert"
)

func TestHistoryFromMessages(t *testing.T) {
	msgs := []store.Message{
		{MessageID: "m1", Query: "first", Status: store.StatusCompleted, Blocks: []blocks.Block{
			blocks.NewSourceBlock(nil),
			blocks.NewTextBlock("answer one"),
		}},
		{MessageID: "m2", Query: "broken", Status: store.StatusError},
		{MessageID: "m3", Query: "current", Status: store.StatusAnswering},
		{MessageID: "m4", Query: "later", Status: store.StatusCompleted},
	}
	history := HistoryFromMessages(msgs, "m3")
	assert.Equal(t, []llm.Message{
		llm.NewUserMessage("first"),
		llm.NewAssistantMessage("answer one"),
	}, history)

	assert.Len(t, HistoryFromMessages(msgs, "new"), 4)
}
