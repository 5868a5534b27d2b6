package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ChunkHandler observes a stream after every chunk: the chunk itself, the
// accumulated content, and the merger holding the partial tool calls.
type ChunkHandler func(chunk StreamChunk, content string, merger *ToolCallMerger)

// Collect folds a stream into its final content and coalesced tool calls.
// It returns when the stream signals Done, is closed, fails, or ctx ends.
func Collect(ctx context.Context, stream <-chan StreamChunk, onChunk ChunkHandler) (string, []ToolCall, error) {
	merger := NewToolCallMerger()
	var content strings.Builder

	for {
		select {
		case <-ctx.Done():
			return content.String(), merger.ToolCalls(), ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				return content.String(), merger.ToolCalls(), nil
			}
			if chunk.Err != nil {
				return content.String(), merger.ToolCalls(), errors.Wrap(chunk.Err, "stream failed")
			}
			content.WriteString(chunk.Content)
			if len(chunk.ToolCalls) > 0 {
				merger.Add(chunk.ToolCalls...)
			}
			if onChunk != nil {
				onChunk(chunk, content.String(), merger)
			}
			if chunk.Done {
				return content.String(), merger.ToolCalls(), nil
			}
		}
	}
}
