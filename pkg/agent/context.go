package agent

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/go-go-golems/scout/pkg/widgets"
)

// WriterContext is the evidence handed to the writer. Search results are
// numbered from 1 in Sources order so the answer can cite them as [n].
type WriterContext struct {
	Sources       []turns.Chunk
	SearchResults string
	WidgetContext string
}

func BuildContext(chunks []turns.Chunk, widgetOutputs []widgets.Output) WriterContext {
	wc := WriterContext{Sources: chunks}

	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "<result index=\"%d\" title=%q url=%q>\n%s\n</result>\n",
			i+1, c.Title(), c.URL(), strings.TrimSpace(c.Content))
	}
	wc.SearchResults = sb.String()

	sb.Reset()
	for _, o := range widgetOutputs {
		if strings.TrimSpace(o.LLMContext) == "" {
			continue
		}
		fmt.Fprintf(&sb, "<widget type=%q>\n%s\n</widget>\n", o.Type, strings.TrimSpace(o.LLMContext))
	}
	wc.WidgetContext = sb.String()
	return wc
}
