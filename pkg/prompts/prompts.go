// Package prompts renders the system prompts of the classifier, the
// researcher, the writer and the suggestion generator.
package prompts

import (
	"bytes"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

const classifierTemplate = `You classify the latest user message of a conversation for an answer engine.
Today is {{ .Date }}.

Decide:
- skipSearch: true when the message needs no retrieval at all (greetings, writing tasks,
  questions fully answered by a widget, or questions about earlier answers in the conversation).
- standaloneFollowUp: the latest message rewritten so it is understandable without the conversation.
- intents: every intent below that applies. Only use listed names.
- widgets: every widget below that should run, with whatever params you can already fill in.

Available intents:
{{ .Intents | trim }}

Available widgets:
{{ if .Widgets }}{{ .Widgets | trim }}{{ else }}(none){{ end }}
`

const researcherTemplate = `You are the research step of an answer engine. You gather information with the
available actions so that a writer can answer the user's question with citations.
Today is {{ .Date }}. Mode: {{ .Mode }}. This is iteration {{ add .Iteration 1 }} of at most {{ .MaxIterations }}.
{{- if eq (toString .Mode) "speed" }}
Be quick: one round of searches is usually enough, then call done.
{{- else if eq (toString .Mode) "quality" }}
Be thorough: cover every aspect of the question, read the most relevant pages in full and
follow up on gaps before calling done.
{{- end }}

Question: {{ .Query }}

Available actions:
{{ .Actions | trim }}

Rules:
- Call actions as tools. Several calls in one step run in parallel.
{{- if .HasPlan }}
- Start every step with a plan call explaining what you know and what you do next.
{{- end }}
- Search queries are short keyword phrases, at most 3 per call.
- Call done as soon as the results are enough to answer, or when more searching will not help.
`

const writerTemplate = `You are a helpful answer engine. Answer the user's question using the context below.
Today is {{ .Date }}.

Guidelines:
- Write a well structured markdown answer{{ if eq (toString .Mode) "quality" }} that is thorough and detailed{{ end }}.
- Cite search results with their number in square brackets, e.g. [1] or [2][4], right after the
  sentence they support. Only cite numbers that appear in the search results.
- Widget results are already displayed to the user. Use them but never cite them.
- If the context does not contain the answer, say so instead of guessing.
{{- if .SystemInstructions }}

User instructions (follow them unless they conflict with the guidelines):
{{ .SystemInstructions | trim }}
{{- end }}

<context>
{{ if .SearchResults }}<search_results>
{{ .SearchResults | trim }}
</search_results>
{{ end -}}
{{ if .WidgetContext }}<widgets note="already shown to the user, not citable">
{{ .WidgetContext | trim }}
</widgets>
{{ end -}}
</context>
`

const suggestionsTemplate = `Suggest {{ .Count }} short follow-up questions the user could ask next, based on the
conversation. Each suggestion is a single question of at most 15 words, relevant and not already answered.
`

var templates = template.Must(template.New("prompts").Funcs(sprig.TxtFuncMap()).Parse(""))

func init() {
	for name, src := range map[string]string{
		"classifier":  classifierTemplate,
		"researcher":  researcherTemplate,
		"writer":      writerTemplate,
		"suggestions": suggestionsTemplate,
	} {
		template.Must(templates.New(name).Parse(src))
	}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "render %s prompt", name)
	}
	return buf.String(), nil
}

func today(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("Monday, January 2, 2006")
}

type ClassifierData struct {
	Date    time.Time
	Intents string
	Widgets string
}

func Classifier(d ClassifierData) (string, error) {
	return render("classifier", map[string]any{
		"Date":    today(d.Date),
		"Intents": d.Intents,
		"Widgets": d.Widgets,
	})
}

type ResearcherData struct {
	Date          time.Time
	Mode          string
	Iteration     int
	MaxIterations int
	Query         string
	Actions       string
	HasPlan       bool
}

func Researcher(d ResearcherData) (string, error) {
	return render("researcher", map[string]any{
		"Date":          today(d.Date),
		"Mode":          d.Mode,
		"Iteration":     d.Iteration,
		"MaxIterations": d.MaxIterations,
		"Query":         d.Query,
		"Actions":       d.Actions,
		"HasPlan":       d.HasPlan,
	})
}

type WriterData struct {
	Date               time.Time
	Mode               string
	SearchResults      string
	WidgetContext      string
	SystemInstructions string
}

func Writer(d WriterData) (string, error) {
	return render("writer", map[string]any{
		"Date":               today(d.Date),
		"Mode":               d.Mode,
		"SearchResults":      d.SearchResults,
		"WidgetContext":      d.WidgetContext,
		"SystemInstructions": d.SystemInstructions,
	})
}

func Suggestions(count int) (string, error) {
	return render("suggestions", map[string]any{"Count": count})
}
