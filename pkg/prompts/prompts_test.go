package prompts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestClassifierPrompt(t *testing.T) {
	p, err := Classifier(ClassifierData{Date: day, Intents: "<intent name=\"web_search\">x</intent>\n"})
	require.NoError(t, err)
	assert.Contains(t, p, "Wednesday, May 1, 2024")
	assert.Contains(t, p, `<intent name="web_search">`)
	assert.Contains(t, p, "(none)")
}

func TestResearcherPromptModes(t *testing.T) {
	speed, err := Researcher(ResearcherData{Date: day, Mode: "speed", Iteration: 0, MaxIterations: 2, Query: "q", Actions: "a"})
	require.NoError(t, err)
	assert.Contains(t, speed, "iteration 1 of at most 2")
	assert.Contains(t, speed, "Be quick")
	assert.NotContains(t, speed, "plan call")

	quality, err := Researcher(ResearcherData{Date: day, Mode: "quality", Iteration: 3, MaxIterations: 25, Query: "q", Actions: "a", HasPlan: true})
	require.NoError(t, err)
	assert.Contains(t, quality, "Be thorough")
	assert.Contains(t, quality, "plan call")
}

func TestWriterPrompt(t *testing.T) {
	p, err := Writer(WriterData{
		Date:               day,
		Mode:               "balanced",
		SearchResults:      "[1] Title\ncontent",
		WidgetContext:      "Weather in Paris",
		SystemInstructions: "Answer in French.",
	})
	require.NoError(t, err)
	assert.Contains(t, p, "<search_results>\n[1] Title")
	assert.Contains(t, p, "not citable")
	assert.Contains(t, p, "Answer in French.")

	bare, err := Writer(WriterData{Date: day})
	require.NoError(t, err)
	assert.NotContains(t, bare, "<search_results>")
	assert.NotContains(t, bare, "User instructions")
}
