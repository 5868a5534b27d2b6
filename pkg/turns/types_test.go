package turns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeMaxIterations(t *testing.T) {
	assert.Equal(t, 2, ModeSpeed.MaxIterations())
	assert.Equal(t, 6, ModeBalanced.MaxIterations())
	assert.Equal(t, 25, ModeQuality.MaxIterations())
	assert.Equal(t, 6, Mode("turbo").MaxIterations())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSpeed, ParseMode(" Speed "))
	assert.Equal(t, ModeQuality, ParseMode("quality"))
	assert.Equal(t, ModeBalanced, ParseMode(""))
}

func TestClassificationLookups(t *testing.T) {
	c := Classification{
		Intents: []IntentName{IntentWebSearch},
		Widgets: []WidgetInvocation{{Type: "weather", Params: map[string]any{"location": "Paris"}}},
	}
	assert.True(t, c.HasIntent(IntentWebSearch))
	assert.False(t, c.HasIntent(IntentAcademicSearch))

	w, ok := c.Widget("weather")
	assert.True(t, ok)
	assert.Equal(t, "Paris", w.Params["location"])
	_, ok = c.Widget("stock")
	assert.False(t, ok)
}

func TestChunkMetadata(t *testing.T) {
	c := NewChunk("body", "Title", "https://example.com")
	assert.Equal(t, "Title", c.Title())
	assert.Equal(t, "https://example.com", c.URL())
	assert.Equal(t, "", Chunk{}.URL())
}
