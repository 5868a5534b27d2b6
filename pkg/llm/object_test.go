package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAnswer struct {
	Answer string   `json:"answer" jsonschema:"description=The answer"`
	Tags   []string `json:"tags,omitempty"`
}

func TestGenerateObjectDecodesValidOutput(t *testing.T) {
	f := &FakeGenerator{ObjectFunc: ObjectsByName(map[string]any{
		"answer": map[string]any{"answer": "42", "tags": []string{"math"}},
	})}
	out, err := GenerateObject[testAnswer](context.Background(), f, "answer", []Message{NewUserMessage("?")})
	require.NoError(t, err)
	assert.Equal(t, "42", out.Answer)
	assert.Equal(t, []string{"math"}, out.Tags)
	assert.Equal(t, 1, f.CallCount("GenerateJSON"))
}

func TestGenerateObjectRejectsSchemaViolation(t *testing.T) {
	f := &FakeGenerator{ObjectFunc: func([]Message, ObjectSchema) (json.RawMessage, error) {
		return json.RawMessage(`{"tags":"not-a-list"}`), nil
	}}
	_, err := GenerateObject[testAnswer](context.Background(), f, "answer", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaValidation)
}

func TestGenerateObjectStripsCodeFence(t *testing.T) {
	f := &FakeGenerator{ObjectFunc: func([]Message, ObjectSchema) (json.RawMessage, error) {
		return json.RawMessage("```json\n{\"answer\":\"ok\"}\n```"), nil
	}}
	out, err := GenerateObject[testAnswer](context.Background(), f, "answer", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Answer)
}
