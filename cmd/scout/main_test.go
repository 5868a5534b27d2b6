package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-go-golems/scout/pkg/agent"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/classifier"
	"github.com/go-go-golems/scout/pkg/config"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadID(t *testing.T) {
	assert.Equal(t, "my-notes", uploadID("/tmp/My Notes.txt"))
	assert.Equal(t, "report-2024", uploadID("report_2024.md"))
}

func TestAnswerStreamsTextAndSources(t *testing.T) {
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: map[string]any{
				"skipSearch":         true,
				"standaloneFollowUp": "hello",
				"intents":            []string{"writing_task"},
				"widgets":            []any{},
			},
		}),
		StreamFunc: llm.ScriptedStreams(llm.TextChunks("Hello there, friend.", 4)),
	}
	s, err := config.Load(config.NewViper())
	require.NoError(t, err)
	rt, err := config.Build(s, config.WithGenerator(gen))
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	var out bytes.Buffer
	err = answer(context.Background(), &out, rt.Agent, agent.Input{
		ChatID:    "chat",
		MessageID: "m1",
		Query:     "hello",
		Config:    turns.Config{Mode: turns.ModeSpeed},
	}, &askFlags{output: "text"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there, friend.\n", out.String())
}

func TestAnswerYAMLOutput(t *testing.T) {
	gen := &llm.FakeGenerator{
		ObjectFunc: llm.ObjectsByName(map[string]any{
			classifier.SchemaName: map[string]any{
				"skipSearch":         true,
				"standaloneFollowUp": "hi",
				"intents":            []string{},
				"widgets":            []any{},
			},
		}),
		StreamFunc: llm.ScriptedStreams(llm.TextChunks("Hi!", 10)),
	}
	s, err := config.Load(config.NewViper())
	require.NoError(t, err)
	rt, err := config.Build(s, config.WithGenerator(gen))
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	var out bytes.Buffer
	require.NoError(t, answer(context.Background(), &out, rt.Agent, agent.Input{
		ChatID: "chat", MessageID: "m1", Query: "hi",
	}, &askFlags{output: "yaml"}))
	assert.True(t, strings.HasPrefix(out.String(), "chatId: chat\n"))
	assert.Contains(t, out.String(), "type: text")
	assert.Contains(t, out.String(), "data: Hi!")
}

func TestPrintSources(t *testing.T) {
	var out bytes.Buffer
	printSources(&out, []blocks.Block{
		blocks.NewSourceBlock([]turns.Chunk{turns.NewChunk("c", "Title", "https://x")}),
		blocks.NewSuggestionBlock([]string{"more?"}),
	})
	assert.Equal(t, "\nSources:\n[1] Title - https://x\n\nYou could also ask:\n- more?\n", out.String())
}
