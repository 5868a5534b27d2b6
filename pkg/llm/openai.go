package llm

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAISettings configures an OpenAI compatible chat endpoint (OpenAI,
// OpenRouter, Ollama's /v1, LM Studio, ...).
type OpenAISettings struct {
	APIKey      string   `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url"`
	Model       string   `mapstructure:"model" yaml:"model"`
	Temperature *float32 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// OpenAIGenerator implements Generator with the go-openai client.
type OpenAIGenerator struct {
	client   *go_openai.Client
	settings OpenAISettings
}

var _ Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(settings OpenAISettings) (*OpenAIGenerator, error) {
	if settings.Model == "" {
		return nil, errors.New("no chat model specified")
	}
	config := go_openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = settings.BaseURL
	}
	return &OpenAIGenerator{
		client:   go_openai.NewClientWithConfig(config),
		settings: settings,
	}, nil
}

func (g *OpenAIGenerator) GenerateText(ctx context.Context, messages []Message) (string, error) {
	req := g.makeRequest(messages)
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) GenerateJSON(ctx context.Context, messages []Message, schema ObjectSchema) (json.RawMessage, error) {
	schemaBytes, err := json.Marshal(schema.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "marshal response schema")
	}
	req := g.makeRequest(messages)
	req.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
		Type: go_openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &go_openai.ChatCompletionResponseFormatJSONSchema{
			Name:        schema.Name,
			Description: schema.Description,
			Schema:      json.RawMessage(schemaBytes),
			Strict:      false,
		},
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai structured completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai structured completion returned no choices")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) StreamText(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	req := g.makeRequest(messages)
	if len(tools) > 0 {
		req.Tools = make([]go_openai.Tool, 0, len(tools))
		for _, t := range tools {
			req.Tools = append(req.Tools, go_openai.Tool{
				Type: go_openai.ToolTypeFunction,
				Function: &go_openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		req.ToolChoice = "auto"
	}

	log.Debug().Int("messages", len(req.Messages)).Int("tools", len(req.Tools)).Str("model", req.Model).Msg("openai: starting stream")
	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai streaming request")
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer func() {
			if err := stream.Close(); err != nil {
				log.Warn().Err(err).Msg("openai: failed to close stream")
			}
		}()

		send := func(c StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		chunkCount := 0
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				log.Debug().Int("chunks_received", chunkCount).Msg("openai: stream completed")
				send(StreamChunk{Done: true})
				return
			}
			if err != nil {
				log.Error().Err(err).Int("chunks_received", chunkCount).Msg("openai: stream receive failed")
				send(StreamChunk{Err: err})
				return
			}
			chunkCount++
			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta
			chunk := StreamChunk{Content: delta.Content}
			for _, tc := range delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				chunk.ToolCalls = append(chunk.ToolCalls, ToolCallFragment{
					Index:     index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
			if chunk.Content == "" && len(chunk.ToolCalls) == 0 {
				continue
			}
			if !send(chunk) {
				return
			}
		}
	}()

	return out, nil
}

func (g *OpenAIGenerator) makeRequest(messages []Message) go_openai.ChatCompletionRequest {
	req := go_openai.ChatCompletionRequest{
		Model:     g.settings.Model,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: g.settings.MaxTokens,
	}
	if g.settings.Temperature != nil {
		req.Temperature = *g.settings.Temperature
	}
	return req
}

func toOpenAIMessages(messages []Message) []go_openai.ChatCompletionMessage {
	out := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := go_openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
				ID:   tc.ID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
