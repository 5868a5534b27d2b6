// Package blocks holds the incrementally updated output units of a turn.
//
// A Block is created once and then only mutated through JSON patch operations
// (RFC 6902), so any consumer applying the same ordered patches converges on
// the same value regardless of how many intermediate notifications it saw.
package blocks

import (
	"encoding/json"

	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Type string

const (
	TypeText       Type = "text"
	TypeResearch   Type = "research"
	TypeWidget     Type = "widget"
	TypeSource     Type = "source"
	TypeSuggestion Type = "suggestion"
)

// Block is identified by a stable ID. Data holds the JSON document for its type:
// a string for text, ResearchData for research, WidgetData for widget, a chunk
// list for source and a string list for suggestion.
type Block struct {
	ID   string          `json:"id" yaml:"id"`
	Type Type            `json:"type" yaml:"type"`
	Data json.RawMessage `json:"data" yaml:"-"`
}

type SubStepType string

const (
	SubStepReasoning           SubStepType = "reasoning"
	SubStepSearching           SubStepType = "searching"
	SubStepReading             SubStepType = "reading"
	SubStepSearchResults       SubStepType = "search_results"
	SubStepUploadSearching     SubStepType = "upload_searching"
	SubStepUploadSearchResults SubStepType = "upload_search_results"
)

// SubStep is one entry of a research trace. Which fields are set depends on Type.
type SubStep struct {
	ID        string        `json:"id"`
	Type      SubStepType   `json:"type"`
	Reasoning string        `json:"reasoning,omitempty"`
	Searching []string      `json:"searching,omitempty"`
	Reading   []turns.Chunk `json:"reading,omitempty"`
	Queries   []string      `json:"queries,omitempty"`
	Results   []turns.Chunk `json:"results,omitempty"`
}

type ResearchData struct {
	SubSteps []SubStep `json:"subSteps"`
}

type WidgetData struct {
	WidgetType string `json:"widgetType"`
	Params     any    `json:"params"`
}

func newBlock(t Type, data any) Block {
	b, err := json.Marshal(data)
	if err != nil {
		// all block payloads are plain data
		panic(errors.Wrapf(err, "marshal %s block", t))
	}
	return Block{ID: uuid.NewString(), Type: t, Data: b}
}

func NewTextBlock(text string) Block {
	return newBlock(TypeText, text)
}

func NewResearchBlock() Block {
	return newBlock(TypeResearch, ResearchData{SubSteps: []SubStep{}})
}

func NewWidgetBlock(widgetType string, params any) Block {
	return newBlock(TypeWidget, WidgetData{WidgetType: widgetType, Params: params})
}

func NewSourceBlock(chunks []turns.Chunk) Block {
	if chunks == nil {
		chunks = []turns.Chunk{}
	}
	return newBlock(TypeSource, chunks)
}

func NewSuggestionBlock(suggestions []string) Block {
	if suggestions == nil {
		suggestions = []string{}
	}
	return newBlock(TypeSuggestion, suggestions)
}

func (b Block) decode(want Type, v any) error {
	if b.Type != want {
		return errors.Errorf("block %s is a %s block, not %s", b.ID, b.Type, want)
	}
	if err := json.Unmarshal(b.Data, v); err != nil {
		return errors.Wrapf(err, "decode %s block %s", want, b.ID)
	}
	return nil
}

func (b Block) Text() (string, error) {
	var s string
	err := b.decode(TypeText, &s)
	return s, err
}

func (b Block) Research() (ResearchData, error) {
	var d ResearchData
	err := b.decode(TypeResearch, &d)
	return d, err
}

func (b Block) Widget() (WidgetData, error) {
	var d WidgetData
	err := b.decode(TypeWidget, &d)
	return d, err
}

func (b Block) Sources() ([]turns.Chunk, error) {
	var d []turns.Chunk
	err := b.decode(TypeSource, &d)
	return d, err
}

func (b Block) Suggestions() ([]string, error) {
	var d []string
	err := b.decode(TypeSuggestion, &d)
	return d, err
}

// MarshalYAML renders the data as a decoded value instead of raw bytes.
func (b Block) MarshalYAML() (interface{}, error) {
	var data any
	if len(b.Data) > 0 {
		if err := json.Unmarshal(b.Data, &data); err != nil {
			return nil, err
		}
	}
	return map[string]any{"id": b.ID, "type": string(b.Type), "data": data}, nil
}
