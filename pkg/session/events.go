package session

import (
	"encoding/json"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventBlock            EventType = "block"
	EventUpdateBlock      EventType = "updateBlock"
	EventResearchComplete EventType = "researchComplete"
	EventMessageEnd       EventType = "messageEnd"
	EventError            EventType = "error"
)

// Event is a single ordered notification of a session. Seq starts at 0 and
// increases by one per event.
type Event struct {
	Seq     uint64           `json:"seq" yaml:"seq"`
	Type    EventType        `json:"type" yaml:"type"`
	Block   *blocks.Block    `json:"block,omitempty" yaml:"block,omitempty"`
	BlockID string           `json:"blockId,omitempty" yaml:"blockId,omitempty"`
	Patch   []blocks.PatchOp `json:"patch,omitempty" yaml:"patch,omitempty"`
	Data    json.RawMessage  `json:"data,omitempty" yaml:"-"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Uint64("seq", e.Seq).Str("type", string(e.Type))
	if e.Block != nil {
		ev.Str("block_id", e.Block.ID).Str("block_type", string(e.Block.Type))
	}
	if e.BlockID != "" {
		ev.Str("block_id", e.BlockID).Int("ops", len(e.Patch))
	}
	if len(e.Data) > 0 {
		ev.RawJSON("data", e.Data)
	}
}
