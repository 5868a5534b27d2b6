package session

import (
	"encoding/json"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/pkg/errors"
)

// Reconstructor rebuilds the block list of a session from its events.
type Reconstructor struct {
	order  []string
	blocks map[string]blocks.Block

	Done     bool
	Research bool
	Errors   []string
}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{blocks: map[string]blocks.Block{}}
}

func (r *Reconstructor) Apply(ev Event) error {
	switch ev.Type {
	case EventBlock:
		if ev.Block == nil {
			return errors.Errorf("block event %d without block", ev.Seq)
		}
		if _, ok := r.blocks[ev.Block.ID]; !ok {
			r.order = append(r.order, ev.Block.ID)
		}
		r.blocks[ev.Block.ID] = *ev.Block
	case EventUpdateBlock:
		b, ok := r.blocks[ev.BlockID]
		if !ok {
			return nil
		}
		patched, err := blocks.Apply(b, ev.Patch)
		if err != nil {
			return errors.Wrapf(err, "event %d", ev.Seq)
		}
		r.blocks[ev.BlockID] = patched
	case EventResearchComplete:
		r.Research = true
	case EventMessageEnd:
		r.Done = true
	case EventError:
		var data ErrorData
		if len(ev.Data) > 0 {
			_ = json.Unmarshal(ev.Data, &data)
		}
		r.Errors = append(r.Errors, data.Message)
	}
	return nil
}

func (r *Reconstructor) Block(id string) (blocks.Block, bool) {
	b, ok := r.blocks[id]
	return b, ok
}

func (r *Reconstructor) Blocks() []blocks.Block {
	out := make([]blocks.Block, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.blocks[id])
	}
	return out
}

// BlocksOfType returns the reconstructed blocks with type t in creation order.
func (r *Reconstructor) BlocksOfType(t blocks.Type) []blocks.Block {
	var out []blocks.Block
	for _, id := range r.order {
		if r.blocks[id].Type == t {
			out = append(out, r.blocks[id])
		}
	}
	return out
}
