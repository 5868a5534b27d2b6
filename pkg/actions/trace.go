package actions

import (
	"sync"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Trace is the only writer of a research block's sub-steps. It keeps the step
// order locally so in-place updates address the right index.
type Trace struct {
	mu      sync.Mutex
	sink    session.Sink
	blockID string
	steps   []blocks.SubStep
}

// NewTrace writes to blockID on sink. A nil sink only records locally.
func NewTrace(sink session.Sink, blockID string) *Trace {
	return &Trace{sink: sink, blockID: blockID}
}

func (t *Trace) BlockID() string {
	if t == nil {
		return ""
	}
	return t.blockID
}

func (t *Trace) update(op blocks.PatchOp) {
	if t.sink == nil {
		return
	}
	if err := t.sink.UpdateBlock(t.blockID, []blocks.PatchOp{op}); err != nil {
		log.Warn().Err(err).Str("block_id", t.blockID).Msg("failed to update research block")
	}
}

// Append adds a sub-step and returns its id.
func (t *Trace) Append(step blocks.SubStep) string {
	if t == nil {
		return step.ID
	}
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, step)
	t.update(blocks.AppendSubStep(step))
	return step.ID
}

// Replace overwrites the sub-step with the given id.
func (t *Trace) Replace(id string, step blocks.SubStep) error {
	if t == nil {
		return nil
	}
	step.ID = id
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.steps {
		if t.steps[i].ID == id {
			t.steps[i] = step
			t.update(blocks.ReplaceSubStep(i, step))
			return nil
		}
	}
	return errors.Errorf("unknown sub-step %s", id)
}

// Upsert replaces the step when id is known and appends it otherwise.
func (t *Trace) Upsert(id string, step blocks.SubStep) string {
	if id != "" && t.Replace(id, step) == nil {
		return id
	}
	step.ID = id
	return t.Append(step)
}

func (t *Trace) Steps() []blocks.SubStep {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]blocks.SubStep, len(t.steps))
	copy(out, t.steps)
	return out
}
