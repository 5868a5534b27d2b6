package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Session) (func() []Event, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)

	var events []Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			events = append(events, ev)
		}
	}()
	return func() []Event {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("subscriber did not finish")
		}
		return events
	}, cancel
}

func TestSubscriberReconstructsBlocks(t *testing.T) {
	s := New()
	wait, cancel := collect(t, s)
	defer cancel()

	text := blocks.NewTextBlock("")
	s.EmitBlock(text)
	acc := ""
	for i := 0; i < 20; i++ {
		acc += fmt.Sprintf("w%d ", i)
		require.NoError(t, s.UpdateBlock(text.ID, []blocks.PatchOp{blocks.ReplaceData(acc)}))
	}
	research := blocks.NewResearchBlock()
	s.EmitBlock(research)
	require.NoError(t, s.UpdateBlock(research.ID, []blocks.PatchOp{
		blocks.AppendSubStep(blocks.SubStep{ID: "a", Type: blocks.SubStepSearching, Searching: []string{"q"}}),
	}))
	s.Emit(EventMessageEnd, nil)
	require.NoError(t, s.Close())

	events := wait()
	require.Len(t, events, len(s.History()))
	for i, ev := range events {
		assert.Equal(t, uint64(i), ev.Seq)
	}

	r := NewReconstructor()
	for _, ev := range events {
		require.NoError(t, r.Apply(ev))
	}
	assert.True(t, r.Done)
	assert.Equal(t, s.GetAllBlocks(), r.Blocks())

	got, ok := r.Block(text.ID)
	require.True(t, ok)
	str, err := got.Text()
	require.NoError(t, err)
	assert.Equal(t, acc, str)
}

func TestStructPatchReplaysToIdenticalBytes(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	research := blocks.NewResearchBlock()
	s.EmitBlock(research)
	step := blocks.SubStep{ID: "a", Type: blocks.SubStepSearching, Searching: []string{"q"}}
	require.NoError(t, s.UpdateBlock(research.ID, []blocks.PatchOp{blocks.AppendSubStep(step)}))
	require.NoError(t, s.UpdateBlock(research.ID, []blocks.PatchOp{
		blocks.ReplaceSubStep(0, blocks.SubStep{ID: "a", Type: blocks.SubStepReasoning, Reasoning: "r"}),
	}))

	// in-process replay of the log
	direct := NewReconstructor()
	for _, ev := range s.History() {
		require.NoError(t, direct.Apply(ev))
	}
	assert.Equal(t, s.GetAllBlocks(), direct.Blocks())

	// replay after the events crossed a JSON boundary
	wire := NewReconstructor()
	for _, ev := range s.History() {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		var decoded Event
		require.NoError(t, json.Unmarshal(b, &decoded))
		require.NoError(t, wire.Apply(decoded))
	}
	got, ok := wire.Block(research.ID)
	require.True(t, ok)
	want, ok := s.GetBlock(research.ID)
	require.True(t, ok)
	assert.Equal(t, string(want.Data), string(got.Data))
}

func TestLateSubscriberGetsReplay(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	b := blocks.NewTextBlock("a")
	s.EmitBlock(b)
	require.NoError(t, s.UpdateBlock(b.ID, []blocks.PatchOp{blocks.ReplaceData("ab")}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)

	r := NewReconstructor()
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			require.NoError(t, r.Apply(ev))
		case <-time.After(5 * time.Second):
			t.Fatal("no replay")
		}
	}
	got, _ := r.Block(b.ID)
	str, err := got.Text()
	require.NoError(t, err)
	assert.Equal(t, "ab", str)
}

func TestUpdateUnknownBlockIsDropped(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	require.NoError(t, s.UpdateBlock("missing", []blocks.PatchOp{blocks.ReplaceData("x")}))
	assert.Empty(t, s.History())
}

func TestInvalidPatchIsRejected(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	b := blocks.NewTextBlock("x")
	s.EmitBlock(b)
	err := s.UpdateBlock(b.ID, []blocks.PatchOp{blocks.Replace("/data/nope/0", "y")})
	require.Error(t, err)
	got, ok := s.GetBlock(b.ID)
	require.True(t, ok)
	str, _ := got.Text()
	assert.Equal(t, "x", str)
}

func TestConcurrentUpdatesHaveContiguousSeq(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	b := blocks.NewResearchBlock()
	s.EmitBlock(b)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.UpdateBlock(b.ID, []blocks.PatchOp{
				blocks.AppendSubStep(blocks.SubStep{ID: fmt.Sprint(i), Type: blocks.SubStepReasoning}),
			})
		}(i)
	}
	wg.Wait()

	h := s.History()
	require.Len(t, h, 11)
	for i, ev := range h {
		assert.Equal(t, uint64(i), ev.Seq)
	}
	got, _ := s.GetBlock(b.ID)
	data, err := got.Research()
	require.NoError(t, err)
	assert.Len(t, data.SubSteps, 10)
}
