// Package session is the per-turn event channel between the engine and its
// consumers. It keeps the authoritative block list and publishes every change
// as an ordered Event on a watermill topic.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/google/uuid"
	clone "github.com/huandu/go-clone/generic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Sink is what the engine writes to. Implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(eventType EventType, data any)
	EmitBlock(b blocks.Block)
	GetBlock(id string) (blocks.Block, bool)
	UpdateBlock(id string, ops []blocks.PatchOp) error
	GetAllBlocks() []blocks.Block
}

const seqMetadataKey = "seq"

type Session struct {
	ID    string
	topic string

	pubsub *gochannel.GoChannel

	// publishMu serializes mutation+publish so events leave in Seq order.
	publishMu sync.Mutex

	mu      sync.RWMutex
	seq     uint64
	order   []string
	blocks  map[string]blocks.Block
	history []Event
	closed  bool
}

var _ Sink = (*Session)(nil)

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) {
		s.ID = id
	}
}

func New(options ...Option) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		blocks: map[string]blocks.Block{},
	}
	for _, o := range options {
		o(s)
	}
	s.topic = "session." + s.ID
	// Persistent replays past events to late subscribers, blocking publish keeps
	// per-subscriber order.
	s.pubsub = gochannel.NewGoChannel(gochannel.Config{
		Persistent:                     true,
		BlockPublishUntilSubscriberAck: true,
	}, newWatermillLogger(log.Logger))
	return s
}

func (s *Session) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("failed to marshal event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(seqMetadataKey, strconv.FormatUint(ev.Seq, 10))
	if err := s.pubsub.Publish(s.topic, msg); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("failed to publish event")
		return
	}
	log.Trace().Str("session", s.ID).Object("event", ev).Msg("published")
}

// record assigns the next sequence number and appends ev to the history.
// Callers hold mu.
func (s *Session) record(ev Event) Event {
	ev.Seq = s.seq
	s.seq++
	s.history = append(s.history, ev)
	return ev
}

func (s *Session) Emit(eventType EventType, data any) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.Error().Err(err).Str("event", string(eventType)).Msg("failed to marshal event data")
		} else {
			raw = b
		}
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ev := s.record(Event{Type: eventType, Data: raw})
	s.mu.Unlock()

	s.publish(ev)
}

func (s *Session) EmitBlock(b blocks.Block) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	stored := clone.Clone(b)
	if _, ok := s.blocks[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	s.blocks[b.ID] = stored
	published := clone.Clone(b)
	ev := s.record(Event{Type: EventBlock, Block: &published})
	s.mu.Unlock()

	s.publish(ev)
}

// wireOps returns ops as a subscriber decodes them, so the stored block and
// every replayed block are built from the same values.
func wireOps(ops []blocks.PatchOp) ([]blocks.PatchOp, error) {
	b, err := json.Marshal(ops)
	if err != nil {
		return nil, errors.Wrap(err, "encode patch")
	}
	var out []blocks.PatchOp
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decode patch")
	}
	return out, nil
}

// UpdateBlock patches a known block and publishes the patch. Patches for
// unknown block IDs are dropped.
func (s *Session) UpdateBlock(id string, ops []blocks.PatchOp) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	current, ok := s.blocks[id]
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("session", s.ID).Str("block_id", id).Msg("dropping patch for unknown block")
		return nil
	}
	wire, err := wireOps(ops)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "update block %s", id)
	}
	patched, err := blocks.Apply(current, wire)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "update block %s", id)
	}
	s.blocks[id] = patched
	ev := s.record(Event{Type: EventUpdateBlock, BlockID: id, Patch: wire})
	s.mu.Unlock()

	s.publish(ev)
	return nil
}

func (s *Session) GetBlock(id string) (blocks.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok {
		return blocks.Block{}, false
	}
	return clone.Clone(b), true
}

// GetAllBlocks returns a snapshot of the blocks in creation order.
func (s *Session) GetAllBlocks() []blocks.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blocks.Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone.Clone(s.blocks[id]))
	}
	return out
}

// History returns every event emitted so far.
func (s *Session) History() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone.Clone(s.history)
}

// Subscribe delivers all past and future events in order until ctx is done or
// the session is closed. The consumer must keep reading or cancel ctx, since
// publishing waits for every subscriber.
func (s *Session) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := s.pubsub.Subscribe(ctx, s.topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to session")
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		// persisted messages can be replayed concurrently, so events are
		// released strictly by Seq
		var next uint64
		pending := map[uint64]Event{}
		for msg := range messages {
			var ev Event
			err := json.Unmarshal(msg.Payload, &ev)
			msg.Ack()
			if err != nil {
				log.Warn().Err(err).Str("session", s.ID).Msg("dropping undecodable event")
				continue
			}
			if ev.Seq < next {
				continue
			}
			pending[ev.Seq] = ev
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				select {
				case out <- ready:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close ends all subscriptions. Further emits are ignored.
func (s *Session) Close() error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.pubsub.Close()
}
