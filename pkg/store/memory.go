package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-go-golems/scout/pkg/blocks"
	clone "github.com/huandu/go-clone/generic"
	"github.com/pkg/errors"
)

type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	chats    map[string]Chat
	messages map[string][]Message
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    map[string]Chat{},
		messages: map[string][]Message{},
	}
}

func (m *MemoryStore) EnsureChat(_ context.Context, chat Chat) (Chat, error) {
	if chat.ID == "" {
		return Chat{}, errors.New("chat id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.chats[chat.ID]; ok {
		return clone.Clone(existing), nil
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	m.chats[chat.ID] = clone.Clone(chat)
	return chat, nil
}

func (m *MemoryStore) GetChat(_ context.Context, chatID string) (Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return clone.Clone(c), nil
}

func (m *MemoryStore) ListChats(_ context.Context) ([]Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Chat, 0, len(m.chats))
	for _, c := range m.chats {
		out = append(out, clone.Clone(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetMessage(_ context.Context, chatID, messageID string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages[chatID] {
		if msg.MessageID == messageID {
			return clone.Clone(msg), nil
		}
	}
	return Message{}, ErrNotFound
}

func (m *MemoryStore) InsertMessage(_ context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages[msg.ChatID] {
		if existing.MessageID == msg.MessageID {
			return Message{}, errors.Errorf("message %s/%s already exists", msg.ChatID, msg.MessageID)
		}
	}
	m.nextID++
	msg.ID = m.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], clone.Clone(msg))
	return msg, nil
}

func (m *MemoryStore) DeleteMessagesAfter(_ context.Context, chatID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[chatID][:0]
	for _, msg := range m.messages[chatID] {
		if msg.ID <= id {
			kept = append(kept, msg)
		}
	}
	m.messages[chatID] = kept
	return nil
}

func (m *MemoryStore) UpdateMessage(_ context.Context, chatID, messageID string, status Status, bs []blocks.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[chatID]
	for i := range msgs {
		if msgs[i].MessageID == messageID {
			msgs[i].Status = status
			if bs != nil {
				msgs[i].Blocks = clone.Clone(bs)
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListMessages(_ context.Context, chatID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone.Clone(m.messages[chatID]), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
