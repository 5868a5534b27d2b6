// Package store persists chats and the block list of each answered message.
// The agent uses it as the idempotency record for a (chat, message) pair.
package store

import (
	"context"
	"time"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusAnswering Status = "answering"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

type Message struct {
	// ID orders messages within a chat.
	ID        int64          `json:"id" yaml:"id"`
	ChatID    string         `json:"chatId" yaml:"chatId"`
	MessageID string         `json:"messageId" yaml:"messageId"`
	BackendID string         `json:"backendId" yaml:"backendId"`
	Query     string         `json:"query" yaml:"query"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`
	Status    Status         `json:"status" yaml:"status"`
	Blocks    []blocks.Block `json:"blocks" yaml:"blocks"`
}

type Chat struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Sources   []string  `json:"sources" yaml:"sources"`
	Files     []string  `json:"files" yaml:"files"`
}

type Store interface {
	// EnsureChat returns the stored chat with chat.ID, creating it first if needed.
	EnsureChat(ctx context.Context, chat Chat) (Chat, error)
	GetChat(ctx context.Context, chatID string) (Chat, error)
	ListChats(ctx context.Context) ([]Chat, error)

	GetMessage(ctx context.Context, chatID, messageID string) (Message, error)
	// InsertMessage stores msg and returns it with its assigned ID.
	InsertMessage(ctx context.Context, msg Message) (Message, error)
	// DeleteMessagesAfter removes every message of the chat ordered after id.
	DeleteMessagesAfter(ctx context.Context, chatID string, id int64) error
	UpdateMessage(ctx context.Context, chatID, messageID string, status Status, blocks []blocks.Block) error
	ListMessages(ctx context.Context, chatID string) ([]Message, error)

	Close() error
}

// Open returns a store for driver: "memory", "sqlite3" or "pgx".
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case DialectSQLite, DialectPostgres:
		return NewSQLStore(driver, dsn)
	default:
		return nil, errors.Errorf("unknown store driver %q", driver)
	}
}
