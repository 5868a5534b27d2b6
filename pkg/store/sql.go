package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/scout/pkg/blocks"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "pgx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    sources_json TEXT NOT NULL DEFAULT '[]',
    files_json TEXT NOT NULL DEFAULT '[]'
)`,
	`CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    backend_id TEXT NOT NULL,
    query TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    status TEXT NOT NULL,
    blocks_json TEXT NOT NULL DEFAULT '[]',
    UNIQUE (chat_id, message_id)
)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL,
    sources_json TEXT NOT NULL DEFAULT '[]',
    files_json TEXT NOT NULL DEFAULT '[]'
)`,
	`CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    chat_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    backend_id TEXT NOT NULL,
    query TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL,
    status TEXT NOT NULL,
    blocks_json TEXT NOT NULL DEFAULT '[]',
    UNIQUE (chat_id, message_id)
)`,
}

// SQLStore keeps chats and messages in sqlite3 or postgres through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

var _ Store = (*SQLStore)(nil)

var openDB = sql.Open

func NewSQLStore(dialect, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.Errorf("%s store: empty dsn", dialect)
	}
	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dialect)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == DialectPostgres {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate store")
		}
	}
	log.Debug().Str("dialect", s.dialect).Msg("store migrated")
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func marshalList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SQLStore) EnsureChat(ctx context.Context, chat Chat) (Chat, error) {
	if chat.ID == "" {
		return Chat{}, errors.New("chat id is required")
	}
	existing, err := s.GetChat(ctx, chat.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Chat{}, err
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	sources, err := marshalList(chat.Sources)
	if err != nil {
		return Chat{}, errors.Wrap(err, "marshal chat sources")
	}
	files, err := marshalList(chat.Files)
	if err != nil {
		return Chat{}, errors.Wrap(err, "marshal chat files")
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO chats (id, title, created_at_ms, sources_json, files_json) VALUES (?, ?, ?, ?, ?)`),
		chat.ID, chat.Title, toMillis(chat.CreatedAt), sources, files)
	if err != nil {
		return Chat{}, errors.Wrapf(err, "insert chat %s", chat.ID)
	}
	return chat, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (Chat, error) {
	var (
		c                    Chat
		createdAt            int64
		sourcesRaw, filesRaw string
	)
	if err := row.Scan(&c.ID, &c.Title, &createdAt, &sourcesRaw, &filesRaw); err != nil {
		return Chat{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(sourcesRaw), &c.Sources); err != nil {
		return Chat{}, errors.Wrapf(err, "decode sources of chat %s", c.ID)
	}
	if err := json.Unmarshal([]byte(filesRaw), &c.Files); err != nil {
		return Chat{}, errors.Wrapf(err, "decode files of chat %s", c.ID)
	}
	return c, nil
}

func (s *SQLStore) GetChat(ctx context.Context, chatID string) (Chat, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, title, created_at_ms, sources_json, files_json FROM chats WHERE id = ?`), chatID)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, errors.Wrapf(err, "get chat %s", chatID)
	}
	return c, nil
}

func (s *SQLStore) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at_ms, sources_json, files_json FROM chats ORDER BY created_at_ms DESC, id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	defer func() {
		_ = rows.Close()
	}()
	out := []Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan chat")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	return out, nil
}

const messageColumns = `id, chat_id, message_id, backend_id, query, created_at_ms, status, blocks_json`

func scanMessage(row rowScanner) (Message, error) {
	var (
		m         Message
		createdAt int64
		status    string
		blocksRaw string
	)
	if err := row.Scan(&m.ID, &m.ChatID, &m.MessageID, &m.BackendID, &m.Query, &createdAt, &status, &blocksRaw); err != nil {
		return Message{}, err
	}
	m.CreatedAt = fromMillis(createdAt)
	m.Status = Status(status)
	if err := json.Unmarshal([]byte(blocksRaw), &m.Blocks); err != nil {
		return Message{}, errors.Wrapf(err, "decode blocks of message %s", m.MessageID)
	}
	return m, nil
}

func (s *SQLStore) GetMessage(ctx context.Context, chatID, messageID string) (Message, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? AND message_id = ?`), chatID, messageID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, errors.Wrapf(err, "get message %s/%s", chatID, messageID)
	}
	return m, nil
}

func (s *SQLStore) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	bs, err := marshalList(msg.Blocks)
	if err != nil {
		return Message{}, errors.Wrap(err, "marshal blocks")
	}
	row := s.db.QueryRowContext(ctx,
		s.rebind(`INSERT INTO messages (chat_id, message_id, backend_id, query, created_at_ms, status, blocks_json) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		msg.ChatID, msg.MessageID, msg.BackendID, msg.Query, toMillis(msg.CreatedAt), string(msg.Status), bs)
	if err := row.Scan(&msg.ID); err != nil {
		return Message{}, errors.Wrapf(err, "insert message %s/%s", msg.ChatID, msg.MessageID)
	}
	return msg, nil
}

func (s *SQLStore) DeleteMessagesAfter(ctx context.Context, chatID string, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE chat_id = ? AND id > ?`), chatID, id)
	if err != nil {
		return errors.Wrapf(err, "truncate chat %s", chatID)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Debug().Str("chat_id", chatID).Int64("after", id).Int64("deleted", n).Msg("truncated chat")
	}
	return nil
}

func (s *SQLStore) UpdateMessage(ctx context.Context, chatID, messageID string, status Status, bs []blocks.Block) error {
	var (
		res sql.Result
		err error
	)
	if bs == nil {
		res, err = s.db.ExecContext(ctx,
			s.rebind(`UPDATE messages SET status = ? WHERE chat_id = ? AND message_id = ?`),
			string(status), chatID, messageID)
	} else {
		var raw string
		raw, err = marshalList(bs)
		if err != nil {
			return errors.Wrap(err, "marshal blocks")
		}
		res, err = s.db.ExecContext(ctx,
			s.rebind(`UPDATE messages SET status = ?, blocks_json = ? WHERE chat_id = ? AND message_id = ?`),
			string(status), raw, chatID, messageID)
	}
	if err != nil {
		return errors.Wrapf(err, "update message %s/%s", chatID, messageID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update message")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? ORDER BY id ASC`), chatID)
	if err != nil {
		return nil, errors.Wrapf(err, "list messages of %s", chatID)
	}
	defer func() {
		_ = rows.Close()
	}()
	out := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "list messages of %s", chatID)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
