package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"cipherdm/internal/domain"
)

// PostgresStore is a Store backed by PostgreSQL through lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens and pings a database.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Close closes the database handle.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(255) PRIMARY KEY,
			public_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(16) NOT NULL CHECK (type IN ('private', 'group')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
			chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			username VARCHAR(255) NOT NULL REFERENCES users(username),
			PRIMARY KEY (chat_id, username)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			seq BIGSERIAL,
			sender VARCHAR(255) NOT NULL,
			content TEXT,
			iv TEXT,
			ct TEXT,
			tag TEXT,
			sent_at VARCHAR(32) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username domain.Username, publicKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, public_key) VALUES ($1, $2)`, username, publicKey)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", username, ErrExists)
	}
	return err
}

func (s *PostgresStore) PublicKey(ctx context.Context, username domain.Username) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT public_key FROM users WHERE username = $1`, username).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return key, err
}

func (s *PostgresStore) CreateChat(
	ctx context.Context,
	name string,
	kind domain.ChatKind,
	participants []domain.Username,
) (domain.ChatID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var id domain.ChatID
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO chats (name, type) VALUES ($1, $2) RETURNING id`, name, kind).Scan(&id); err != nil {
		return 0, err
	}
	for _, p := range participants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, username) VALUES ($1, $2)`, id, p)
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("user %s: %w", p, ErrNotFound)
		}
		if err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

const chatColumns = `SELECT c.id, c.name, c.type, c.created_at,
		array_agg(cp.username ORDER BY cp.username)
	FROM chats c JOIN chat_participants cp ON cp.chat_id = c.id`

func (s *PostgresStore) Chat(ctx context.Context, id domain.ChatID) (ChatRecord, error) {
	rows, err := s.db.QueryContext(ctx, chatColumns+` WHERE c.id = $1 GROUP BY c.id`, id)
	if err != nil {
		return ChatRecord{}, err
	}
	chats, err := scanChats(rows)
	if err != nil {
		return ChatRecord{}, err
	}
	if len(chats) == 0 {
		return ChatRecord{}, fmt.Errorf("chat %d: %w", id, ErrNotFound)
	}
	return chats[0], nil
}

func (s *PostgresStore) ChatsFor(ctx context.Context, username domain.Username) ([]ChatRecord, error) {
	rows, err := s.db.QueryContext(ctx, chatColumns+`
		WHERE c.id IN (SELECT chat_id FROM chat_participants WHERE username = $1)
		GROUP BY c.id ORDER BY c.created_at DESC, c.id DESC`, username)
	if err != nil {
		return nil, err
	}
	return scanChats(rows)
}

func scanChats(rows *sql.Rows) ([]ChatRecord, error) {
	defer rows.Close()
	var out []ChatRecord
	for rows.Next() {
		var c ChatRecord
		var names []string
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt, pq.Array(&names)); err != nil {
			return nil, err
		}
		for _, n := range names {
			c.Participants = append(c.Participants, domain.Username(n))
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg StoredMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender, content, iv, ct, tag, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.ChatID, msg.Sender, msg.Content, msg.IV, msg.CT, msg.Tag, msg.Timestamp)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("chat %d: %w", msg.ChatID, ErrNotFound)
	}
	return err
}

func (s *PostgresStore) Messages(ctx context.Context, id domain.ChatID) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, sender, content, iv, ct, tag, sent_at
		 FROM messages WHERE chat_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var content, iv, ct, tag sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &content, &iv, &ct, &tag, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Content, m.IV, m.CT, m.Tag = nullable(content), nullable(iv), nullable(ct), nullable(tag)
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

var _ Store = (*PostgresStore)(nil)
