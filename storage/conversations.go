// Package storage persists conversations in a local SQLite database. It is
// a dumb sink: the reconciler owns all in-memory mutation, and the store
// only flushes and loads sealed state.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"orchat/model"
)

// ConversationMetadata is a lightweight row for listing without loading
// message bodies.
type ConversationMetadata struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	TotalTokens  int
}

// ConversationStore handles conversation persistence.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore opens (creating if needed) the database in dataDir.
func NewConversationStore(dataDir string) (*ConversationStore, error) {
	dbPath := filepath.Join(dataDir, "conversations.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &ConversationStore{db: db}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (cs *ConversationStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		reasoning TEXT,
		annotations TEXT,
		output_images TEXT,
		model TEXT,
		prompt_tokens INTEGER,
		completion_tokens INTEGER,
		total_tokens INTEGER,
		error INTEGER NOT NULL DEFAULT 0,
		was_streaming INTEGER NOT NULL DEFAULT 0,
		requested TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`

	if _, err := cs.db.Exec(schema); err != nil {
		return err
	}

	if err := cs.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the first release to existing
// databases.
func (cs *ConversationStore) migrateSchema() error {
	migrations := []struct {
		column string
		ddl    string
	}{
		{"reasoning", `ALTER TABLE messages ADD COLUMN reasoning TEXT`},
		{"output_images", `ALTER TABLE messages ADD COLUMN output_images TEXT`},
		{"requested", `ALTER TABLE messages ADD COLUMN requested TEXT`},
	}

	for _, m := range migrations {
		has, err := cs.columnExists("messages", m.column)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", m.column, err)
		}
		if has {
			continue
		}
		if _, err := cs.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", m.column, err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func (cs *ConversationStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := cs.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue interface{}
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

// Save writes the conversation and its full message list. Messages are
// append-only in memory, so replacing the rows wholesale is safe and keeps
// the write path simple.
func (cs *ConversationStore) Save(conv *model.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation has no id")
	}

	tx, err := cs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO conversations (id, title, created_at, updated_at, message_count, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt, conv.MessageCount, conv.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for seq, msg := range conv.Messages {
		annotations, err := marshalJSON(msg.Annotations)
		if err != nil {
			return fmt.Errorf("failed to encode annotations: %w", err)
		}
		images, err := marshalJSON(msg.OutputImages)
		if err != nil {
			return fmt.Errorf("failed to encode output images: %w", err)
		}
		requested, err := marshalJSON(msg.Options)
		if err != nil {
			return fmt.Errorf("failed to encode request options: %w", err)
		}

		var prompt, completion, total sql.NullInt64
		if msg.Usage != nil {
			prompt = sql.NullInt64{Int64: int64(msg.Usage.PromptTokens), Valid: true}
			completion = sql.NullInt64{Int64: int64(msg.Usage.CompletionTokens), Valid: true}
			total = sql.NullInt64{Int64: int64(msg.Usage.TotalTokens), Valid: true}
		}

		_, err = tx.Exec(`
			INSERT INTO messages (id, conversation_id, seq, role, content, reasoning, annotations,
				output_images, model, prompt_tokens, completion_tokens, total_tokens,
				error, was_streaming, requested, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, conv.ID, seq, msg.Role, msg.Content, msg.Reasoning, annotations,
			images, msg.Model, prompt, completion, total,
			boolToInt(msg.Error), boolToInt(msg.WasStreaming), requested, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to save message %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// Load reads a conversation with its messages. Failed messages from a prior
// session come back with retry_available=false: their turn cannot be
// reproduced in this runtime.
func (cs *ConversationStore) Load(id string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := cs.db.QueryRow(`
		SELECT id, title, created_at, updated_at, message_count, total_tokens
		FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt, &conv.MessageCount, &conv.TotalTokens)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := cs.db.Query(`
		SELECT id, role, content, reasoning, annotations, output_images, model,
			prompt_tokens, completion_tokens, total_tokens, error, was_streaming, requested, timestamp
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg := &model.ChatMessage{}
		var reasoning, annotations, images, mdl, requested sql.NullString
		var prompt, completion, total sql.NullInt64
		var errFlag, wasStreaming int

		err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &reasoning, &annotations, &images, &mdl,
			&prompt, &completion, &total, &errFlag, &wasStreaming, &requested, &msg.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Reasoning = reasoning.String
		msg.Model = mdl.String
		msg.Error = errFlag != 0
		msg.WasStreaming = wasStreaming != 0

		if annotations.Valid && annotations.String != "" {
			if err := json.Unmarshal([]byte(annotations.String), &msg.Annotations); err != nil {
				return nil, fmt.Errorf("failed to decode annotations: %w", err)
			}
		}
		if images.Valid && images.String != "" {
			if err := json.Unmarshal([]byte(images.String), &msg.OutputImages); err != nil {
				return nil, fmt.Errorf("failed to decode output images: %w", err)
			}
		}
		if requested.Valid && requested.String != "" {
			opts := &model.RequestOptions{}
			if err := json.Unmarshal([]byte(requested.String), opts); err != nil {
				return nil, fmt.Errorf("failed to decode request options: %w", err)
			}
			msg.Options = opts
		}
		if total.Valid {
			msg.Usage = &model.Usage{
				PromptTokens:     int(prompt.Int64),
				CompletionTokens: int(completion.Int64),
				TotalTokens:      int(total.Int64),
			}
		}

		// A failure persisted by an earlier session is display-only.
		msg.RetryAvailable = false

		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return conv, nil
}

// List returns metadata for all conversations, newest first.
func (cs *ConversationStore) List() ([]ConversationMetadata, error) {
	rows, err := cs.db.Query(`
		SELECT id, title, created_at, updated_at, message_count, total_tokens
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var list []ConversationMetadata
	for rows.Next() {
		var meta ConversationMetadata
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.UpdatedAt,
			&meta.MessageCount, &meta.TotalTokens); err != nil {
			continue
		}
		list = append(list, meta)
	}

	return list, rows.Err()
}

// Delete removes a conversation and its messages.
func (cs *ConversationStore) Delete(id string) error {
	tx, err := cs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return tx.Commit()
}

// Rename updates a conversation's title.
func (cs *ConversationStore) Rename(id, title string) error {
	result, err := cs.db.Exec(`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("conversation %s not found", id)
	}

	return nil
}

func (cs *ConversationStore) Close() error {
	if cs.db != nil {
		return cs.db.Close()
	}
	return nil
}

// marshalJSON encodes v, returning NULL-able empty for nil values.
func marshalJSON(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case []model.Annotation:
		if val == nil {
			return sql.NullString{}, nil
		}
	case []string:
		if val == nil {
			return sql.NullString{}, nil
		}
	case *model.RequestOptions:
		if val == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
