package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/roomchat/internal/store"
)

const messageColumns = `
	m.id, m.room_id, r.name, m.sender, m.content,
	m.file_url, m.file_name, m.file_type, m.file_size, m.file_deleted,
	m.created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg      store.Message
		fileURL  sql.NullString
		fileName sql.NullString
		fileType sql.NullString
		fileSize sql.NullInt64
		deleted  bool
	)
	if err := row.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.RoomName,
		&msg.Sender,
		&msg.Content,
		&fileURL,
		&fileName,
		&fileType,
		&fileSize,
		&deleted,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}

	if fileURL.Valid {
		msg.File = &store.File{
			URL:     fileURL.String,
			Name:    fileName.String,
			Type:    fileType.String,
			Size:    fileSize.Int64,
			Deleted: deleted,
		}
	}
	msg.ReadBy = []string{}
	msg.DeletedFor = []string{}

	return &msg, nil
}

// SaveMessage persists a message together with its initial readers.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var fileURL, fileName, fileType sql.NullString
	var fileSize sql.NullInt64
	if msg.File != nil {
		fileURL = sql.NullString{String: msg.File.URL, Valid: true}
		fileName = sql.NullString{String: msg.File.Name, Valid: true}
		fileType = sql.NullString{String: msg.File.Type, Valid: true}
		fileSize = sql.NullInt64{Int64: msg.File.Size, Valid: true}
	}

	query := `
		INSERT INTO messages (room_id, sender, content, file_url, file_name, file_type, file_size, created_at)
		SELECT id, ?, ?, ?, ?, ?, ?, ? FROM rooms WHERE name = ?
	`
	result, err := tx.ExecContext(ctx, query,
		msg.Sender, msg.Content, fileURL, fileName, fileType, fileSize, msg.CreatedAt, msg.RoomName)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %q is attached to another message: %w", fileURL.String, store.ErrAlreadyExists)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %q: %w", msg.RoomName, store.ErrNotFound)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT room_id FROM messages WHERE id = ?`, id).Scan(&msg.RoomID); err != nil {
		return fmt.Errorf("query room id: %w", err)
	}

	for _, username := range msg.ReadBy {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO message_reads (message_id, username) VALUES (?, ?)`,
			id, username,
		); err != nil {
			return fmt.Errorf("insert reader: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	return nil
}

// GetMessage retrieves a message by ID with readers and hidden-for list.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN rooms r ON r.id = m.room_id
		WHERE m.id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	if err := s.loadAudience(ctx, []*store.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves messages from a room newest first, with pagination.
// Messages hidden for viewer are excluded before the limit applies.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomName string, limit int, beforeID *int64, viewer string) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN rooms r ON r.id = m.room_id
		WHERE r.name = ?
		AND NOT EXISTS (
			SELECT 1 FROM message_hidden h WHERE h.message_id = m.id AND h.username = ?
		)
	`
	args := []interface{}{roomName, viewer}
	if beforeID != nil {
		query += ` AND m.id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	// The single pooled connection must be released before the next query.
	rows.Close()

	if err := s.loadAudience(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// AddReader appends username to message_reads unless already present.
func (s *SQLiteStore) AddReader(ctx context.Context, id int64, username string) (bool, error) {
	return s.appendUnique(ctx, "message_reads", id, username)
}

// HideMessage appends username to message_hidden unless already present.
func (s *SQLiteStore) HideMessage(ctx context.Context, id int64, username string) (bool, error) {
	return s.appendUnique(ctx, "message_hidden", id, username)
}

func (s *SQLiteStore) appendUnique(ctx context.Context, table string, id int64, username string) (bool, error) {
	query := `
		INSERT OR IGNORE INTO ` + table + ` (message_id, username)
		SELECT id, ? FROM messages WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, username, id)
	if err != nil {
		return false, fmt.Errorf("insert into %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Nothing inserted: either already present or the message is gone.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check message: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return false, nil
}

// DeleteMessage removes the message and its reader/hidden rows.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	for _, table := range []string{"message_reads", "message_hidden"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE message_id = ?`, id); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MarkFileDeleted flags the attachment of the message as deleted.
func (s *SQLiteStore) MarkFileDeleted(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET file_deleted = 1 WHERE id = ? AND file_url IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("update message file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message file %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// loadAudience fills ReadBy and DeletedFor of the given messages in insertion order.
func (s *SQLiteStore) loadAudience(ctx context.Context, messages []*store.Message) error {
	if len(messages) == 0 {
		return nil
	}

	byID := make(map[int64]*store.Message, len(messages))
	args := make([]interface{}, 0, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg
		args = append(args, msg.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messages)), ",")

	for _, target := range []struct {
		table string
		add   func(*store.Message, string)
	}{
		{"message_reads", func(m *store.Message, u string) { m.ReadBy = append(m.ReadBy, u) }},
		{"message_hidden", func(m *store.Message, u string) { m.DeletedFor = append(m.DeletedFor, u) }},
	} {
		query := `SELECT message_id, username FROM ` + target.table +
			` WHERE message_id IN (` + placeholders + `) ORDER BY id`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query %s: %w", target.table, err)
		}
		for rows.Next() {
			var id int64
			var username string
			if err := rows.Scan(&id, &username); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", target.table, err)
			}
			if msg, ok := byID[id]; ok {
				target.add(msg, username)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate %s: %w", target.table, err)
		}
	}

	return nil
}
