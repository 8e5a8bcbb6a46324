package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ListMessages returns the newest messages for a project in
// chronological order, each with its reader set.
func (s *PostgresStore) ListMessages(ctx context.Context, projectID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, sender_id, content, type, COALESCE(file_url, ''), COALESCE(file_name, ''), COALESCE(reply_to, ''), created_at
		FROM messages
		WHERE project_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.SenderID, &item.Content, &item.Type, &item.FileURL, &item.FileName, &item.ReplyTo, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		item.ReadBy = []string{}
		items = append(items, item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	readers, err := s.messageReaders(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if set, ok := readers[items[i].ID]; ok {
			items[i].ReadBy = set
		}
	}

	// Oldest first for the client.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *PostgresStore) messageReaders(ctx context.Context, messageIDs []string) (map[string][]string, error) {
	readers := make(map[string][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return readers, nil
	}
	placeholders := make([]string, 0, len(messageIDs))
	args := make([]any, 0, len(messageIDs))
	for i, id := range messageIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, user_id FROM message_reads
		WHERE message_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY read_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list message readers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return nil, fmt.Errorf("scan message reader: %w", err)
		}
		readers[messageID] = append(readers[messageID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message readers: %w", err)
	}
	return readers, nil
}

// InsertMessage writes the message, seeds the sender's read receipt, and
// fans out mention notifications in one transaction.
func (s *PostgresStore) InsertMessage(ctx context.Context, message Message, notifications []Notification) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, project_id, sender_id, content, type, file_url, file_name, reply_to)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		`, message.ID, message.ProjectID, message.SenderID, message.Content, message.Type, message.FileURL, message.FileName, message.ReplyTo)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)
		`, message.ID, message.SenderID)
		if err != nil {
			return fmt.Errorf("insert sender read: %w", err)
		}
		for _, n := range notifications {
			if err := insertNotificationTx(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkMessagesRead records read receipts and reports how many were
// written. Re-reads are no-ops so the reader set only grows, and ids
// with no matching message are skipped instead of aborting the batch.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, messageIDs []string, userID string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	marked := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range messageIDs {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO message_reads (message_id, user_id)
				SELECT m.id, $2 FROM messages m WHERE m.id = $1
				ON CONFLICT (message_id, user_id) DO NOTHING
			`, id, userID)
			if err != nil {
				return fmt.Errorf("insert read receipt: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				marked += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}
