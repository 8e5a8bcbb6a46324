package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *PostgresStore) UpsertPresence(ctx context.Context, p Presence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence (user_id, status, last_seen, current_project)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET status=EXCLUDED.status, last_seen=EXCLUDED.last_seen, current_project=EXCLUDED.current_project
	`, p.UserID, p.Status, p.LastSeen, p.CurrentProject)
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPresenceForUsers(ctx context.Context, userIDs []string) (map[string]Presence, error) {
	presence := make(map[string]Presence, len(userIDs))
	if len(userIDs) == 0 {
		return presence, nil
	}
	placeholders := make([]string, 0, len(userIDs))
	args := make([]any, 0, len(userIDs))
	for i, id := range userIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, status, last_seen, COALESCE(current_project, '')
		FROM presence
		WHERE user_id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Presence
		if err := rows.Scan(&item.UserID, &item.Status, &item.LastSeen, &item.CurrentProject); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		presence[item.UserID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence: %w", err)
	}
	return presence, nil
}

// SweepPresence marks everyone whose heartbeat predates the cutoff as
// offline and reports how many rows changed.
func (s *PostgresStore) SweepPresence(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE presence SET status='offline'
		WHERE last_seen < $1 AND status <> 'offline'
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep presence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep presence rows: %w", err)
	}
	return int(affected), nil
}
