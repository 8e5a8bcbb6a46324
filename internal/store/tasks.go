package store

import (
	"context"
	"database/sql"
	"fmt"
)

const taskColumns = `id, project_id, title, description, COALESCE(assigned_to, ''), created_by, status, priority, deadline, tags, created_at`

func scanTask(row *sql.Row) (Task, error) {
	var item Task
	var tags []byte
	err := row.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.AssignedTo, &item.CreatedBy, &item.Status, &item.Priority, &item.Deadline, &tags, &item.CreatedAt)
	if err != nil {
		return Task{}, err
	}
	if err := unmarshalTags(tags, &item.Tags); err != nil {
		return Task{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, taskID))
}

// ListTasks returns a project's tasks, newest first, optionally filtered
// by status.
func (s *PostgresStore) ListTasks(ctx context.Context, projectID, status string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id=$1`
	args := []any{projectID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		var tags []byte
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.AssignedTo, &item.CreatedBy, &item.Status, &item.Priority, &item.Deadline, &tags, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := unmarshalTags(tags, &item.Tags); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// InsertTask writes the task, the activity entry, and the assignment
// notification (when present) in one transaction.
func (s *PostgresStore) InsertTask(ctx context.Context, task Task, activity ActivityLogEntry, notification *Notification) error {
	tags, err := marshalTags(task.Tags)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, project_id, title, description, assigned_to, created_by, status, priority, deadline, tags)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		`, task.ID, task.ProjectID, task.Title, task.Description, task.AssignedTo, task.CreatedBy, task.Status, task.Priority, task.Deadline, tags)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		if err := insertActivityTx(ctx, tx, activity); err != nil {
			return err
		}
		if notification != nil {
			return insertNotificationTx(ctx, tx, *notification)
		}
		return nil
	})
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID, status string, activity ActivityLogEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE tasks SET status=$2 WHERE id=$1`, taskID, status)
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task status rows: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return insertActivityTx(ctx, tx, activity)
	})
}

func (s *PostgresStore) UpdateTaskAssignment(ctx context.Context, taskID, assignedTo string, notification *Notification) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE tasks SET assigned_to=NULLIF($2, '') WHERE id=$1`, taskID, assignedTo)
		if err != nil {
			return fmt.Errorf("update task assignment: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task assignment rows: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		if notification != nil {
			return insertNotificationTx(ctx, tx, *notification)
		}
		return nil
	})
}
