package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return data, nil
}

func unmarshalTags(data []byte, dest *[]string) error {
	if len(data) == 0 {
		*dest = []string{}
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal tags: %w", err)
	}
	return nil
}

const projectColumns = `id, owner_id, title, description, status, visibility, deadline, tags, created_at`

func scanProjectRows(rows *sql.Rows) ([]Project, error) {
	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		var tags []byte
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Description, &item.Status, &item.Visibility, &item.Deadline, &tags, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if err := unmarshalTags(tags, &item.Tags); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

// InsertProject creates the project and enrolls the owner as an admin
// member in the same transaction.
func (s *PostgresStore) InsertProject(ctx context.Context, project Project, owner TeamMember) error {
	tags, err := marshalTags(project.Tags)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, owner_id, title, description, status, visibility, deadline, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, project.ID, project.OwnerID, project.Title, project.Description, project.Status, project.Visibility, project.Deadline, tags)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO team_members (id, project_id, user_id, role, invited_by)
			VALUES ($1, $2, $3, $4, $5)
		`, owner.ID, owner.ProjectID, owner.UserID, owner.Role, owner.InvitedBy)
		if err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	var tags []byte
	err := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID).
		Scan(&item.ID, &item.OwnerID, &item.Title, &item.Description, &item.Status, &item.Visibility, &item.Deadline, &tags, &item.CreatedAt)
	if err != nil {
		return Project{}, err
	}
	if err := unmarshalTags(tags, &item.Tags); err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListPublicProjects(ctx context.Context, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE visibility='public'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list public projects: %w", err)
	}
	defer rows.Close()
	return scanProjectRows(rows)
}

func (s *PostgresStore) ListOwnedProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE owner_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	defer rows.Close()
	return scanProjectRows(rows)
}

func (s *PostgresStore) ListUserMemberships(ctx context.Context, userID string) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, user_id, role, COALESCE(invited_by, ''), joined_at
		FROM team_members
		WHERE user_id=$1
		ORDER BY joined_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	items := make([]TeamMember, 0)
	for rows.Next() {
		var item TeamMember
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.UserID, &item.Role, &item.InvitedBy, &item.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, projectID string) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, user_id, role, COALESCE(invited_by, ''), joined_at
		FROM team_members
		WHERE project_id=$1
		ORDER BY joined_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	items := make([]TeamMember, 0)
	for rows.Next() {
		var item TeamMember
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.UserID, &item.Role, &item.InvitedBy, &item.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetMembership(ctx context.Context, projectID, userID string) (TeamMember, error) {
	var item TeamMember
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, user_id, role, COALESCE(invited_by, ''), joined_at
		FROM team_members
		WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&item.ID, &item.ProjectID, &item.UserID, &item.Role, &item.InvitedBy, &item.JoinedAt)
	if err != nil {
		return TeamMember{}, err
	}
	return item, nil
}

func (s *PostgresStore) MemberCount(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_members WHERE project_id=$1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// AddMember enrolls a user and records the membership activity plus the
// invite notification in one transaction. Returns ErrDuplicate when the
// user is already on the team.
func (s *PostgresStore) AddMember(ctx context.Context, member TeamMember, activity ActivityLogEntry, notification Notification) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO team_members (id, project_id, user_id, role, invited_by)
			VALUES ($1, $2, $3, $4, $5)
		`, member.ID, member.ProjectID, member.UserID, member.Role, member.InvitedBy)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		if err := insertActivityTx(ctx, tx, activity); err != nil {
			return err
		}
		return insertNotificationTx(ctx, tx, notification)
	})
}

func (s *PostgresStore) UpdateProjectStatus(ctx context.Context, projectID, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE projects SET status=$2 WHERE id=$1`, projectID, status)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
