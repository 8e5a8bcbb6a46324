package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL as a fallback. Matching is
// substring-based, which mirrors what the primary index returns for
// short queries.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across public projects, users, and
// global posts, ranked by recency within each entity.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + strings.ToLower(strings.TrimSpace(q.Text)) + "%"
	args := []any{pattern}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, `
			SELECT 'project'::text AS type, p.id, p.title, p.description AS snippet,
				p.tags::text AS tags, p.created_at
			FROM projects p
			WHERE p.visibility = 'public'
				AND (LOWER(p.title) LIKE $1 OR LOWER(p.description) LIKE $1 OR LOWER(p.tags::text) LIKE $1)`)
	}

	if q.FilterType == "" || q.FilterType == ResultUser {
		subQueries = append(subQueries, `
			SELECT 'user'::text AS type, u.id, u.display_name AS title, u.email AS snippet,
				''::text AS tags, u.created_at
			FROM users u
			WHERE LOWER(u.display_name) LIKE $1 OR u.email LIKE $1`)
	}

	if q.FilterType == "" || q.FilterType == ResultPost {
		subQueries = append(subQueries, `
			SELECT 'post'::text AS type, g.id, g.content AS title, g.type AS snippet,
				''::text AS tags, g.created_at
			FROM global_posts g
			WHERE LOWER(g.content) LIKE $1`)
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	var total int
	if err := p.db.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, tags
		FROM (%s) sub
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

	rows, err := p.db.Query(dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var rtyp, tags string
		if err := rows.Scan(&rtyp, &r.ID, &r.Title, &r.Snippet, &tags); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(rtyp)
		if tags != "" {
			_ = json.Unmarshal([]byte(tags), &r.Tags)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts iterate: %w", err)
	}

	return results, total, nil
}

// LoadAllRecords reads every searchable entity for bulk reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []UserRecord, []PostRecord, error) {
	projects, err := p.loadProjects(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	users, err := p.loadUsers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	posts, err := p.loadPosts(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return projects, users, posts, nil
}

func (p *PgFTS) loadProjects(ctx context.Context) ([]ProjectRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, tags, visibility FROM projects WHERE visibility='public'
	`)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	defer rows.Close()
	var records []ProjectRecord
	for rows.Next() {
		var r ProjectRecord
		var tags []byte
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &tags, &r.Visibility); err != nil {
			return nil, fmt.Errorf("scan project record: %w", err)
		}
		_ = json.Unmarshal(tags, &r.Tags)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PgFTS) loadUsers(ctx context.Context) ([]UserRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, display_name, email FROM users`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()
	var records []UserRecord
	for rows.Next() {
		var r UserRecord
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.Email); err != nil {
			return nil, fmt.Errorf("scan user record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PgFTS) loadPosts(ctx context.Context) ([]PostRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, content, type FROM global_posts`)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	defer rows.Close()
	var records []PostRecord
	for rows.Next() {
		var r PostRecord
		if err := rows.Scan(&r.ID, &r.Content, &r.Type); err != nil {
			return nil, fmt.Errorf("scan post record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
