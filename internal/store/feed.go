package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const postColumns = `id, author_id, content, type, created_at`

func (s *PostgresStore) GetGlobalPost(ctx context.Context, postID string) (GlobalPost, error) {
	var item GlobalPost
	err := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM global_posts WHERE id=$1`, postID).
		Scan(&item.ID, &item.AuthorID, &item.Content, &item.Type, &item.CreatedAt)
	if err != nil {
		return GlobalPost{}, err
	}
	likes, err := s.postLikers(ctx, []string{item.ID})
	if err != nil {
		return GlobalPost{}, err
	}
	item.Likes = likes[item.ID]
	if item.Likes == nil {
		item.Likes = []string{}
	}
	return item, nil
}

// ListGlobalPosts returns the newest posts across all projects with
// their like sets attached.
func (s *PostgresStore) ListGlobalPosts(ctx context.Context, limit int) ([]GlobalPost, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM global_posts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]GlobalPost, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var item GlobalPost
		if err := rows.Scan(&item.ID, &item.AuthorID, &item.Content, &item.Type, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		item.Likes = []string{}
		items = append(items, item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	likes, err := s.postLikers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if set, ok := likes[items[i].ID]; ok {
			items[i].Likes = set
		}
	}
	return items, nil
}

func (s *PostgresStore) postLikers(ctx context.Context, postIDs []string) (map[string][]string, error) {
	likes := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return likes, nil
	}
	placeholders := make([]string, 0, len(postIDs))
	args := make([]any, 0, len(postIDs))
	for i, id := range postIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, user_id FROM post_likes
		WHERE post_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY liked_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list post likes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("scan post like: %w", err)
		}
		likes[postID] = append(likes[postID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post likes: %w", err)
	}
	return likes, nil
}

func (s *PostgresStore) InsertGlobalPost(ctx context.Context, post GlobalPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO global_posts (id, author_id, content, type)
		VALUES ($1, $2, $3, $4)
	`, post.ID, post.AuthorID, post.Content, post.Type)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// ToggleLike flips the caller's like on a post and reports the resulting
// state plus the fresh like count.
func (s *PostgresStore) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	var liked bool
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM post_likes WHERE post_id=$1 AND user_id=$2
		`, postID, userID)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove like rows: %w", err)
		}
		if removed == 0 {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
			`, postID, userID)
			if err != nil {
				return fmt.Errorf("insert like: %w", err)
			}
			liked = true
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id=$1`, postID).Scan(&count); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment PostComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, author_id, content)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.PostID, comment.AuthorID, comment.Content)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPostComments(ctx context.Context, postIDs []string) (map[string][]PostComment, error) {
	comments := make(map[string][]PostComment, len(postIDs))
	if len(postIDs) == 0 {
		return comments, nil
	}
	placeholders := make([]string, 0, len(postIDs))
	args := make([]any, 0, len(postIDs))
	for i, id := range postIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, content, created_at
		FROM post_comments
		WHERE post_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY created_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item PostComment
		if err := rows.Scan(&item.ID, &item.PostID, &item.AuthorID, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments[item.PostID] = append(comments[item.PostID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}
