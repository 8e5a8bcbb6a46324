package app

import (
	"context"
	"strings"
	"time"

	"teamhub/api/internal/search"
	"teamhub/api/internal/store"
	"teamhub/api/internal/util"
)

type CreatePostInput struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

type CreateCommentInput struct {
	Content string `json:"content"`
}

var allowedPostTypes = map[string]struct{}{
	"status":       {},
	"announcement": {},
}

// ListFeed returns the newest posts across all projects with author
// names, like sets, and comments.
func (s *Service) ListFeed(ctx context.Context, limit int) ([]map[string]any, error) {
	posts, err := s.store.ListGlobalPosts(ctx, limit)
	if err != nil {
		return nil, err
	}

	postIDs := make([]string, 0, len(posts))
	userIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		userIDs = append(userIDs, p.AuthorID)
	}
	comments, err := s.store.ListPostComments(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	for _, list := range comments {
		for _, c := range list {
			userIDs = append(userIDs, c.AuthorID)
		}
	}
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		likes := p.Likes
		if likes == nil {
			likes = []string{}
		}
		commentPayloads := make([]map[string]any, 0, len(comments[p.ID]))
		for _, c := range comments[p.ID] {
			commentPayloads = append(commentPayloads, map[string]any{
				"id":         c.ID,
				"authorId":   c.AuthorID,
				"authorName": displayName(users[c.AuthorID]),
				"content":    c.Content,
				"createdAt":  c.CreatedAt,
			})
		}
		items = append(items, map[string]any{
			"id":         p.ID,
			"authorId":   p.AuthorID,
			"authorName": displayName(users[p.AuthorID]),
			"content":    p.Content,
			"type":       p.Type,
			"likes":      likes,
			"likeCount":  len(likes),
			"comments":   commentPayloads,
			"createdAt":  p.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) CreatePost(ctx context.Context, session Session, input CreatePostInput) (map[string]any, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	postType := input.Type
	if postType == "" {
		postType = "status"
	}
	if _, ok := allowedPostTypes[postType]; !ok {
		return nil, errValidation("type must be status or announcement")
	}

	post := store.GlobalPost{
		ID:        util.NewID("pst"),
		AuthorID:  session.UserID,
		Content:   content,
		Type:      postType,
		Likes:     []string{},
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertGlobalPost(ctx, post); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexPost(search.PostRecord{
			ID:      post.ID,
			Content: post.Content,
			Type:    post.Type,
		})
	}

	return map[string]any{
		"id":         post.ID,
		"authorId":   post.AuthorID,
		"authorName": session.UserName,
		"content":    post.Content,
		"type":       post.Type,
		"likes":      []string{},
		"likeCount":  0,
		"comments":   []map[string]any{},
		"createdAt":  post.CreatedAt,
	}, nil
}

// ToggleLike flips the caller's like and reports the new state.
func (s *Service) ToggleLike(ctx context.Context, session Session, postID string) (map[string]any, error) {
	if _, err := s.store.GetGlobalPost(ctx, postID); err != nil {
		return nil, err
	}
	liked, count, err := s.store.ToggleLike(ctx, postID, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"liked":     liked,
		"likeCount": count,
	}, nil
}

func (s *Service) CreateComment(ctx context.Context, session Session, postID string, input CreateCommentInput) (map[string]any, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	if _, err := s.store.GetGlobalPost(ctx, postID); err != nil {
		return nil, err
	}

	comment := store.PostComment{
		ID:        util.NewID("cmt"),
		PostID:    postID,
		AuthorID:  session.UserID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":         comment.ID,
		"postId":     comment.PostID,
		"authorId":   comment.AuthorID,
		"authorName": session.UserName,
		"content":    comment.Content,
		"createdAt":  comment.CreatedAt,
	}, nil
}

// GlobalSearch spans public projects, users, and feed posts.
func (s *Service) GlobalSearch(ctx context.Context, query search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query.Text}
	}
	return s.search.Search(query)
}
