// Package search provides cross-entity search over public projects,
// users, and feed posts, backed by Meilisearch with a PostgreSQL
// fallback.
package search

// ResultType identifies which entity a search hit came from.
type ResultType string

const (
	ResultProject ResultType = "project"
	ResultUser    ResultType = "user"
	ResultPost    ResultType = "post"
)

// Query describes a search request.
type Query struct {
	Text       string
	Limit      int
	Offset     int
	FilterType ResultType
}

// Result is a single search hit.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet,omitempty"`
	Tags    []string   `json:"tags,omitempty"`
}

// Response is the merged search result set.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ProjectRecord is the indexed shape of a public project.
type ProjectRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Visibility  string   `json:"visibility"`
}

// UserRecord is the indexed shape of a user profile.
type UserRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// PostRecord is the indexed shape of a global feed post.
type PostRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Type    string `json:"type"`
}
