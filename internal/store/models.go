package store

import "time"

type User struct {
	ID                    string
	Email                 string
	DisplayName           string
	AvatarURL             string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
}

type Project struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      string
	Visibility  string
	Deadline    *time.Time
	Tags        []string
	CreatedAt   time.Time
}

type TeamMember struct {
	ID        string
	ProjectID string
	UserID    string
	Role      string
	InvitedBy string
	JoinedAt  time.Time
}

type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	AssignedTo  string
	CreatedBy   string
	Status      string
	Priority    string
	Deadline    *time.Time
	Tags        []string
	CreatedAt   time.Time
}

type Message struct {
	ID        string
	ProjectID string
	SenderID  string
	Content   string
	Type      string
	FileURL   string
	FileName  string
	ReplyTo   string
	ReadBy    []string
	CreatedAt time.Time
}

type PollOption struct {
	OptionID string
	Text     string
	Votes    int
}

type Poll struct {
	ID        string
	ProjectID string
	CreatedBy string
	Question  string
	Options   []PollOption
	Voters    []string
	Deadline  *time.Time
	IsActive  bool
	CreatedAt time.Time
}

type GlobalPost struct {
	ID        string
	AuthorID  string
	Content   string
	Type      string
	Likes     []string
	CreatedAt time.Time
}

type PostComment struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

type Notification struct {
	ID               string
	UserID           string
	Type             string
	Title            string
	Message          string
	IsRead           bool
	RelatedProjectID string
	RelatedEntityID  string
	CreatedAt        time.Time
}

type ActivityLogEntry struct {
	ID           int64
	ProjectID    string
	ActorID      string
	ActionType   string
	TargetEntity string
	Details      string
	OldValue     string
	NewValue     string
	CreatedAt    time.Time
}

type Presence struct {
	UserID         string
	Status         string
	LastSeen       time.Time
	CurrentProject string
}
