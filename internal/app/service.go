package app

import (
	"context"
	"strings"
	"time"

	"teamhub/api/internal/auth"
	"teamhub/api/internal/authpw"
	"teamhub/api/internal/blob"
	"teamhub/api/internal/config"
	"teamhub/api/internal/email"
	"teamhub/api/internal/search"
	"teamhub/api/internal/session"
	"teamhub/api/internal/store"
	"teamhub/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUsersByIDs(context.Context, []string) (map[string]store.User, error)
	SearchUsers(context.Context, string, int) ([]store.User, error)

	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertProject(context.Context, store.Project, store.TeamMember) error
	GetProject(context.Context, string) (store.Project, error)
	ListPublicProjects(context.Context, int) ([]store.Project, error)
	ListOwnedProjects(context.Context, string) ([]store.Project, error)
	ListUserMemberships(context.Context, string) ([]store.TeamMember, error)
	ListMembers(context.Context, string) ([]store.TeamMember, error)
	GetMembership(context.Context, string, string) (store.TeamMember, error)
	MemberCount(context.Context, string) (int, error)
	AddMember(context.Context, store.TeamMember, store.ActivityLogEntry, store.Notification) error
	UpdateProjectStatus(context.Context, string, string) error

	ListTasks(context.Context, string, string) ([]store.Task, error)
	GetTask(context.Context, string) (store.Task, error)
	InsertTask(context.Context, store.Task, store.ActivityLogEntry, *store.Notification) error
	UpdateTaskStatus(context.Context, string, string, store.ActivityLogEntry) error
	UpdateTaskAssignment(context.Context, string, string, *store.Notification) error

	ListMessages(context.Context, string, int) ([]store.Message, error)
	InsertMessage(context.Context, store.Message, []store.Notification) error
	MarkMessagesRead(context.Context, []string, string) (int, error)

	ListPolls(context.Context, string) ([]store.Poll, error)
	GetPoll(context.Context, string) (store.Poll, error)
	InsertPoll(context.Context, store.Poll, store.ActivityLogEntry, []store.Notification) error
	RecordVote(context.Context, string, string, string) error
	ClosePoll(context.Context, string) error

	ListGlobalPosts(context.Context, int) ([]store.GlobalPost, error)
	GetGlobalPost(context.Context, string) (store.GlobalPost, error)
	InsertGlobalPost(context.Context, store.GlobalPost) error
	ToggleLike(context.Context, string, string) (bool, int, error)
	InsertComment(context.Context, store.PostComment) error
	ListPostComments(context.Context, []string) (map[string][]store.PostComment, error)

	ListNotifications(context.Context, string, int) ([]store.Notification, error)
	UnreadNotificationCount(context.Context, string) (int, error)
	MarkNotificationRead(context.Context, string, string) error
	MarkAllNotificationsRead(context.Context, string) error
	ListActivity(context.Context, string, int) ([]store.ActivityLogEntry, error)

	UpsertPresence(context.Context, store.Presence) error
	GetPresenceForUsers(context.Context, []string) (map[string]store.Presence, error)
	SweepPresence(context.Context, time.Time) (int, error)

	Ping(ctx context.Context) error
}

// sessionStore is the Redis-backed refresh token store. Optional; the
// data store carries the fallback.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
	email    *email.Service
	blobs    *blob.Service
	authpw   *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore) *Service {
	return &Service{
		cfg:   cfg,
		store: dataStore,
	}
}

// NewWithDeps wires the optional services. Any of them may be nil.
func NewWithDeps(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, searchSvc *search.Service, emailSvc *email.Service, blobSvc *blob.Service) *Service {
	svc := &Service{
		cfg:    cfg,
		store:  dataStore,
		search: searchSvc,
		email:  emailSvc,
		blobs:  blobSvc,
		authpw: authpw.NewService(dataStore),
	}
	if sessions != nil {
		svc.sessions = sessions
	}
	return svc
}

// AuthPasswordService exposes the email/password auth backend.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SMTPConfigured reports whether outbound email works.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// SweepToken guards the operator presence-sweep endpoint.
func (s *Service) SweepToken() string {
	return s.cfg.SweepToken
}

// SendVerificationEmail delivers the signup verification link.
func (s *Service) SendVerificationEmail(to, userName, token string) error {
	if s.email == nil || !s.email.IsConfigured() {
		return nil
	}
	url := s.cfg.AppBaseURL + "/verify-email?token=" + token
	return s.email.SendVerificationEmail(to, userName, url)
}

// SendPasswordResetEmail delivers the reset link.
func (s *Service) SendPasswordResetEmail(to, userName, token string) error {
	if s.email == nil || !s.email.IsConfigured() {
		return nil
	}
	url := s.cfg.AppBaseURL + "/reset-password?token=" + token
	return s.email.SendPasswordResetEmail(to, userName, url)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// displayName resolves the name shown for a user everywhere in the app:
// the profile name, else the email local part, else "Unknown User".
func displayName(user store.User) string {
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	if user.Email != "" {
		if at := strings.Index(user.Email, "@"); at > 0 {
			return user.Email[:at]
		}
		return user.Email
	}
	return "Unknown User"
}

func (s *Service) userName(ctx context.Context, userID string) string {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "Unknown User"
	}
	return displayName(user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: displayName(user),
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	tokenHash := auth.HashToken(refresh)
	if s.sessions != nil {
		err = s.sessions.SaveRefreshSession(ctx, tokenHash, user, refreshExpires)
	} else {
		err = s.store.SaveRefreshSession(ctx, tokenHash, user.ID, refreshExpires)
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     displayName(user),
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// CreateSession mints an access/refresh pair for an authenticated user.
func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	var user store.User
	var err error
	if s.sessions != nil {
		user, err = s.sessions.LookupRefreshSession(ctx, tokenHash)
	} else {
		user, err = s.store.LookupRefreshSession(ctx, tokenHash)
	}
	if err != nil {
		return Session{}, err
	}
	if user.Email == "" || user.DisplayName == "" {
		if full, err := s.store.GetUserByID(ctx, user.ID); err == nil {
			user = full
		}
	}
	if s.sessions != nil {
		err = s.sessions.RevokeRefreshSession(ctx, tokenHash)
	} else {
		err = s.store.RevokeRefreshSession(ctx, tokenHash)
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  displayName(user),
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		tokenHash := auth.HashToken(refreshToken)
		if s.sessions != nil {
			_ = s.sessions.RevokeRefreshSession(ctx, tokenHash)
		} else {
			_ = s.store.RevokeRefreshSession(ctx, tokenHash)
		}
	}
	return nil
}

// SearchUsers finds teammates to invite by name or email fragment.
func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	users, err := s.store.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":    user.ID,
			"name":  displayName(user),
			"email": user.Email,
		})
	}
	return items, nil
}

// IndexUserProfile pushes a user into the search index after signup.
func (s *Service) IndexUserProfile(user store.User) {
	if s.search == nil {
		return
	}
	s.search.IndexUser(search.UserRecord{
		ID:          user.ID,
		DisplayName: displayName(user),
		Email:       user.Email,
	})
}
