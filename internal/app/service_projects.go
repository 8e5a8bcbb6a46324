package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"teamhub/api/internal/rbac"
	"teamhub/api/internal/search"
	"teamhub/api/internal/store"
	"teamhub/api/internal/util"
)

type CreateProjectInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Visibility  string     `json:"visibility"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Tags        []string   `json:"tags"`
}

type AddMemberInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type UpdateProjectStatusInput struct {
	Status string `json:"status"`
}

var allowedProjectStatuses = map[string]struct{}{
	"active":    {},
	"completed": {},
	"archived":  {},
}

func projectPayload(p store.Project) map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	payload := map[string]any{
		"id":          p.ID,
		"ownerId":     p.OwnerID,
		"title":       p.Title,
		"description": p.Description,
		"status":      p.Status,
		"visibility":  p.Visibility,
		"tags":        tags,
		"createdAt":   p.CreatedAt,
	}
	if p.Deadline != nil {
		payload["deadline"] = *p.Deadline
	}
	return payload
}

func (s *Service) CreateProject(ctx context.Context, session Session, input CreateProjectInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errValidation("title is required")
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = "private"
	}
	if visibility != "private" && visibility != "public" {
		return nil, errValidation("visibility must be public or private")
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		OwnerID:     session.UserID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      "active",
		Visibility:  visibility,
		Deadline:    input.Deadline,
		Tags:        input.Tags,
		CreatedAt:   time.Now(),
	}
	owner := store.TeamMember{
		ID:        util.NewID("mbr"),
		ProjectID: project.ID,
		UserID:    session.UserID,
		Role:      string(rbac.RoleAdmin),
		InvitedBy: session.UserID,
	}

	if err := s.store.InsertProject(ctx, project, owner); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{
			ID:          project.ID,
			Title:       project.Title,
			Description: project.Description,
			Tags:        project.Tags,
			Visibility:  project.Visibility,
		})
	}

	return projectPayload(project), nil
}

// ListPublicProjects is the discovery feed: anyone signed in sees the
// newest public projects with owner names and team sizes.
func (s *Service) ListPublicProjects(ctx context.Context, limit int) ([]map[string]any, error) {
	projects, err := s.store.ListPublicProjects(ctx, limit)
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]string, 0, len(projects))
	for _, p := range projects {
		ownerIDs = append(ownerIDs, p.OwnerID)
	}
	owners, err := s.store.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		count, err := s.store.MemberCount(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		payload := projectPayload(p)
		payload["ownerName"] = displayName(owners[p.OwnerID])
		payload["memberCount"] = count
		items = append(items, payload)
	}
	return items, nil
}

// ListMyProjects returns every project the caller owns or belongs to,
// de-duplicated, newest first.
func (s *Service) ListMyProjects(ctx context.Context, session Session) ([]map[string]any, error) {
	owned, err := s.store.ListOwnedProjects(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	memberships, err := s.store.ListUserMemberships(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(owned))
	items := make([]map[string]any, 0, len(owned)+len(memberships))
	for _, p := range owned {
		seen[p.ID] = true
		payload := projectPayload(p)
		payload["role"] = string(rbac.RoleAdmin)
		items = append(items, payload)
	}
	for _, m := range memberships {
		if seen[m.ProjectID] {
			continue
		}
		project, err := s.store.GetProject(ctx, m.ProjectID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seen[m.ProjectID] = true
		payload := projectPayload(project)
		payload["role"] = m.Role
		items = append(items, payload)
	}
	return items, nil
}

// GetProject returns nil without error when the project is missing or
// the caller may not see it. Callers render that as an absent project
// rather than an authorization probe.
func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	a, err := s.resolveAccess(ctx, projectID, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !a.canView() {
		return nil, nil
	}

	owner, err := s.store.GetUserByID(ctx, a.project.OwnerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	payload := projectPayload(a.project)
	payload["ownerName"] = displayName(owner)
	payload["role"] = string(a.role)
	return payload, nil
}

// ListProjectMembers is a silent read: an empty list for projects the
// caller cannot see.
func (s *Service) ListProjectMembers(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	a, err := s.resolveAccess(ctx, projectID, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return []map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !a.canView() {
		return []map[string]any{}, nil
	}

	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		user := users[m.UserID]
		items = append(items, map[string]any{
			"id":       m.ID,
			"userId":   m.UserID,
			"name":     displayName(user),
			"email":    user.Email,
			"role":     m.Role,
			"joinedAt": m.JoinedAt,
		})
	}
	return items, nil
}

// AddTeamMember enrolls a registered user by exact email. Only admins
// may manage the roster.
func (s *Service) AddTeamMember(ctx context.Context, session Session, projectID string, input AddMemberInput) (map[string]any, error) {
	a, err := s.requireAction(ctx, projectID, session.UserID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}

	if !rbac.Assignable(input.Role) {
		return nil, errValidation("role must be viewer, editor, or admin")
	}
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, errValidation("email is required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("no registered user with that email")
	}
	if err != nil {
		return nil, err
	}

	member := store.TeamMember{
		ID:        util.NewID("mbr"),
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      input.Role,
		InvitedBy: session.UserID,
	}
	activity := store.ActivityLogEntry{
		ProjectID:    projectID,
		ActorID:      session.UserID,
		ActionType:   "member_added",
		TargetEntity: user.ID,
		Details:      fmt.Sprintf("%s joined as %s", displayName(user), input.Role),
	}
	notification := store.Notification{
		ID:               util.NewID("ntf"),
		UserID:           user.ID,
		Type:             "project_invite",
		Title:            "Added to project",
		Message:          fmt.Sprintf("%s added you to %s", session.UserName, a.project.Title),
		RelatedProjectID: projectID,
	}

	if err := s.store.AddMember(ctx, member, activity, notification); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("user is already a team member")
		}
		return nil, err
	}

	if s.email != nil && s.email.IsConfigured() {
		go func() {
			projectURL := s.cfg.AppBaseURL + "/projects/" + projectID
			if err := s.email.SendProjectInviteEmail(user.Email, displayName(user), a.project.Title, session.UserName, projectURL); err != nil {
				log.Printf("email: project invite to %s: %v", user.Email, err)
			}
		}()
	}

	return map[string]any{
		"id":     member.ID,
		"userId": user.ID,
		"name":   displayName(user),
		"email":  user.Email,
		"role":   member.Role,
	}, nil
}

func (s *Service) UpdateProjectStatus(ctx context.Context, session Session, projectID string, input UpdateProjectStatusInput) (map[string]any, error) {
	a, err := s.requireAction(ctx, projectID, session.UserID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	if _, ok := allowedProjectStatuses[input.Status]; !ok {
		return nil, errValidation("status must be active, completed, or archived")
	}

	if err := s.store.UpdateProjectStatus(ctx, projectID, input.Status); err != nil {
		return nil, err
	}

	a.project.Status = input.Status
	return projectPayload(a.project), nil
}
