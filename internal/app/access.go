package app

import (
	"context"
	"database/sql"
	"errors"

	"teamhub/api/internal/rbac"
	"teamhub/api/internal/store"
)

// access is the resolved relationship between a user and a project.
// Every project-scoped operation goes through here; nothing else
// consults team_members directly.
type access struct {
	project store.Project
	role    rbac.Role
	member  store.TeamMember
}

func (a access) isMember() bool {
	return a.role != rbac.RoleNone
}

// resolveAccess loads the project and the caller's membership. A missing
// project surfaces as sql.ErrNoRows so reads can map it to a silent
// empty result and writes to 404.
func (s *Service) resolveAccess(ctx context.Context, projectID, userID string) (access, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return access{}, err
	}

	member, err := s.store.GetMembership(ctx, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return access{project: project, role: rbac.RoleNone}, nil
	}
	if err != nil {
		return access{}, err
	}

	return access{
		project: project,
		role:    rbac.Normalize(member.Role),
		member:  member,
	}, nil
}

// requireAction resolves access and rejects callers whose role cannot
// perform the action. Non-members of private projects get the same
// 403 as under-privileged members.
func (s *Service) requireAction(ctx context.Context, projectID, userID string, action rbac.Action) (access, error) {
	a, err := s.resolveAccess(ctx, projectID, userID)
	if err != nil {
		return access{}, err
	}
	if !rbac.Can(a.role, action) {
		return access{}, errForbidden("insufficient permissions")
	}
	return a, nil
}

// requireMember admits any team member regardless of role.
func (s *Service) requireMember(ctx context.Context, projectID, userID string) (access, error) {
	a, err := s.resolveAccess(ctx, projectID, userID)
	if err != nil {
		return access{}, err
	}
	if !a.isMember() {
		return access{}, errForbidden("not a team member")
	}
	return a, nil
}

// canView reports whether the user may read project content: members
// always, everyone else only when the project is public.
func (a access) canView() bool {
	return a.isMember() || a.project.Visibility == "public"
}
