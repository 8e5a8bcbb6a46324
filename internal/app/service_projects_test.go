package app

import (
	"context"
	"database/sql"
	"testing"

	"teamhub/api/internal/store"
)

func TestCreateProjectEnrollsOwnerAsAdmin(t *testing.T) {
	var owner store.TeamMember
	fs := &fakeStore{
		insertProjectFn: func(_ context.Context, project store.Project, member store.TeamMember) error {
			if project.Status != "active" {
				t.Fatalf("expected new projects to start active, got %s", project.Status)
			}
			if member.ProjectID != project.ID {
				t.Fatalf("owner membership bound to %s, want %s", member.ProjectID, project.ID)
			}
			owner = member
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.CreateProject(context.Background(), testSession("usr_1", "Avery"), CreateProjectInput{
		Title: "Launch",
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if owner.UserID != "usr_1" || owner.Role != "admin" {
		t.Errorf("expected owner enrolled as admin, got %+v", owner)
	}
	if payload["visibility"] != "private" {
		t.Errorf("expected default private visibility, got %v", payload["visibility"])
	}
}

func TestCreateProjectValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateProject(context.Background(), testSession("usr_1", "Avery"), CreateProjectInput{Title: "   "})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")

	_, err = svc.CreateProject(context.Background(), testSession("usr_1", "Avery"), CreateProjectInput{
		Title:      "Launch",
		Visibility: "secret",
	})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")
}

func TestGetProjectSilentForPrivateNonMember(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Visibility: "private"}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.GetProject(context.Background(), testSession("usr_outsider", "Out"), "prj_1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if payload != nil {
		t.Errorf("expected nil payload for a hidden project, got %v", payload)
	}
}

func TestGetProjectSilentForMissingProject(t *testing.T) {
	svc := newTestService(&fakeStore{})

	payload, err := svc.GetProject(context.Background(), testSession("usr_1", "Avery"), "prj_missing")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if payload != nil {
		t.Errorf("expected nil payload for a missing project, got %v", payload)
	}
}

func TestGetProjectIncludesRoleAndOwnerName(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, OwnerID: "usr_owner", Title: "Launch", Visibility: "private"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "editor"),
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Olive Owner"}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.GetProject(context.Background(), testSession("usr_1", "Avery"), "prj_1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if payload["role"] != "editor" {
		t.Errorf("expected role editor, got %v", payload["role"])
	}
	if payload["ownerName"] != "Olive Owner" {
		t.Errorf("expected owner name, got %v", payload["ownerName"])
	}
}

func TestAddTeamMemberRequiresAdmin(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Title: "Launch"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "editor"),
	}
	svc := newTestService(fs)

	_, err := svc.AddTeamMember(context.Background(), testSession("usr_1", "Avery"), "prj_1", AddMemberInput{
		Email: "sam@example.com",
		Role:  "viewer",
	})
	assertDomainError(t, err, 403, "FORBIDDEN")
}

func TestAddTeamMemberUnknownEmail(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Title: "Launch"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "admin"),
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	_, err := svc.AddTeamMember(context.Background(), testSession("usr_1", "Avery"), "prj_1", AddMemberInput{
		Email: "nobody@example.com",
		Role:  "viewer",
	})
	assertDomainError(t, err, 404, "NOT_FOUND")
}

func TestAddTeamMemberDuplicate(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Title: "Launch"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "admin"),
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_2", Email: email, DisplayName: "Sam"}, nil
		},
		addMemberFn: func(context.Context, store.TeamMember, store.ActivityLogEntry, store.Notification) error {
			return store.ErrDuplicate
		},
	}
	svc := newTestService(fs)

	_, err := svc.AddTeamMember(context.Background(), testSession("usr_1", "Avery"), "prj_1", AddMemberInput{
		Email: "sam@example.com",
		Role:  "viewer",
	})
	assertDomainError(t, err, 409, "CONFLICT")
}

func TestAddTeamMemberNormalizesEmailAndNotifies(t *testing.T) {
	var (
		member       store.TeamMember
		activity     store.ActivityLogEntry
		notification store.Notification
		lookedUp     string
	)
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Title: "Launch"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "admin"),
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			lookedUp = email
			return store.User{ID: "usr_2", Email: email, DisplayName: "Sam"}, nil
		},
		addMemberFn: func(_ context.Context, m store.TeamMember, a store.ActivityLogEntry, n store.Notification) error {
			member, activity, notification = m, a, n
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.AddTeamMember(context.Background(), testSession("usr_1", "Avery"), "prj_1", AddMemberInput{
		Email: "  Sam@Example.COM ",
		Role:  "editor",
	})
	if err != nil {
		t.Fatalf("AddTeamMember() error = %v", err)
	}
	if lookedUp != "sam@example.com" {
		t.Errorf("expected normalized email, got %q", lookedUp)
	}
	if member.UserID != "usr_2" || member.Role != "editor" || member.InvitedBy != "usr_1" {
		t.Errorf("unexpected member: %+v", member)
	}
	if activity.ActionType != "member_added" {
		t.Errorf("expected member_added activity, got %s", activity.ActionType)
	}
	if notification.UserID != "usr_2" || notification.Type != "project_invite" {
		t.Errorf("unexpected notification: %+v", notification)
	}
}

func TestAddTeamMemberRejectsUnassignableRole(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "admin"),
	}
	svc := newTestService(fs)

	_, err := svc.AddTeamMember(context.Background(), testSession("usr_1", "Avery"), "prj_1", AddMemberInput{
		Email: "sam@example.com",
		Role:  "owner",
	})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")
}

func TestUpdateProjectStatusValidates(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Status: "active"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "admin"),
	}
	svc := newTestService(fs)

	_, err := svc.UpdateProjectStatus(context.Background(), testSession("usr_1", "Avery"), "prj_1", UpdateProjectStatusInput{Status: "paused"})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")

	payload, err := svc.UpdateProjectStatus(context.Background(), testSession("usr_1", "Avery"), "prj_1", UpdateProjectStatusInput{Status: "archived"})
	if err != nil {
		t.Fatalf("UpdateProjectStatus() error = %v", err)
	}
	if payload["status"] != "archived" {
		t.Errorf("expected archived, got %v", payload["status"])
	}
}

func TestListMyProjectsDeduplicates(t *testing.T) {
	fs := &fakeStore{
		listOwnedProjectsFn: func(context.Context, string) ([]store.Project, error) {
			return []store.Project{{ID: "prj_1", Title: "Mine"}}, nil
		},
		listUserMembershipsFn: func(context.Context, string) ([]store.TeamMember, error) {
			return []store.TeamMember{
				{ProjectID: "prj_1", Role: "admin"},
				{ProjectID: "prj_2", Role: "viewer"},
			}, nil
		},
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Title: "Joined"}, nil
		},
	}
	svc := newTestService(fs)

	items, err := svc.ListMyProjects(context.Background(), testSession("usr_1", "Avery"))
	if err != nil {
		t.Fatalf("ListMyProjects() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(items))
	}
	if items[0]["role"] != "admin" {
		t.Errorf("expected owned project role admin, got %v", items[0]["role"])
	}
	if items[1]["role"] != "viewer" {
		t.Errorf("expected membership role viewer, got %v", items[1]["role"])
	}
}

func TestListPublicProjectsEnriches(t *testing.T) {
	fs := &fakeStore{
		listPublicProjectsFn: func(context.Context, int) ([]store.Project, error) {
			return []store.Project{{ID: "prj_1", OwnerID: "usr_owner", Title: "Open", Visibility: "public"}}, nil
		},
		getUsersByIDsFn: func(context.Context, []string) (map[string]store.User, error) {
			return map[string]store.User{"usr_owner": {ID: "usr_owner", DisplayName: "Olive"}}, nil
		},
		memberCountFn: func(context.Context, string) (int, error) { return 4, nil },
	}
	svc := newTestService(fs)

	items, err := svc.ListPublicProjects(context.Background(), 20)
	if err != nil {
		t.Fatalf("ListPublicProjects() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 project, got %d", len(items))
	}
	if items[0]["ownerName"] != "Olive" || items[0]["memberCount"] != 4 {
		t.Errorf("expected enriched payload, got %v", items[0])
	}
}

func TestListProjectMembersSilentForOutsiders(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Visibility: "private"}, nil
		},
	}
	svc := newTestService(fs)

	items, err := svc.ListProjectMembers(context.Background(), testSession("usr_outsider", "Out"), "prj_1")
	if err != nil {
		t.Fatalf("ListProjectMembers() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty roster, got %d", len(items))
	}
}
