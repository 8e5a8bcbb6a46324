package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"teamhub/api/internal/rbac"
	"teamhub/api/internal/store"
	"teamhub/api/internal/util"
)

type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assignedTo"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Tags        []string   `json:"tags"`
}

type UpdateTaskStatusInput struct {
	Status string `json:"status"`
}

type UpdateTaskAssignmentInput struct {
	AssignedTo string `json:"assignedTo"`
}

var allowedTaskStatuses = map[string]struct{}{
	"todo":        {},
	"in_progress": {},
	"done":        {},
}

var allowedTaskPriorities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
}

func taskPayload(t store.Task) map[string]any {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	payload := map[string]any{
		"id":          t.ID,
		"projectId":   t.ProjectID,
		"title":       t.Title,
		"description": t.Description,
		"assignedTo":  t.AssignedTo,
		"createdBy":   t.CreatedBy,
		"status":      t.Status,
		"priority":    t.Priority,
		"tags":        tags,
		"createdAt":   t.CreatedAt,
	}
	if t.Deadline != nil {
		payload["deadline"] = *t.Deadline
	}
	return payload
}

// ListTasks is a silent read: non-members of private projects get an
// empty board.
func (s *Service) ListTasks(ctx context.Context, session Session, projectID, status string) ([]map[string]any, error) {
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

	if status != "" {
		if _, ok := allowedTaskStatuses[status]; !ok {
			return nil, errValidation("status must be todo, in_progress, or done")
		}
	}

	tasks, err := s.store.ListTasks(ctx, projectID, status)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.AssignedTo != "" {
			userIDs = append(userIDs, t.AssignedTo)
		}
	}
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		payload := taskPayload(t)
		if t.AssignedTo != "" {
			payload["assigneeName"] = displayName(users[t.AssignedTo])
		}
		items = append(items, payload)
	}
	return items, nil
}

// CreateTask needs contribute rights. The assignee, when set, must be a
// team member and gets a task_assigned notification unless they created
// the task themselves.
func (s *Service) CreateTask(ctx context.Context, session Session, projectID string, input CreateTaskInput) (map[string]any, error) {
	a, err := s.requireAction(ctx, projectID, session.UserID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errValidation("title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = "medium"
	}
	if _, ok := allowedTaskPriorities[priority]; !ok {
		return nil, errValidation("priority must be low, medium, or high")
	}

	if input.AssignedTo != "" {
		_, err := s.store.GetMembership(ctx, projectID, input.AssignedTo)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errValidation("assignee must be a team member")
		}
		if err != nil {
			return nil, err
		}
	}

	task := store.Task{
		ID:          util.NewID("tsk"),
		ProjectID:   projectID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		AssignedTo:  input.AssignedTo,
		CreatedBy:   session.UserID,
		Status:      "todo",
		Priority:    priority,
		Deadline:    input.Deadline,
		Tags:        input.Tags,
		CreatedAt:   time.Now(),
	}
	activity := store.ActivityLogEntry{
		ProjectID:    projectID,
		ActorID:      session.UserID,
		ActionType:   "task_created",
		TargetEntity: task.ID,
		Details:      title,
	}

	var notification *store.Notification
	if task.AssignedTo != "" && task.AssignedTo != session.UserID {
		notification = &store.Notification{
			ID:               util.NewID("ntf"),
			UserID:           task.AssignedTo,
			Type:             "task_assigned",
			Title:            "New task assigned",
			Message:          fmt.Sprintf("%s assigned you %q in %s", session.UserName, title, a.project.Title),
			RelatedProjectID: projectID,
			RelatedEntityID:  task.ID,
		}
	}

	if err := s.store.InsertTask(ctx, task, activity, notification); err != nil {
		return nil, err
	}
	return taskPayload(task), nil
}

// UpdateTaskStatus moves a task across the board. Completion is logged
// as its own activity type.
func (s *Service) UpdateTaskStatus(ctx context.Context, session Session, taskID string, input UpdateTaskStatusInput) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAction(ctx, task.ProjectID, session.UserID, rbac.ActionContribute); err != nil {
		return nil, err
	}
	if _, ok := allowedTaskStatuses[input.Status]; !ok {
		return nil, errValidation("status must be todo, in_progress, or done")
	}

	actionType := "task_updated"
	if input.Status == "done" {
		actionType = "task_completed"
	}
	activity := store.ActivityLogEntry{
		ProjectID:    task.ProjectID,
		ActorID:      session.UserID,
		ActionType:   actionType,
		TargetEntity: task.ID,
		Details:      task.Title,
		OldValue:     task.Status,
		NewValue:     input.Status,
	}

	if err := s.store.UpdateTaskStatus(ctx, taskID, input.Status, activity); err != nil {
		return nil, err
	}

	task.Status = input.Status
	return taskPayload(task), nil
}

// UpdateTaskAssignment reassigns a task. The new assignee must be a team
// member; they are notified unless they reassigned it to themselves.
// An empty assignee clears the assignment.
func (s *Service) UpdateTaskAssignment(ctx context.Context, session Session, taskID string, input UpdateTaskAssignmentInput) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	a, err := s.requireAction(ctx, task.ProjectID, session.UserID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}

	if input.AssignedTo != "" {
		_, err := s.store.GetMembership(ctx, task.ProjectID, input.AssignedTo)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errValidation("assignee must be a team member")
		}
		if err != nil {
			return nil, err
		}
	}

	var notification *store.Notification
	if input.AssignedTo != "" && input.AssignedTo != session.UserID && input.AssignedTo != task.AssignedTo {
		notification = &store.Notification{
			ID:               util.NewID("ntf"),
			UserID:           input.AssignedTo,
			Type:             "task_assigned",
			Title:            "New task assigned",
			Message:          fmt.Sprintf("%s assigned you %q in %s", session.UserName, task.Title, a.project.Title),
			RelatedProjectID: task.ProjectID,
			RelatedEntityID:  task.ID,
		}
	}

	if err := s.store.UpdateTaskAssignment(ctx, taskID, input.AssignedTo, notification); err != nil {
		return nil, err
	}

	task.AssignedTo = input.AssignedTo
	return taskPayload(task), nil
}
