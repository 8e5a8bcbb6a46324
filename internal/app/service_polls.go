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

type CreatePollInput struct {
	Question string     `json:"question"`
	Options  []string   `json:"options"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type VoteInput struct {
	OptionID string `json:"optionId"`
}

func pollPayload(p store.Poll) map[string]any {
	options := make([]map[string]any, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, map[string]any{
			"id":    o.OptionID,
			"text":  o.Text,
			"votes": o.Votes,
		})
	}
	voters := p.Voters
	if voters == nil {
		voters = []string{}
	}
	payload := map[string]any{
		"id":        p.ID,
		"projectId": p.ProjectID,
		"createdBy": p.CreatedBy,
		"question":  p.Question,
		"options":   options,
		"voters":    voters,
		"isActive":  p.IsActive,
		"createdAt": p.CreatedAt,
	}
	if p.Deadline != nil {
		payload["deadline"] = *p.Deadline
	}
	return payload
}

// ListPolls carries a hasVoted flag per entry. Non-members can read
// public projects; private projects read as silent empty. The active
// filter also drops polls whose deadline has passed.
func (s *Service) ListPolls(ctx context.Context, session Session, projectID string, activeOnly bool) ([]map[string]any, error) {
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

	polls, err := s.store.ListPolls(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	items := make([]map[string]any, 0, len(polls))
	for _, p := range polls {
		if activeOnly {
			if !p.IsActive {
				continue
			}
			if p.Deadline != nil && !p.Deadline.After(now) {
				continue
			}
		}
		payload := pollPayload(p)
		payload["hasVoted"] = hasVoted(p, session.UserID)
		items = append(items, payload)
	}
	return items, nil
}

func hasVoted(p store.Poll, userID string) bool {
	for _, voter := range p.Voters {
		if voter == userID {
			return true
		}
	}
	return false
}

// CreatePoll needs contribute rights and at least two options. Option
// ids are positional and stable for the poll's lifetime. Every other
// team member is notified.
func (s *Service) CreatePoll(ctx context.Context, session Session, projectID string, input CreatePollInput) (map[string]any, error) {
	a, err := s.requireAction(ctx, projectID, session.UserID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, errValidation("question is required")
	}
	options := make([]store.PollOption, 0, len(input.Options))
	for i, text := range input.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		options = append(options, store.PollOption{
			OptionID: fmt.Sprintf("option_%d", i),
			Text:     text,
		})
	}
	if len(options) < 2 {
		return nil, errValidation("a poll needs at least two options")
	}

	poll := store.Poll{
		ID:        util.NewID("pol"),
		ProjectID: projectID,
		CreatedBy: session.UserID,
		Question:  question,
		Options:   options,
		Voters:    []string{},
		Deadline:  input.Deadline,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	activity := store.ActivityLogEntry{
		ProjectID:    projectID,
		ActorID:      session.UserID,
		ActionType:   "poll_created",
		TargetEntity: poll.ID,
		Details:      question,
	}

	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var notifications []store.Notification
	for _, m := range members {
		if m.UserID == session.UserID {
			continue
		}
		notifications = append(notifications, store.Notification{
			ID:               util.NewID("ntf"),
			UserID:           m.UserID,
			Type:             "poll_created",
			Title:            "New poll",
			Message:          fmt.Sprintf("%s started a poll in %s: %s", session.UserName, a.project.Title, question),
			RelatedProjectID: projectID,
			RelatedEntityID:  poll.ID,
		})
	}

	if err := s.store.InsertPoll(ctx, poll, activity, notifications); err != nil {
		return nil, err
	}
	return pollPayload(poll), nil
}

// Vote casts a single vote. Any member may vote. The poll must still be
// active and, when it has a deadline, the deadline must lie ahead.
func (s *Service) Vote(ctx context.Context, session Session, pollID string, input VoteInput) (map[string]any, error) {
	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAction(ctx, poll.ProjectID, session.UserID, rbac.ActionParticipate); err != nil {
		return nil, err
	}

	if !poll.IsActive || (poll.Deadline != nil && !poll.Deadline.After(time.Now())) {
		return nil, errValidation("poll is no longer active")
	}
	if input.OptionID == "" {
		return nil, errValidation("optionId is required")
	}

	if err := s.store.RecordVote(ctx, pollID, session.UserID, input.OptionID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errConflict("you already voted in this poll")
		}
		if errors.Is(err, store.ErrOptionNotFound) {
			return nil, errValidation("unknown poll option")
		}
		return nil, err
	}

	updated, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return pollPayload(updated), nil
}

// ClosePoll ends voting early. Only the poll creator or a project admin
// may close.
func (s *Service) ClosePoll(ctx context.Context, session Session, pollID string) (map[string]any, error) {
	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	a, err := s.requireMember(ctx, poll.ProjectID, session.UserID)
	if err != nil {
		return nil, err
	}
	if poll.CreatedBy != session.UserID && !rbac.Can(a.role, rbac.ActionManage) {
		return nil, errForbidden("only the poll creator or an admin can close a poll")
	}

	if err := s.store.ClosePoll(ctx, pollID); err != nil {
		return nil, err
	}
	poll.IsActive = false
	return pollPayload(poll), nil
}
