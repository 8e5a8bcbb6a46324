package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"teamhub/api/internal/store"
)

type UpdatePresenceInput struct {
	Status         string `json:"status"`
	CurrentProject string `json:"currentProject"`
}

var allowedPresenceStatuses = map[string]struct{}{
	"online":  {},
	"away":    {},
	"offline": {},
}

// Heartbeat marks the caller online and stamps the moment. Clients call
// this on an interval; the sweeper decays stale rows to offline.
func (s *Service) Heartbeat(ctx context.Context, session Session, currentProject string) (map[string]any, error) {
	p := store.Presence{
		UserID:         session.UserID,
		Status:         "online",
		LastSeen:       time.Now(),
		CurrentProject: currentProject,
	}
	if err := s.store.UpsertPresence(ctx, p); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":   p.Status,
		"lastSeen": p.LastSeen,
	}, nil
}

// UpdatePresence sets an explicit status, such as going offline on
// sign-out or declaring away.
func (s *Service) UpdatePresence(ctx context.Context, session Session, input UpdatePresenceInput) (map[string]any, error) {
	if _, ok := allowedPresenceStatuses[input.Status]; !ok {
		return nil, errValidation("status must be online, away, or offline")
	}
	p := store.Presence{
		UserID:         session.UserID,
		Status:         input.Status,
		LastSeen:       time.Now(),
		CurrentProject: input.CurrentProject,
	}
	if err := s.store.UpsertPresence(ctx, p); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":   p.Status,
		"lastSeen": p.LastSeen,
	}, nil
}

// ProjectPresence lists the team roster with each member's presence.
// Members without a presence row read as offline. Non-members can see
// the roster of public projects; private projects read as silent empty.
func (s *Service) ProjectPresence(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
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
	presence, err := s.store.GetPresenceForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		entry := map[string]any{
			"userId":      m.UserID,
			"name":        displayName(users[m.UserID]),
			"role":        m.Role,
			"status":      "offline",
			"isInProject": false,
		}
		if p, ok := presence[m.UserID]; ok {
			entry["status"] = p.Status
			entry["lastSeen"] = p.LastSeen
			if p.CurrentProject != "" {
				entry["currentProject"] = p.CurrentProject
			}
			entry["isInProject"] = p.Status != "offline" && p.CurrentProject == projectID
		}
		items = append(items, entry)
	}
	return items, nil
}

// SweepPresence decays heartbeats older than the presence window to
// offline. Runs on a timer and behind an operator endpoint.
func (s *Service) SweepPresence(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.PresenceWindow)
	return s.store.SweepPresence(ctx, cutoff)
}
