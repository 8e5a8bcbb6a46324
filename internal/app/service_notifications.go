package app

import (
	"context"
	"database/sql"
	"errors"

	"teamhub/api/internal/store"
)

func notificationPayload(n store.Notification) map[string]any {
	payload := map[string]any{
		"id":        n.ID,
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"isRead":    n.IsRead,
		"createdAt": n.CreatedAt,
	}
	if n.RelatedProjectID != "" {
		payload["relatedProjectId"] = n.RelatedProjectID
	}
	if n.RelatedEntityID != "" {
		payload["relatedEntityId"] = n.RelatedEntityID
	}
	return payload
}

func (s *Service) ListNotifications(ctx context.Context, session Session, limit int) (map[string]any, error) {
	notifications, err := s.store.ListNotifications(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadNotificationCount(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationPayload(n))
	}
	return map[string]any{
		"notifications": items,
		"unreadCount":   unread,
	}, nil
}

// MarkNotificationRead only touches the caller's own notifications;
// anything else reads as missing.
func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("notification not found")
	}
	return err
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}

// ListActivity returns a project's audit trail with actor names.
// Silent read for outsiders.
func (s *Service) ListActivity(ctx context.Context, session Session, projectID string, limit int) ([]map[string]any, error) {
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

	entries, err := s.store.ListActivity(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}

	actorIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		actorIDs = append(actorIDs, e.ActorID)
	}
	actors, err := s.store.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		entry := map[string]any{
			"id":           e.ID,
			"actorId":      e.ActorID,
			"actorName":    displayName(actors[e.ActorID]),
			"actionType":   e.ActionType,
			"targetEntity": e.TargetEntity,
			"details":      e.Details,
			"createdAt":    e.CreatedAt,
		}
		if e.OldValue != "" || e.NewValue != "" {
			entry["oldValue"] = e.OldValue
			entry["newValue"] = e.NewValue
		}
		items = append(items, entry)
	}
	return items, nil
}
