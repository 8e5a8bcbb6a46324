package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"teamhub/api/internal/store"
	"teamhub/api/internal/util"
)

type SendMessageInput struct {
	Content  string `json:"content"`
	Type     string `json:"type"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	ReplyTo  string `json:"replyTo"`
}

type MarkReadInput struct {
	MessageIDs []string `json:"messageIds"`
}

var allowedMessageTypes = map[string]struct{}{
	"text":         {},
	"file":         {},
	"image":        {},
	"system_alert": {},
}

// mentionPattern matches @ followed by a run of non-whitespace. The
// token is treated as an email address.
var mentionPattern = regexp.MustCompile(`@(\S+)`)

func messagePayload(m store.Message, senderName string) map[string]any {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return map[string]any{
		"id":         m.ID,
		"projectId":  m.ProjectID,
		"senderId":   m.SenderID,
		"senderName": senderName,
		"content":    m.Content,
		"type":       m.Type,
		"fileUrl":    m.FileURL,
		"fileName":   m.FileName,
		"replyTo":    m.ReplyTo,
		"readBy":     readBy,
		"createdAt":  m.CreatedAt,
	}
}

// ListMessages returns the last 50 messages oldest-first. Non-members
// can read public projects; private projects read as silent empty.
func (s *Service) ListMessages(ctx context.Context, session Session, projectID string, limit int) ([]map[string]any, error) {
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

	messages, err := s.store.ListMessages(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := s.store.GetUsersByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		items = append(items, messagePayload(m, displayName(senders[m.SenderID])))
	}
	return items, nil
}

// SendMessage posts to the project chat. Any team member may chat.
// Mentions of member emails produce notifications; mentions of
// non-members or the sender are ignored.
func (s *Service) SendMessage(ctx context.Context, session Session, projectID string, input SendMessageInput) (map[string]any, error) {
	if _, err := s.requireMember(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	msgType := input.Type
	if msgType == "" {
		msgType = "text"
	}
	if _, ok := allowedMessageTypes[msgType]; !ok {
		return nil, errValidation("unknown message type")
	}
	if content == "" && input.FileURL == "" {
		return nil, errValidation("message content is required")
	}

	message := store.Message{
		ID:        util.NewID("msg"),
		ProjectID: projectID,
		SenderID:  session.UserID,
		Content:   content,
		Type:      msgType,
		FileURL:   input.FileURL,
		FileName:  input.FileName,
		ReplyTo:   input.ReplyTo,
		ReadBy:    []string{session.UserID},
		CreatedAt: time.Now(),
	}

	notifications, err := s.mentionNotifications(ctx, session, projectID, message)
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertMessage(ctx, message, notifications); err != nil {
		return nil, err
	}
	return messagePayload(message, session.UserName), nil
}

func (s *Service) mentionNotifications(ctx context.Context, session Session, projectID string, message store.Message) ([]store.Notification, error) {
	matches := mentionPattern.FindAllStringSubmatch(message.Content, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	var notifications []store.Notification
	seen := make(map[string]bool)
	for _, match := range matches {
		email := strings.ToLower(match[1])
		if seen[email] {
			continue
		}
		seen[email] = true

		user, err := s.store.GetUserByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if user.ID == session.UserID {
			continue
		}
		if _, err := s.store.GetMembership(ctx, projectID, user.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}

		notifications = append(notifications, store.Notification{
			ID:               util.NewID("ntf"),
			UserID:           user.ID,
			Type:             "mention",
			Title:            "You were mentioned",
			Message:          fmt.Sprintf("%s mentioned you in chat", session.UserName),
			RelatedProjectID: projectID,
			RelatedEntityID:  message.ID,
		})
	}
	return notifications, nil
}

// MarkMessagesRead records read receipts for the caller. Receipts only
// accumulate; marking twice is a no-op, and ids with no matching
// message are skipped rather than failing the batch.
func (s *Service) MarkMessagesRead(ctx context.Context, session Session, input MarkReadInput) (map[string]any, error) {
	if len(input.MessageIDs) == 0 {
		return map[string]any{"marked": 0}, nil
	}
	marked, err := s.store.MarkMessagesRead(ctx, input.MessageIDs, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"marked": marked}, nil
}

// UploadAttachment stores a chat file and returns its URL for a
// follow-up file or image message.
func (s *Service) UploadAttachment(ctx context.Context, session Session, projectID, fileName, contentType string, size int64, r io.Reader) (map[string]any, error) {
	if _, err := s.requireMember(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, domainError(503, "UPLOADS_DISABLED", "attachment storage is not configured", nil)
	}
	if fileName == "" {
		return nil, errValidation("file name is required")
	}

	url, err := s.blobs.Upload(ctx, projectID, fileName, contentType, size, r)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"fileUrl":  url,
		"fileName": fileName,
	}, nil
}
