package app

import (
	"context"
	"database/sql"
	"testing"

	"teamhub/api/internal/store"
)

func chatFakeStore(t *testing.T, sent *store.Message, notified *[]store.Notification) *fakeStore {
	t.Helper()
	users := map[string]store.User{
		"sam@example.com":   {ID: "usr_sam", Email: "sam@example.com", DisplayName: "Sam"},
		"avery@example.com": {ID: "usr_1", Email: "avery@example.com", DisplayName: "Avery"},
		"ghost@example.com": {ID: "usr_ghost", Email: "ghost@example.com"},
	}
	members := map[string]bool{"usr_1": true, "usr_sam": true}
	return &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Title: "Launch"}, nil
		},
		getMembershipFn: func(_ context.Context, projectID, userID string) (store.TeamMember, error) {
			if members[userID] {
				return store.TeamMember{ProjectID: projectID, UserID: userID, Role: "viewer"}, nil
			}
			return store.TeamMember{}, sql.ErrNoRows
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if user, ok := users[email]; ok {
				return user, nil
			}
			return store.User{}, sql.ErrNoRows
		},
		insertMessageFn: func(_ context.Context, message store.Message, notifications []store.Notification) error {
			*sent = message
			*notified = notifications
			return nil
		},
	}
}

func TestSendMessageSeedsSenderReadReceipt(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	_, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Content: "hello team",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if sent.Type != "text" {
		t.Errorf("expected default type text, got %s", sent.Type)
	}
	if len(sent.ReadBy) != 1 || sent.ReadBy[0] != "usr_1" {
		t.Errorf("expected sender seeded into readBy, got %v", sent.ReadBy)
	}
	if len(notified) != 0 {
		t.Errorf("expected no notifications without mentions, got %d", len(notified))
	}
}

func TestSendMessageMentionNotifiesMember(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	_, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Content: "ping @Sam@example.com about the launch",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(notified) != 1 {
		t.Fatalf("expected 1 mention notification, got %d", len(notified))
	}
	if notified[0].UserID != "usr_sam" || notified[0].Type != "mention" {
		t.Errorf("unexpected notification: %+v", notified[0])
	}
}

func TestSendMessageMentionSkipsSelfNonMembersAndStrangers(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	_, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Content: "@avery@example.com @ghost@example.com @nobody@example.com hello",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(notified) != 0 {
		t.Errorf("expected no notifications, got %+v", notified)
	}
}

func TestSendMessageMentionDeduplicates(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	_, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Content: "@sam@example.com @sam@example.com twice",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(notified) != 1 {
		t.Errorf("expected a single notification for repeated mentions, got %d", len(notified))
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	_, err := svc.SendMessage(context.Background(), testSession("usr_outsider", "Out"), "prj_1", SendMessageInput{
		Content: "hello",
	})
	assertDomainError(t, err, 403, "FORBIDDEN")
}

func TestSendMessageRequiresContentOrFile(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	_, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Content: "   ",
	})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")

	// A file-only message is fine.
	if _, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Type:     "file",
		FileURL:  "https://files.example.com/report.pdf",
		FileName: "report.pdf",
	}); err != nil {
		t.Fatalf("file-only SendMessage() error = %v", err)
	}
}

func TestSendMessageRejectsUnknownType(t *testing.T) {
	var sent store.Message
	var notified []store.Notification
	svc := newTestService(chatFakeStore(t, &sent, &notified))

	for _, msgType := range []string{"video", "system"} {
		_, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
			Content: "hello",
			Type:    msgType,
		})
		assertDomainError(t, err, 422, "VALIDATION_ERROR")
	}

	if _, err := svc.SendMessage(context.Background(), testSession("usr_1", "Avery"), "prj_1", SendMessageInput{
		Content: "maintenance window tonight",
		Type:    "system_alert",
	}); err != nil {
		t.Fatalf("system_alert SendMessage() error = %v", err)
	}
	if sent.Type != "system_alert" {
		t.Errorf("expected system_alert, got %s", sent.Type)
	}
}

func TestListMessagesSilentForPrivateNonMembers(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Visibility: "private"}, nil
		},
		listMessagesFn: func(context.Context, string, int) ([]store.Message, error) {
			t.Fatal("messages should not be listed for non-members of private projects")
			return nil, nil
		},
	}
	svc := newTestService(fs)

	items, err := svc.ListMessages(context.Background(), testSession("usr_outsider", "Out"), "prj_1", 50)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %d", len(items))
	}
}

func TestListMessagesPublicProjectReadableByNonMembers(t *testing.T) {
	queried := false
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Visibility: "public"}, nil
		},
		listMessagesFn: func(context.Context, string, int) ([]store.Message, error) {
			queried = true
			return []store.Message{
				{ID: "msg_1", SenderID: "usr_1", Content: "hello"},
			}, nil
		},
		getUsersByIDsFn: func(context.Context, []string) (map[string]store.User, error) {
			return map[string]store.User{"usr_1": {ID: "usr_1", DisplayName: "Avery"}}, nil
		},
	}
	svc := newTestService(fs)

	items, err := svc.ListMessages(context.Background(), testSession("usr_outsider", "Out"), "prj_1", 50)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if !queried {
		t.Fatal("expected the store to be queried for a public project")
	}
	if len(items) != 1 || items[0]["id"] != "msg_1" {
		t.Errorf("expected the public project's messages, got %v", items)
	}
}

func TestListMessagesPreservesStoreOrder(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Visibility: "private"}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "viewer"),
		listMessagesFn: func(context.Context, string, int) ([]store.Message, error) {
			// The store hands back the newest page already oldest-first.
			return []store.Message{
				{ID: "msg_1", SenderID: "usr_1", Content: "first"},
				{ID: "msg_2", SenderID: "usr_1", Content: "second"},
				{ID: "msg_3", SenderID: "usr_1", Content: "third"},
			}, nil
		},
		getUsersByIDsFn: func(context.Context, []string) (map[string]store.User, error) {
			return map[string]store.User{"usr_1": {ID: "usr_1", DisplayName: "Avery"}}, nil
		},
	}
	svc := newTestService(fs)

	items, err := svc.ListMessages(context.Background(), testSession("usr_1", "Avery"), "prj_1", 50)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(items))
	}
	if items[0]["id"] != "msg_1" || items[2]["id"] != "msg_3" {
		t.Errorf("expected oldest-first ordering, got %v then %v", items[0]["id"], items[2]["id"])
	}
}

func TestMarkMessagesRead(t *testing.T) {
	var markedIDs []string
	var markedUser string
	fs := &fakeStore{
		markMessagesReadFn: func(_ context.Context, messageIDs []string, userID string) (int, error) {
			markedIDs = messageIDs
			markedUser = userID
			return len(messageIDs), nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.MarkMessagesRead(context.Background(), testSession("usr_1", "Avery"), MarkReadInput{
		MessageIDs: []string{"msg_1", "msg_2"},
	})
	if err != nil {
		t.Fatalf("MarkMessagesRead() error = %v", err)
	}
	if payload["marked"] != 2 {
		t.Errorf("expected 2 marked, got %v", payload["marked"])
	}
	if len(markedIDs) != 2 || markedUser != "usr_1" {
		t.Errorf("unexpected call: ids=%v user=%s", markedIDs, markedUser)
	}

	// Empty input is a no-op, not an error.
	markedIDs = nil
	payload, err = svc.MarkMessagesRead(context.Background(), testSession("usr_1", "Avery"), MarkReadInput{})
	if err != nil {
		t.Fatalf("MarkMessagesRead() empty error = %v", err)
	}
	if payload["marked"] != 0 || markedIDs != nil {
		t.Errorf("expected no-op for empty input, got %v / %v", payload, markedIDs)
	}
}

func TestMarkMessagesReadSkipsUnknownIDs(t *testing.T) {
	fs := &fakeStore{
		markMessagesReadFn: func(_ context.Context, messageIDs []string, _ string) (int, error) {
			// The store writes receipts only for ids with a matching
			// message; msg_bogus contributes nothing.
			marked := 0
			for _, id := range messageIDs {
				if id != "msg_bogus" {
					marked++
				}
			}
			return marked, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.MarkMessagesRead(context.Background(), testSession("usr_1", "Avery"), MarkReadInput{
		MessageIDs: []string{"msg_1", "msg_bogus", "msg_2"},
	})
	if err != nil {
		t.Fatalf("MarkMessagesRead() error = %v", err)
	}
	if payload["marked"] != 2 {
		t.Errorf("expected 2 receipts for the valid ids, got %v", payload["marked"])
	}
}

func TestUploadAttachmentDisabledWithoutBlobStore(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID}, nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "viewer"),
	}
	svc := newTestService(fs)

	_, err := svc.UploadAttachment(context.Background(), testSession("usr_1", "Avery"), "prj_1", "report.pdf", "application/pdf", 10, nil)
	assertDomainError(t, err, 503, "UPLOADS_DISABLED")
}
