package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxOfOrganization(t *testing.T) {
	db := realtimedb.NewMemoryClient()
	notifier := notify.NewNotifier(db, nil)
	s := NewService(notifier)
	org := &session.Identity{UID: "o1", Role: session.RoleOrganization}

	id, err := notifier.Send(context.Background(), notify.Organization("o1"), "Hello", "World")
	require.NoError(t, err)
	_, err = notifier.Send(context.Background(), notify.Citizen("o1"), "Other", "Inbox")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/inbox/list", nil)
	req = req.WithContext(session.WithIdentity(req.Context(), org))
	rr := httptest.NewRecorder()
	s.HandleList(rr, req)

	var body struct {
		Data notify.Inbox `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data.Entries, 1)
	assert.Equal(t, "Hello", body.Data.Entries[0].Title)
	assert.Equal(t, 1, body.Data.UnreadCount)

	req = httptest.NewRequest("POST", "/inbox/read", bytes.NewBufferString(`{"data":{"id":"`+id+`"}}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(session.WithIdentity(req.Context(), org))
	rr = httptest.NewRecorder()
	s.HandleMarkRead(rr, req)
	assert.Equal(t, `{"data":{}}`, rr.Body.String())

	inbox, err := notifier.List(context.Background(), notify.Organization("o1"))
	require.NoError(t, err)
	assert.Equal(t, 0, inbox.UnreadCount)
	assert.True(t, inbox.Entries[0].Read)
}

func TestAdminsHaveNoInbox(t *testing.T) {
	s := NewService(notify.NewNotifier(realtimedb.NewMemoryClient(), nil))

	req := httptest.NewRequest("POST", "/inbox/reconcile", nil)
	req = req.WithContext(session.WithIdentity(req.Context(), &session.Identity{UID: "a1", Role: session.RoleAdmin}))
	rr := httptest.NewRecorder()
	s.HandleReconcile(rr, req)

	assert.Equal(t, `{"error":{"status":7,"message":"admin accounts have no inbox"}}`, rr.Body.String())
}
