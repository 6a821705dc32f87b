package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recent(t *testing.T, s *Service, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/audit/recent", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.HandleRecent(rr, req)
	return rr
}

func TestHandleRecent(t *testing.T) {
	mock := &store.MockClient{}
	for i := 1; i <= 3; i++ {
		require.NoError(t, mock.Append(context.Background(), structs.StatusChanged{
			EventID: fmt.Sprintf("e%d", i), Collection: "reports", RecordID: "r1", To: "ACCEPTED", At: int64(i),
		}))
	}
	s := NewService(mock)

	var body struct {
		Data recentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recent(t, s, `{"data":{"limit":2}}`).Body.Bytes(), &body))
	require.Len(t, body.Data.Entries, 2)
	assert.Equal(t, "e3", body.Data.Entries[0].EventID)

	rr := recent(t, s, `{"data":{"limit":-1}}`)
	assert.Contains(t, rr.Body.String(), `"status":3`)
}

func TestHandleRecentStoreFailure(t *testing.T) {
	s := NewService(&store.MockClient{Err: fmt.Errorf("deadline exceeded")})

	rr := recent(t, s, `{"data":{}}`)
	assert.Equal(t, `{"error":{"status":14,"message":"reading audit log failed: deadline exceeded"}}`, rr.Body.String())
}
