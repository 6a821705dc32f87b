package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendStreamDeliversLatestStateAndDetaches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/reports/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	detached := false
	time.AfterFunc(50*time.Millisecond, cancel)

	SendStream(rr, req, func(emit func(body interface{})) func() {
		emit(map[string]string{"state": "a"})
		emit(map[string]string{"state": "b"})
		return func() { detached = true }
	})

	assert.True(t, detached)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, ": stream started\n\n"))
	assert.Contains(t, body, "data: {\"data\":{\"state\":\"b\"}}\n\n")
	assert.NotContains(t, body, "\"a\"")
}
