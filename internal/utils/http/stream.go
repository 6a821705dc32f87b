package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/utils/errors"
)

// StreamKeepAlive is the interval of comment frames keeping idle streams open.
var StreamKeepAlive = 15 * time.Second

// Watch registers emit for re-rendered states and returns function detaching it.
type Watch func(emit func(body interface{})) (detach func())

// SendStream serves Server-Sent Events: one `data: {"data": ...}` frame per emitted state.
// Only the latest undelivered state is kept, so a slow client never sees an older state after a newer one.
// The registration is detached when the client goes away.
func SendStream(w http.ResponseWriter, r *http.Request, watch Watch) {
	logger := logging.FromContext(r.Context()).Named("http.SendStream")

	flusher, ok := w.(http.Flusher)
	if !ok {
		SendErrorResponse(w, r, &errors.UnknownError{Msg: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var mu sync.Mutex
	latest := make(chan []byte, 1)

	emit := func(body interface{}) {
		payload, err := json.Marshal(responseEnvelope{Data: body})
		if err != nil {
			logger.Errorf("Could not encode stream frame: %v", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		select {
		case <-latest:
		default:
		}
		latest <- payload
	}

	detach := watch(emit)
	defer detach()

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	keepAlive := time.NewTicker(StreamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("Stream closed by client")
			return
		case payload := <-latest:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		}
	}
}
