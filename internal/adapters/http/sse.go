package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// streamEvents relays pipeline events for one session as server-sent
// events. The stream ends when the batch reaches a terminal event or the
// client disconnects; heartbeat comments keep idle proxies from cutting
// the connection.
func (rt *Router) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := rt.reader.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	events := make(chan domain.FileEvent, 64)
	unsubscribe, err := rt.queue.SubscribeFileEvents(r.Context(), id, func(event domain.FileEvent) {
		select {
		case events <- event:
		default:
			// Slow client; the session snapshot endpoint has the full state.
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(rt.options.SSEHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if event.Kind == domain.EventBatchDone || event.Kind == domain.EventBatchAborted {
				return
			}
		}
	}
}
