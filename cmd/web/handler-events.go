package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 15 * time.Second

// eventStream replays the investigation's buffered events and then follows
// live ones over SSE until the client disconnects.
func (app *application) eventStream(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("targetID")
	if _, err := app.coordinator.Get(r.Context(), targetID); err != nil {
		app.handleError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverError(w, r, errors.New("response writer does not support streaming"))
		return
	}

	history, live, cancel := app.events.Subscribe(targetID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(event models.Event) bool {
		payload, err := json.Marshal(event)
		if err != nil {
			return false
		}
		if _, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.ID, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for _, event := range history {
		if !writeEvent(event) {
			return
		}
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-live:
			if !open {
				return
			}
			if !writeEvent(event) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
