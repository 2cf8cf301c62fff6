package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const sseHeartbeat = 25 * time.Second

// handleSSE streams realtime messages to the authenticated user. Admin
// connections also receive upload and payment alerts.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	user := s.mustUser(w, r)
	if user == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorJSON(w, errors.New("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := s.broker.AddClient(user.ID, user.IsAdmin())
	defer s.broker.RemoveClient(client)

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case message, open := <-client.C:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
