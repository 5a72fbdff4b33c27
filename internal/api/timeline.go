package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-playout/internal/playout"
)

// handleTimelineState accepts a timeline state message, the same JSON
// body the MQTT state topic carries.
func (s *Server) handleTimelineState(w http.ResponseWriter, r *http.Request) {
	if s.timeline == nil {
		writeUnavailable(w, "timeline input not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	if err := s.timeline.HandleStateMessage(r.Context(), body); err != nil {
		s.writeTimelineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleClearFuture accepts {"time": <unix ms>} and clears every device's
// commands after that time.
func (s *Server) handleClearFuture(w http.ResponseWriter, r *http.Request) {
	if s.timeline == nil {
		writeUnavailable(w, "timeline input not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	if err := s.timeline.HandleClearMessage(body); err != nil {
		s.writeTimelineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) writeTimelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, playout.ErrInvalidMessage) {
		writeBadRequest(w, err.Error())
		return
	}
	s.logger.Error("timeline input failed", "error", err)
	writeInternalError(w, "timeline input failed")
}
