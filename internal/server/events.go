package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"cipherdm/internal/domain"
	"cipherdm/internal/push"
)

// handleEvents streams "new_message" events for one user until the client
// goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	username := domain.Username(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if _, err := s.store.PublicKey(r.Context(), username); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internal(w, r, err)
		return
	}

	payloads, cancel, err := s.notifier.Subscribe(r.Context(), username)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Error().Err(err).Msg("event stream cannot flush")
		return
	}
	log.Info().Str("username", username.String()).Msg("event stream opened")
	defer log.Info().Str("username", username.String()).Msg("event stream closed")

	tick := time.NewTicker(s.keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case p, ok := <-payloads:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", push.EventName, p); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
