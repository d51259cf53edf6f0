package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	domain "github.com/giveaway-hub/giveaway-hub/internal/domain/giveaway"
	"github.com/giveaway-hub/giveaway-hub/internal/domain/winner"
)

type startRequest struct {
	Keyword     string `json:"keyword"`
	Eligibility string `json:"eligibility,omitempty"`
}

func (s *Server) startGiveaway(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Keyword == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "keyword is required")
		return
	}
	if err := s.giveawaySvc.Start(req.Keyword, req.Eligibility); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"keyword": req.Keyword,
	})
}

func (s *Server) stopGiveaway(w http.ResponseWriter, r *http.Request) {
	s.giveawaySvc.Stop()
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) resetGiveaway(w http.ResponseWriter, r *http.Request) {
	s.giveawaySvc.Reset()
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

type rollRequest struct {
	ReRoll bool `json:"reroll"`
}

func (s *Server) rollWinner(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	var (
		picked *domain.WinnerRef
		err    error
	)
	if req.ReRoll {
		picked, err = s.giveawaySvc.ReRoll()
	} else {
		picked, err = s.giveawaySvc.PickWinner()
	}
	if errors.Is(err, domain.ErrNoEligibleEntrants) {
		respondError(w, http.StatusBadRequest, "NO_ELIGIBLE_ENTRANTS", "no eligible entrants remaining")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	status := s.giveawaySvc.Status()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"winner":   picked,
		"deadline": status.ConfirmationDeadline,
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	var username *string
	authenticated := false
	if creds, err := s.authSvc.SessionUser(r.Context(), s.sessionCookie(r)); err == nil {
		authenticated = true
		username = &creds.Username
	}

	winners, err := s.winners.ListRecent(r.Context(), 20)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list winners")
		winners = []*winner.Winner{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": authenticated,
		"username":      username,
		"giveaway":      s.giveawaySvc.Status(),
		"winners":       winners,
	})
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	client := s.hub.Subscribe()
	defer s.hub.Unsubscribe(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Seed the subscriber with the current state; it only receives events
	// published after it joined.
	snapshot, _ := json.Marshal(s.giveawaySvc.Status())
	writeSSE(w, "connected", snapshot)
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case msg := <-client.C:
			if msg == nil {
				return
			}
			writeSSE(w, msg.Event, msg.Data)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data []byte) {
	_, _ = w.Write([]byte("event: " + event + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
