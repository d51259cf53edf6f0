package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
)

type chatMessageEvent struct {
	Content string `json:"content"`
	Sender  struct {
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
		Identity struct {
			Badges []struct {
				Type string `json:"type"`
			} `json:"badges"`
		} `json:"identity"`
	} `json:"sender"`
}

func (e *chatMessageEvent) isSubscriber() bool {
	for _, b := range e.Sender.Identity.Badges {
		if b.Type == "subscriber" {
			return true
		}
	}
	return false
}

// webhook receives Kick event deliveries. Only chat messages feed the
// session; everything else is acknowledged and dropped.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	messageID := r.Header.Get("Kick-Event-Message-Id")
	timestamp := r.Header.Get("Kick-Event-Message-Timestamp")
	signature := r.Header.Get("Kick-Event-Signature")
	eventType := r.Header.Get("Kick-Event-Type")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unreadable body")
		return
	}

	if err := s.verifier.VerifySignature(r.Context(), messageID, timestamp, body, signature); err != nil {
		s.logger.Warn().Str("message_id", messageID).Msg("rejected webhook with invalid signature")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid signature")
		return
	}

	if eventType == "chat.message.sent" {
		var evt chatMessageEvent
		if err := json.Unmarshal(body, &evt); err != nil || evt.Sender.UserID == 0 {
			respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
			return
		}
		err := s.giveawaySvc.HandleChatMessage(r.Context(), evt.Sender.UserID, evt.Sender.Username, evt.isSubscriber(), evt.Content)
		if err != nil {
			s.logger.Error().Err(err).Int64("user_id", evt.Sender.UserID).Msg("failed to process chat message")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
