package giveaway

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"
)

// Event names published on the broadcast bus.
const (
	EventStarted         = "giveaway_started"
	EventStopped         = "giveaway_stopped"
	EventReset           = "giveaway_reset"
	EventEntrantAdded    = "entrant_added"
	EventWinnerPicked    = "winner_picked"
	EventWinnerConfirmed = "winner_confirmed"
	EventWinnerTimeout   = "winner_timeout"
)

var (
	ErrNoEligibleEntrants = errors.New("no eligible entrants")
	ErrEmptyKeyword       = errors.New("keyword is required")
	ErrPersistence        = errors.New("failed to persist winner")
)

// Entrant is a participant who validly entered the current session.
// Created once per session per unique user, never mutated.
type Entrant struct {
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	IsSubscriber bool   `json:"isSubscriber"`
}

// WinnerRef identifies the currently drawn candidate winner.
type WinnerRef struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Status is a point-in-time snapshot of the session.
type Status struct {
	Active               bool       `json:"active"`
	Keyword              string     `json:"keyword"`
	Eligibility          string     `json:"eligibility,omitempty"`
	EntrantCount         int        `json:"entrantCount"`
	Entrants             []Entrant  `json:"entrants"`
	Winner               *WinnerRef `json:"winner"`
	Confirmed            bool       `json:"confirmed"`
	ConfirmationDeadline *int64     `json:"confirmationDeadline"`
	TimedOut             bool       `json:"timedOut"`
}

// MatchesKeyword reports whether a chat message counts as an entry for the
// given keyword. Both sides are trimmed and compared case-insensitively.
func MatchesKeyword(content, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(content), strings.TrimSpace(keyword))
}

// EligibilityRule is an optional expression over entrant attributes that
// gates entry, e.g. `is_subscriber == true`.
type EligibilityRule struct {
	raw  string
	expr *govaluate.EvaluableExpression
}

// ParseEligibilityRule validates and compiles an eligibility expression.
// An empty string yields a nil rule (everyone eligible).
func ParseEligibilityRule(raw string) (*EligibilityRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(raw)
	if err != nil {
		return nil, err
	}
	return &EligibilityRule{raw: raw, expr: expr}, nil
}

// String returns the original expression text.
func (r *EligibilityRule) String() string {
	if r == nil {
		return ""
	}
	return r.raw
}

// Allows evaluates the rule against an entrant. Evaluation errors and
// non-boolean results reject the entrant.
func (r *EligibilityRule) Allows(e Entrant) bool {
	if r == nil {
		return true
	}
	params := map[string]interface{}{
		"is_subscriber": e.IsSubscriber,
		"username":      e.Username,
	}
	result, err := r.expr.Evaluate(params)
	if err != nil {
		return false
	}
	allowed, ok := result.(bool)
	return ok && allowed
}
