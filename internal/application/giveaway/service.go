package giveaway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	domain "github.com/giveaway-hub/giveaway-hub/internal/domain/giveaway"
	"github.com/giveaway-hub/giveaway-hub/internal/domain/winner"
)

// DefaultConfirmationWindow is how long a drawn winner has to confirm by
// sending a chat message.
const DefaultConfirmationWindow = 60 * time.Second

// Publisher fans out a named event to all live subscribers. Implementations
// must never block the caller.
type Publisher interface {
	Publish(event string, payload any)
}

// Service owns the single giveaway session. All mutations run under one
// mutex; the confirmation timer's expiry callback takes the same mutex, so
// whichever of a confirmation and an expiry wins the lock decides the
// outcome and the loser observes the already-settled flags.
type Service struct {
	bus     Publisher
	winners winner.Repository
	window  time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu        sync.Mutex
	active    bool
	keyword   string
	rule      *domain.EligibilityRule
	entrants  *domain.Registry
	winner    *domain.WinnerRef
	confirmed bool
	timedOut  bool
	deadline  time.Time // zero unless a confirmation is pending
	drawSeq   uint64
	timer     confirmationTimer
}

// NewService creates the session service. A non-positive window falls back
// to DefaultConfirmationWindow.
func NewService(bus Publisher, winners winner.Repository, window time.Duration, logger zerolog.Logger) *Service {
	if window <= 0 {
		window = DefaultConfirmationWindow
	}
	return &Service{
		bus:      bus,
		winners:  winners,
		window:   window,
		now:      time.Now,
		entrants: domain.NewRegistry(),
		logger:   logger.With().Str("service", "giveaway").Logger(),
	}
}

type startedPayload struct {
	Keyword     string `json:"keyword"`
	Eligibility string `json:"eligibility,omitempty"`
}

type entrantAddedPayload struct {
	domain.Entrant
	Count int `json:"count"`
}

type winnerPickedPayload struct {
	UserID   int64    `json:"userId"`
	Username string   `json:"username"`
	Deadline int64    `json:"deadline"`
	Entrants []string `json:"entrants"`
}

type winnerConfirmedPayload struct {
	UserID   int64          `json:"userId"`
	Username string         `json:"username"`
	Winner   *winner.Winner `json:"winner"`
}

// Start begins a fresh session with the given keyword, discarding any prior
// draw state. Starting over an active session is allowed and restarts it.
func (s *Service) Start(keyword, eligibility string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return domain.ErrEmptyKeyword
	}
	rule, err := domain.ParseEligibilityRule(eligibility)
	if err != nil {
		return fmt.Errorf("invalid eligibility expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.winner != nil && !s.confirmed && !s.timedOut {
		s.logger.Warn().
			Int64("user_id", s.winner.UserID).
			Str("username", s.winner.Username).
			Msg("start discarded a winner pending confirmation")
	}

	s.active = true
	s.keyword = keyword
	s.rule = rule
	s.clearDrawLocked()
	s.entrants.Clear()
	s.bus.Publish(domain.EventStarted, startedPayload{Keyword: keyword, Eligibility: rule.String()})
	s.logger.Info().Str("keyword", keyword).Msg("giveaway started")
	return nil
}

// Stop closes entries without touching the keyword, entrants or draw state.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.timer.Cancel()
	s.bus.Publish(domain.EventStopped, struct{}{})
	s.logger.Info().Msg("giveaway stopped")
}

// Reset returns the session to its idle state: inactive, no keyword, no
// entrants, no draw.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.keyword = ""
	s.rule = nil
	s.clearDrawLocked()
	s.entrants.Clear()
	s.bus.Publish(domain.EventReset, struct{}{})
	s.logger.Info().Msg("giveaway reset")
}

// clearDrawLocked discards the winner and confirmation state and invalidates
// any in-flight timer fire via the draw sequence.
func (s *Service) clearDrawLocked() {
	s.winner = nil
	s.confirmed = false
	s.timedOut = false
	s.deadline = time.Time{}
	s.drawSeq++
	s.timer.Cancel()
}

// AddEntrant registers a participant. Returns false when the session is
// inactive, the eligibility rule rejects them, or they already entered.
func (s *Service) AddEntrant(userID int64, username string, isSubscriber bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEntrantLocked(userID, username, isSubscriber)
}

func (s *Service) addEntrantLocked(userID int64, username string, isSubscriber bool) bool {
	if !s.active {
		return false
	}
	e := domain.Entrant{UserID: userID, Username: username, IsSubscriber: isSubscriber}
	if !s.rule.Allows(e) {
		return false
	}
	if !s.entrants.Add(e) {
		return false
	}
	s.bus.Publish(domain.EventEntrantAdded, entrantAddedPayload{Entrant: e, Count: s.entrants.Len()})
	return true
}

// PickWinner draws one entrant uniformly at random and opens the
// confirmation window.
func (s *Service) PickWinner() (*domain.WinnerRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickLocked()
}

// ReRoll discards the current draw, entrants untouched, and draws again.
func (s *Service) ReRoll() (*domain.WinnerRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearDrawLocked()
	return s.pickLocked()
}

func (s *Service) pickLocked() (*domain.WinnerRef, error) {
	snap := s.entrants.Snapshot()
	if len(snap) == 0 {
		return nil, domain.ErrNoEligibleEntrants
	}
	picked := snap[rand.Intn(len(snap))]

	s.winner = &domain.WinnerRef{UserID: picked.UserID, Username: picked.Username}
	s.confirmed = false
	s.timedOut = false
	s.deadline = s.now().Add(s.window)
	s.drawSeq++
	seq := s.drawSeq
	s.timer.Arm(s.window, func() { s.expire(seq) })

	s.bus.Publish(domain.EventWinnerPicked, winnerPickedPayload{
		UserID:   picked.UserID,
		Username: picked.Username,
		Deadline: s.deadline.UnixMilli(),
		Entrants: s.entrants.Usernames(),
	})
	s.logger.Info().
		Int64("user_id", picked.UserID).
		Str("username", picked.Username).
		Time("deadline", s.deadline).
		Msg("winner picked")

	w := *s.winner
	return &w, nil
}

// expire is the timer callback. It enters the same critical section as every
// other mutation and re-checks that its draw is still the live one: a reroll
// or restart bumps drawSeq, turning a stale fire into a no-op.
func (s *Service) expire(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.drawSeq || s.winner == nil || s.confirmed || s.timedOut {
		return
	}
	s.timedOut = true
	s.deadline = time.Time{}
	s.bus.Publish(domain.EventWinnerTimeout, *s.winner)
	s.logger.Info().
		Int64("user_id", s.winner.UserID).
		Str("username", s.winner.Username).
		Msg("winner confirmation timed out")
}

// ConfirmWinner finalizes the pending draw if userID is the drawn winner and
// the deadline has not passed. A confirmation arriving at or after the
// deadline resolves as a timeout regardless of whether the timer has fired
// yet. The winner is recorded durably before the confirmation becomes
// visible; on a persistence failure the draw stays pending and retryable.
func (s *Service) ConfirmWinner(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmLocked(ctx, userID)
}

func (s *Service) confirmLocked(ctx context.Context, userID int64) (bool, error) {
	if s.winner == nil || s.winner.UserID != userID || s.confirmed || s.timedOut {
		return false, nil
	}

	if !s.deadline.IsZero() && !s.now().Before(s.deadline) {
		s.timedOut = true
		s.deadline = time.Time{}
		s.timer.Cancel()
		s.bus.Publish(domain.EventWinnerTimeout, *s.winner)
		s.logger.Info().
			Int64("user_id", s.winner.UserID).
			Msg("confirmation arrived after deadline, resolved as timeout")
		return false, nil
	}

	rec, err := s.winners.Record(ctx, s.winner.UserID, s.winner.Username, s.keyword)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", s.winner.UserID).
			Msg("failed to record winner, confirmation remains pending")
		return false, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	s.timer.Cancel()
	s.confirmed = true
	s.deadline = time.Time{}
	s.bus.Publish(domain.EventWinnerConfirmed, winnerConfirmedPayload{
		UserID:   s.winner.UserID,
		Username: s.winner.Username,
		Winner:   rec,
	})
	s.logger.Info().
		Int64("user_id", s.winner.UserID).
		Str("username", s.winner.Username).
		Msg("winner confirmed")
	return true, nil
}

// HandleChatMessage applies a validated inbound chat message to the session:
// any message from the pending winner confirms them, and a keyword match
// enters the sender. Both checks run atomically against concurrent triggers.
func (s *Service) HandleChatMessage(ctx context.Context, userID int64, username string, isSubscriber bool, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var confirmErr error
	if s.winner != nil && !s.confirmed && !s.timedOut && s.winner.UserID == userID {
		_, confirmErr = s.confirmLocked(ctx, userID)
	}

	if s.active && domain.MatchesKeyword(content, s.keyword) {
		s.addEntrantLocked(userID, username, isSubscriber)
	}
	return confirmErr
}

// Status returns a consistent snapshot of the session.
func (s *Service) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.Status{
		Active:       s.active,
		Keyword:      s.keyword,
		Eligibility:  s.rule.String(),
		EntrantCount: s.entrants.Len(),
		Entrants:     s.entrants.Snapshot(),
		Confirmed:    s.confirmed,
		TimedOut:     s.timedOut,
	}
	if s.winner != nil {
		w := *s.winner
		st.Winner = &w
	}
	if !s.deadline.IsZero() {
		ms := s.deadline.UnixMilli()
		st.ConfirmationDeadline = &ms
	}
	return st
}
