package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/giveaway-hub/giveaway-hub/internal/domain/channel"
	"github.com/giveaway-hub/giveaway-hub/internal/infrastructure/kick"
)

const loginAttemptTTL = 10 * time.Minute

var (
	ErrInvalidState   = errors.New("unknown or expired login state")
	ErrInvalidSession = errors.New("invalid session")
)

// KickClient is the slice of the Kick client the auth flow needs.
type KickClient interface {
	AuthorizeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*kick.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*kick.TokenPair, error)
	GetUser(ctx context.Context, accessToken string) (*kick.User, error)
	GetChannel(ctx context.Context, accessToken, slug string) (*kick.Channel, error)
	SubscribeChatEvents(ctx context.Context, accessToken string, broadcasterUserID int64) error
}

// Service handles the moderator login flow: Kick OAuth with PKCE, signed
// session cookies, and keeping the chat-event webhook subscription alive.
type Service struct {
	kick     KickClient
	channels channel.Repository
	secret   []byte
	logger   zerolog.Logger

	mu       sync.Mutex
	attempts map[string]loginAttempt
}

type loginAttempt struct {
	verifier  string
	expiresAt time.Time
}

// NewService creates an auth service.
func NewService(kickClient KickClient, channels channel.Repository, secret string, logger zerolog.Logger) *Service {
	return &Service{
		kick:     kickClient,
		channels: channels,
		secret:   []byte(secret),
		attempts: make(map[string]loginAttempt),
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// BeginLogin generates a PKCE verifier and state, remembers them, and
// returns the authorization URL to redirect the moderator to.
func (s *Service) BeginLogin() (string, error) {
	verifier, err := kick.GenerateCodeVerifier()
	if err != nil {
		return "", err
	}
	state, err := kick.GenerateState()
	if err != nil {
		return "", err
	}

	now := time.Now()
	s.mu.Lock()
	for k, a := range s.attempts {
		if now.After(a.expiresAt) {
			delete(s.attempts, k)
		}
	}
	s.attempts[state] = loginAttempt{verifier: verifier, expiresAt: now.Add(loginAttemptTTL)}
	s.mu.Unlock()

	return s.kick.AuthorizeURL(state, kick.CodeChallenge(verifier)), nil
}

// CompleteLogin exchanges the callback code, stores the channel owner's
// credentials, and returns a signed session cookie value.
func (s *Service) CompleteLogin(ctx context.Context, state, code string) (string, error) {
	s.mu.Lock()
	attempt, ok := s.attempts[state]
	delete(s.attempts, state)
	s.mu.Unlock()
	if !ok || time.Now().After(attempt.expiresAt) {
		return "", ErrInvalidState
	}

	pair, err := s.kick.ExchangeCode(ctx, code, attempt.verifier)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}
	user, err := s.kick.GetUser(ctx, pair.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to fetch user: %w", err)
	}

	creds := &channel.Credentials{
		UserID:       user.UserID,
		Username:     user.Name,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
	if err := s.channels.Upsert(ctx, creds); err != nil {
		return "", fmt.Errorf("failed to store credentials: %w", err)
	}

	s.logger.Info().Int64("user_id", user.UserID).Str("username", user.Name).Msg("channel account linked")
	return s.sign(strconv.FormatInt(user.UserID, 10)), nil
}

// SessionUser resolves a session cookie to the linked channel account.
func (s *Service) SessionUser(ctx context.Context, cookieValue string) (*channel.Credentials, error) {
	userID, ok := s.verify(cookieValue)
	if !ok {
		return nil, ErrInvalidSession
	}
	creds, err := s.channels.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrInvalidSession
	}
	return creds, nil
}

// EnsureEventSubscription subscribes the linked channel to chat message
// webhooks, refreshing the stored token once on failure.
func (s *Service) EnsureEventSubscription(ctx context.Context) error {
	creds, err := s.channels.GetAny(ctx)
	if err != nil {
		return err
	}
	if creds == nil {
		return channel.ErrNotLinked
	}

	if err := s.subscribe(ctx, creds); err == nil {
		return nil
	}

	pair, err := s.kick.RefreshToken(ctx, creds.RefreshToken)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if err := s.channels.UpdateTokens(ctx, creds.UserID, pair.AccessToken, pair.RefreshToken); err != nil {
		return err
	}
	creds.AccessToken = pair.AccessToken
	return s.subscribe(ctx, creds)
}

func (s *Service) subscribe(ctx context.Context, creds *channel.Credentials) error {
	ch, err := s.kick.GetChannel(ctx, creds.AccessToken, "")
	if err != nil {
		return err
	}
	return s.kick.SubscribeChatEvents(ctx, creds.AccessToken, ch.BroadcasterUserID)
}

// sign produces "value.signature" with an HMAC-SHA256 signature.
func (s *Service) sign(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return value + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify checks the signature in constant time and returns the user id.
func (s *Service) verify(signed string) (int64, bool) {
	idx := strings.LastIndex(signed, ".")
	if idx < 0 {
		return 0, false
	}
	value := signed[:idx]
	if !hmac.Equal([]byte(s.sign(value)), []byte(signed)) {
		return 0, false
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}
