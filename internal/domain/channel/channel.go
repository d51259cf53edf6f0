package channel

import (
	"context"
	"errors"
	"time"
)

var ErrNotLinked = errors.New("no channel account linked")

// Credentials holds the OAuth grant for the channel owner whose chat feeds
// the giveaway. At most one account is linked at a time in practice, but the
// table is keyed by user id so a re-link replaces cleanly.
type Credentials struct {
	UserID       int64
	Username     string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
}

// Repository stores channel owner credentials.
type Repository interface {
	Upsert(ctx context.Context, creds *Credentials) error
	Get(ctx context.Context, userID int64) (*Credentials, error)
	// GetAny returns any linked account, or nil when none is linked.
	GetAny(ctx context.Context) (*Credentials, error)
	UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string) error
	Delete(ctx context.Context, userID int64) error
}
