package winner

import (
	"context"
	"time"
)

// Winner is a confirmed giveaway winner as persisted.
type Winner struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	Username string    `json:"username"`
	Keyword  string    `json:"keyword"`
	WonAt    time.Time `json:"wonAt"`
}

// Repository durably records confirmed winners.
type Repository interface {
	// Record inserts a confirmed winner and returns the persisted row.
	Record(ctx context.Context, userID int64, username, keyword string) (*Winner, error)
	// ListRecent returns the most recently recorded winners, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Winner, error)
}
