package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giveaway-hub/giveaway-hub/internal/domain/channel"
)

// ChannelRepository implements channel.Repository.
type ChannelRepository struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

func (r *ChannelRepository) Upsert(ctx context.Context, creds *channel.Credentials) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO channel_accounts (user_id, username, access_token, refresh_token)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			created_at = now()
	`, creds.UserID, creds.Username, creds.AccessToken, creds.RefreshToken)
	return err
}

func (r *ChannelRepository) Get(ctx context.Context, userID int64) (*channel.Credentials, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, username, access_token, refresh_token, created_at
		FROM channel_accounts WHERE user_id = $1
	`, userID)
	return scanCredentials(row)
}

func (r *ChannelRepository) GetAny(ctx context.Context) (*channel.Credentials, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, username, access_token, refresh_token, created_at
		FROM channel_accounts LIMIT 1
	`)
	return scanCredentials(row)
}

func (r *ChannelRepository) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channel_accounts SET access_token = $1, refresh_token = $2 WHERE user_id = $3
	`, accessToken, refreshToken, userID)
	return err
}

func (r *ChannelRepository) Delete(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM channel_accounts WHERE user_id = $1`, userID)
	return err
}

func scanCredentials(row pgx.Row) (*channel.Credentials, error) {
	var c channel.Credentials
	err := row.Scan(&c.UserID, &c.Username, &c.AccessToken, &c.RefreshToken, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
