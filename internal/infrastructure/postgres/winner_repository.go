package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giveaway-hub/giveaway-hub/internal/domain/winner"
)

// WinnerRepository implements winner.Repository.
type WinnerRepository struct {
	pool *pgxpool.Pool
}

func NewWinnerRepository(pool *pgxpool.Pool) *WinnerRepository {
	return &WinnerRepository{pool: pool}
}

func (r *WinnerRepository) Record(ctx context.Context, userID int64, username, keyword string) (*winner.Winner, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO winners (user_id, username, keyword)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, username, keyword, won_at
	`, userID, username, keyword)
	return scanWinner(row)
}

func (r *WinnerRepository) ListRecent(ctx context.Context, limit int) ([]*winner.Winner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, username, keyword, won_at
		FROM winners ORDER BY won_at DESC, id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*winner.Winner{}
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWinner(row pgx.Row) (*winner.Winner, error) {
	var w winner.Winner
	if err := row.Scan(&w.ID, &w.UserID, &w.Username, &w.Keyword, &w.WonAt); err != nil {
		return nil, err
	}
	return &w, nil
}
