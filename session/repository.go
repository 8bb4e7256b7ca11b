package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *repository {
	return &repository{db: db}
}

// GetByToken retrieves a session by token and rejects expired ones
func (r *repository) GetByToken(ctx context.Context, token string) (*Session, error) {
	var s Session
	query := `
        SELECT id, user_id, token, expires_at, created_at
        FROM sessions
        WHERE token = $1
    `
	err := r.db.GetContext(ctx, &s, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	if s.Expired(time.Now()) {
		return nil, ErrExpiredSession
	}

	return &s, nil
}

// Delete removes a session
func (r *repository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}
