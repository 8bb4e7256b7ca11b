package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

const CookieName = "session_token"

// Session maps an opaque token to the principal it was issued for.
type Session struct {
	ID          uuid.UUID `db:"id"`
	PrincipalID uuid.UUID `db:"user_id"`
	Token       string    `db:"token"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type Repository interface {
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
