package core

import (
	"context"
	"errors"

	"github.com/dkeye/partyhub/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

type SessionID string

// Session is an authenticated transport session bound to a user.
type Session struct {
	ID   SessionID   `json:"sessionId"`
	User domain.User `json:"user"`
}

// SessionProvider resolves identities. Lookups that miss must return
// ErrSessionNotFound or ErrUserNotFound.
type SessionProvider interface {
	GetSession(ctx context.Context, sid SessionID) (Session, error)
	GetSessionByUser(ctx context.Context, uid domain.UserID) (Session, error)
	// GetUser finds a known user, online or not.
	GetUser(ctx context.Context, uid domain.UserID) (domain.User, error)
}
