// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

var (
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type UserID string

// PlatformID identifies a user on the platform it is currently connected from.
type PlatformID struct {
	Platform string `json:"platform"`
	OnlineID string `json:"onlineId"`
}

func (p PlatformID) IsZero() bool { return p.Platform == "" && p.OnlineID == "" }

type User struct {
	ID       UserID     `json:"id"`
	Username string     `json:"username"`
	Platform PlatformID `json:"platform"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, username string, platform PlatformID) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	if username == "" {
		username = string(id)
	}
	return &User{ID: id, Username: username, Platform: platform}, nil
}
