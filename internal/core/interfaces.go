package core

import (
	"context"

	"github.com/dkeye/partyhub/internal/domain"
)

// GameFinderMember is one member's entry in a matchmaking snapshot.
type GameFinderMember struct {
	SessionID SessionID     `json:"sessionId"`
	UserID    domain.UserID `json:"userId"`
	UserData  []byte        `json:"userData,omitempty"`
}

type GameFinderRequest struct {
	RequestID      string             `json:"requestId"`
	PartyID        domain.PartyID     `json:"partyId"`
	GameFinderName string             `json:"gameFinderName"`
	CustomData     string             `json:"customData"`
	Members        []GameFinderMember `json:"members"`
}

// Matchmaker runs a matchmaking attempt until it completes or ctx is canceled.
type Matchmaker interface {
	FindGame(ctx context.Context, req GameFinderRequest) error
}

type InvitationContext struct {
	InvitationID string
	PartyID      domain.PartyID
	Sender       Session
	Recipient    domain.User
	// RecipientSession is nil when the recipient is offline.
	RecipientSession *Session
}

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_core.go -package=mocks

// InvitationChannel delivers invitations over one platform.
type InvitationChannel interface {
	PlatformName() string
	IsCompatible(platform string) bool
	CanReachOfflineUsers() bool
	// SendInvitation reports whether the recipient accepted. A channel that
	// cannot observe the answer blocks until ctx is canceled.
	SendInvitation(ctx context.Context, ic InvitationContext) (bool, error)
}
