package core

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrPeerDisconnected is returned when the recipient's session is gone
	// before or while a request is in flight.
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrTimeout          = errors.New("request timed out")
)

// Transport abstracts the request/response messaging primitive.
// Send blocks until the peer answers, ctx is done or the peer disconnects.
type Transport interface {
	Send(ctx context.Context, to SessionID, route string, payload any) (json.RawMessage, error)
	// Disconnect closes the peer's session with the given reason.
	Disconnect(to SessionID, reason string) error
}

// Server to client notification routes.
const (
	RouteSettingsUpdated  = "party.settings.updated"
	RouteMemberJoined     = "party.member.joined"
	RouteMemberLeft       = "party.member.left"
	RouteMemberStatus     = "party.member.status"
	RouteMemberData       = "party.member.data"
	RouteLeaderChanged    = "party.leader.changed"
	RoutePartyState       = "party.state"
	RouteGameFinderFailed = "party.gamefinder.failed"
	RouteInvitation       = "party.invitation"
)

// Notification is the body of every state broadcast.
type Notification struct {
	StateVersion int `json:"stateVersion"`
	Payload      any `json:"payload"`
}

// Envelope types.
const (
	EnvelopeRequest  = "request"
	EnvelopeResponse = "response"
)

// Envelope frames every websocket message. A response carries the id of
// the request it answers and either a payload or an error.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Route   string          `json:"route,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// WireError is an error as it travels to and from the client.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *WireError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}
