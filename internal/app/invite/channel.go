// Package invite holds the in-app invitation channel: invitations pushed
// over the recipient's own party session.
package invite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

const PlatformName = "party"

// Payload is what the recipient's client receives on core.RouteInvitation.
type Payload struct {
	InvitationID string         `json:"invitationId"`
	PartyID      domain.PartyID `json:"partyId"`
	Sender       domain.User    `json:"sender"`
}

// Answer is the client's reply.
type Answer struct {
	Accepted bool `json:"accepted"`
}

// TransportChannel reaches online users on any platform.
type TransportChannel struct {
	Transport core.Transport
}

var _ core.InvitationChannel = (*TransportChannel)(nil)

func NewTransportChannel(t core.Transport) *TransportChannel {
	return &TransportChannel{Transport: t}
}

func (c *TransportChannel) PlatformName() string       { return PlatformName }
func (c *TransportChannel) IsCompatible(string) bool   { return true }
func (c *TransportChannel) CanReachOfflineUsers() bool { return false }

func (c *TransportChannel) SendInvitation(ctx context.Context, ic core.InvitationContext) (bool, error) {
	if ic.RecipientSession == nil {
		return false, core.ErrPeerDisconnected
	}
	raw, err := c.Transport.Send(ctx, ic.RecipientSession.ID, core.RouteInvitation, Payload{
		InvitationID: ic.InvitationID,
		PartyID:      ic.PartyID,
		Sender:       ic.Sender.User,
	})
	if err != nil {
		return false, fmt.Errorf("deliver invitation %s: %w", ic.InvitationID, err)
	}
	var a Answer
	if err := json.Unmarshal(raw, &a); err != nil {
		return false, fmt.Errorf("decode invitation answer: %w", err)
	}
	log.Debug().
		Str("module", "app.invite").
		Str("invitation_id", ic.InvitationID).
		Bool("accepted", a.Accepted).
		Msg("invitation answered")
	return a.Accepted, nil
}
