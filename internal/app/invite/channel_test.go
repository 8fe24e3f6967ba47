package invite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type stubTransport struct {
	to      core.SessionID
	route   string
	payload any
	answer  json.RawMessage
	err     error
}

func (s *stubTransport) Send(_ context.Context, to core.SessionID, route string, payload any) (json.RawMessage, error) {
	s.to, s.route, s.payload = to, route, payload
	return s.answer, s.err
}

func (s *stubTransport) Disconnect(core.SessionID, string) error { return nil }

func invitationFor(rs *core.Session) core.InvitationContext {
	return core.InvitationContext{
		InvitationID:     "inv-1",
		PartyID:          "party-1",
		Sender:           core.Session{ID: "s1", User: domain.User{ID: "alice"}},
		Recipient:        domain.User{ID: "bob"},
		RecipientSession: rs,
	}
}

func TestSendInvitationOverTransport(t *testing.T) {
	tr := &stubTransport{answer: json.RawMessage(`{"accepted":true}`)}
	ch := NewTransportChannel(tr)

	ok, err := ch.SendInvitation(context.Background(), invitationFor(&core.Session{ID: "s2"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.SessionID("s2"), tr.to)
	assert.Equal(t, core.RouteInvitation, tr.route)
	assert.Equal(t, Payload{InvitationID: "inv-1", PartyID: "party-1", Sender: domain.User{ID: "alice"}}, tr.payload)

	tr.answer = json.RawMessage(`{"accepted":false}`)
	ok, err = ch.SendInvitation(context.Background(), invitationFor(&core.Session{ID: "s2"}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendInvitationFailures(t *testing.T) {
	ch := NewTransportChannel(&stubTransport{})
	_, err := ch.SendInvitation(context.Background(), invitationFor(nil))
	assert.ErrorIs(t, err, core.ErrPeerDisconnected)

	ch = NewTransportChannel(&stubTransport{err: core.ErrTimeout})
	_, err = ch.SendInvitation(context.Background(), invitationFor(&core.Session{ID: "s2"}))
	assert.ErrorIs(t, err, core.ErrTimeout)

	ch = NewTransportChannel(&stubTransport{answer: json.RawMessage(`"yes"`)})
	_, err = ch.SendInvitation(context.Background(), invitationFor(&core.Session{ID: "s2"}))
	require.Error(t, err)
	var syntax *json.UnmarshalTypeError
	assert.True(t, errors.As(err, &syntax))
}

func TestChannelCapabilities(t *testing.T) {
	ch := NewTransportChannel(nil)
	assert.Equal(t, PlatformName, ch.PlatformName())
	assert.True(t, ch.IsCompatible("psn"))
	assert.False(t, ch.CanReachOfflineUsers())
}
