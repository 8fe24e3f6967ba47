package app

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type nopTransport struct{}

func (nopTransport) Send(context.Context, core.SessionID, string, any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (nopTransport) Disconnect(core.SessionID, string) error { return nil }

type nopMatchmaker struct{}

func (nopMatchmaker) FindGame(ctx context.Context, _ core.GameFinderRequest) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestRegistry(t *testing.T) (*Registry, *Sessions) {
	t.Helper()
	sessions := NewSessions()
	reg := NewRegistry(party.Options{
		Config:     party.Config{ClientAckTimeout: 100 * time.Millisecond},
		Sessions:   sessions,
		Transport:  nopTransport{},
		Matchmaker: nopMatchmaker{},
	}, 6)
	t.Cleanup(reg.CloseAll)
	return reg, sessions
}

func joinParty(t *testing.T, p *party.Party, sessions *Sessions, sid core.SessionID, uid domain.UserID) {
	t.Helper()
	ctx := context.Background()
	sessions.Open(sid, domain.User{ID: uid, Username: string(uid)})
	d, err := p.OnConnecting(ctx, sid, nil)
	require.NoError(t, err)
	require.True(t, d.Accepted)
	require.NoError(t, p.OnConnected(ctx, sid))
}

func TestCreateParty(t *testing.T) {
	reg, _ := newTestRegistry(t)
	p, err := reg.CreateParty(context.Background(), domain.PartySettings{GameFinderName: "ranked", IsJoinable: true, PartyLeaderID: "ignored"})
	require.NoError(t, err)

	got, ok := reg.Get(p.ID())
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, p.ID(), p.Settings().PartyID)
	assert.Empty(t, p.Settings().PartyLeaderID)
	assert.Equal(t, []domain.PartyID{p.ID()}, reg.List())
}

func TestSessionBindings(t *testing.T) {
	reg, _ := newTestRegistry(t)
	p, err := reg.CreateParty(context.Background(), domain.PartySettings{GameFinderName: "ranked"})
	require.NoError(t, err)

	_, ok := reg.PartyOf("s1")
	assert.False(t, ok)
	reg.Bind("s1", p.ID())
	got, ok := reg.PartyOf("s1")
	require.True(t, ok)
	assert.Same(t, p, got)

	id, ok := reg.Unbind("s1")
	assert.True(t, ok)
	assert.Equal(t, p.ID(), id)
	_, ok = reg.Unbind("s1")
	assert.False(t, ok)
}

func TestInvitationCodes(t *testing.T) {
	reg, _ := newTestRegistry(t)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := reg.Create("party-1")
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			require.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected %q in %s", c, code)
		}
		require.False(t, seen[code])
		seen[code] = true
	}

	code, err := reg.Create("party-2")
	require.NoError(t, err)
	id, ok := reg.ResolveInvitationCode(" " + strings.ToLower(code) + " ")
	require.True(t, ok)
	assert.Equal(t, domain.PartyID("party-2"), id)

	reg.Release(code)
	_, ok = reg.ResolveInvitationCode(code)
	assert.False(t, ok)
}

func TestPartyCodeReleasedOnClose(t *testing.T) {
	reg, sessions := newTestRegistry(t)
	ctx := context.Background()
	p, err := reg.CreateParty(ctx, domain.PartySettings{GameFinderName: "ranked", IsJoinable: true})
	require.NoError(t, err)
	joinParty(t, p, sessions, "s1", "alice")

	code, err := p.CreateInvitationCode(ctx, "s1")
	require.NoError(t, err)
	id, ok := reg.ResolveInvitationCode(code)
	require.True(t, ok)
	assert.Equal(t, p.ID(), id)

	reg.Remove(p.ID())
	_, ok = reg.ResolveInvitationCode(code)
	assert.False(t, ok)
	_, ok = reg.Get(p.ID())
	assert.False(t, ok)
	assert.True(t, p.View().Closed)
}

func TestEmptyPartyIsReclaimed(t *testing.T) {
	reg, sessions := newTestRegistry(t)
	ctx := context.Background()
	p, err := reg.CreateParty(ctx, domain.PartySettings{GameFinderName: "ranked", IsJoinable: true})
	require.NoError(t, err)
	joinParty(t, p, sessions, "s1", "alice")
	joinParty(t, p, sessions, "s2", "bob")
	reg.Bind("s1", p.ID())

	require.NoError(t, p.OnDisconnected(ctx, "s2", ""))
	time.Sleep(20 * time.Millisecond)
	_, ok := reg.Get(p.ID())
	require.True(t, ok, "party with a member left must survive")

	require.NoError(t, p.OnDisconnected(ctx, "s1", ""))
	assert.Eventually(t, func() bool {
		_, ok := reg.Get(p.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)
	_, ok = reg.PartyOf("s1")
	assert.False(t, ok)
	assert.True(t, p.View().Closed)
}
