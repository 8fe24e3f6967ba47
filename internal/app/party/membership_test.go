package party

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

func TestFirstMemberBecomesLeader(t *testing.T) {
	h := newHarness(t, nil)
	h.join(t, "s1", "alice")
	h.join(t, "s2", "bob")

	assert.Equal(t, domain.UserID("alice"), h.party.Settings().PartyLeaderID)
	members := h.party.Members()
	require.Len(t, members, 2)
	assert.Equal(t, domain.UserID("alice"), members[0].UserID)
	assert.Equal(t, domain.NotReady, members[1].Status)

	// alice saw bob join.
	joined := h.transport.received("s1", core.RouteMemberJoined)
	require.NotEmpty(t, joined)
	last := joined[len(joined)-1].Payload.(memberJoinedPayload)
	assert.Equal(t, domain.UserID("bob"), last.Member.UserID)
}

func TestOnConnectingDeniedWhenNotJoinable(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.party.Configure(context.Background(), domain.PartySettings{GameFinderName: "ranked"}))
	h.sessions.add("s1", "alice", "pc")

	d, err := h.party.OnConnecting(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonNotJoinable, d.Reason)
	assert.Equal(t, 0, h.party.View().PendingPeers)
}

func TestOnConnectingUnknownSession(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.party.OnConnecting(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestCapacityCountsPendingPeers(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Config.MaxMembers = 2 })
	ctx := context.Background()
	h.join(t, "s1", "alice")

	h.sessions.add("s2", "bob", "pc")
	d, err := h.party.OnConnecting(ctx, "s2", nil)
	require.NoError(t, err)
	require.True(t, d.Accepted)

	// bob holds the second slot while still connecting.
	h.sessions.add("s3", "carol", "pc")
	d, err = h.party.OnConnecting(ctx, "s3", nil)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonFull, d.Reason)

	require.NoError(t, h.party.OnConnectionRejected(ctx, "s2", "handshake failed"))
	d, err = h.party.OnConnecting(ctx, "s3", nil)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
}

func TestJoinPoliciesFoldLeftToRight(t *testing.T) {
	var seen []Decision
	var mu sync.Mutex
	h := newHarness(t, func(o *Options) {
		o.Hooks.JoinPolicies = []JoinPolicy{
			func(_ context.Context, req JoinRequest, d Decision) Decision {
				if req.Session.User.ID == "mallory" {
					return Deny("banned")
				}
				return d
			},
			func(_ context.Context, _ JoinRequest, d Decision) Decision {
				mu.Lock()
				seen = append(seen, d)
				mu.Unlock()
				return d
			},
		}
	})
	h.sessions.add("s1", "mallory", "pc")
	d, err := h.party.OnConnecting(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, Deny("banned"), d)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.False(t, seen[0].Accepted)
}

func TestUserCannotJoinTwice(t *testing.T) {
	h := newHarness(t, nil)
	h.join(t, "s1", "alice")
	h.sessions.add("s2", "alice", "pc")
	d, err := h.party.OnConnecting(context.Background(), "s2", nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyMember, d.Reason)
}

func TestUserCannotConnectOnTwoSessions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.sessions.add("a1", "alice", "pc")
	h.sessions.add("a2", "alice", "console")

	d, err := h.party.OnConnecting(ctx, "a1", nil)
	require.NoError(t, err)
	require.True(t, d.Accepted)

	// a1 has not finished connecting yet.
	d, err = h.party.OnConnecting(ctx, "a2", nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyMember, d.Reason)

	require.NoError(t, h.party.OnConnected(ctx, "a1"))
	require.Len(t, h.party.Members(), 1)
	assert.Equal(t, core.SessionID("a1"), h.party.Members()[0].SessionID)
	assert.Zero(t, h.party.View().PendingPeers)
}

func TestOnConnectedRejectsDuplicateUser(t *testing.T) {
	// A custom policy overriding the built-in guard must still not yield
	// two members with one user id.
	h := newHarness(t, func(o *Options) {
		o.Hooks.JoinPolicies = append(o.Hooks.JoinPolicies, func(context.Context, JoinRequest, Decision) Decision {
			return Accept()
		})
	})
	ctx := context.Background()
	h.sessions.add("a1", "alice", "pc")
	h.sessions.add("a2", "alice", "console")

	for _, sid := range []core.SessionID{"a1", "a2"} {
		d, err := h.party.OnConnecting(ctx, sid, nil)
		require.NoError(t, err)
		require.True(t, d.Accepted)
	}
	require.NoError(t, h.party.OnConnected(ctx, "a1"))
	assert.ErrorIs(t, h.party.OnConnected(ctx, "a2"), ErrAlreadyMember)

	require.Len(t, h.party.Members(), 1)
	assert.Zero(t, h.party.View().PendingPeers)
}

func TestOnConnectedRequiresAcceptedPeer(t *testing.T) {
	h := newHarness(t, nil)
	h.sessions.add("s1", "alice", "pc")
	assert.ErrorIs(t, h.party.OnConnected(context.Background(), "s1"), ErrNotAccepted)
}

func TestJoinDeniedHookRunsOutsideQueue(t *testing.T) {
	events := make(chan JoinDenied, 1)
	var h *harness
	h = newHarness(t, func(o *Options) {
		o.Hooks.OnJoinDenied = func(ctx context.Context, ev JoinDenied) {
			// Reaching back into the party works because the hook is not a work item.
			_, _ = h.party.PendingInvitations(ctx, "nobody")
			events <- ev
		}
	})
	require.NoError(t, h.party.OnConnectionRejected(context.Background(), "s9", "full"))
	select {
	case ev := <-events:
		assert.Equal(t, core.SessionID("s9"), ev.SessionID)
		assert.Equal(t, "full", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("join denied hook not called")
	}
}

func TestLeaderDepartureElectsNextMember(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.join(t, "s1", "alice")
	h.join(t, "s2", "bob")
	h.join(t, "s3", "carol")

	require.NoError(t, h.party.OnDisconnected(ctx, "s1", "bye"))
	assert.Equal(t, domain.UserID("bob"), h.party.Settings().PartyLeaderID)

	changes := h.transport.received("s3", core.RouteLeaderChanged)
	require.NotEmpty(t, changes)
	assert.Equal(t, domain.UserID("bob"), changes[len(changes)-1].Payload.(leaderChangedPayload).LeaderID)

	left := h.transport.received("s3", core.RouteMemberLeft)
	require.Len(t, left, 1)
	assert.Equal(t, memberLeftPayload{UserID: "alice", Reason: domain.ReasonLeft}, left[0].Payload)

	// A non-leader leaving keeps the leader.
	require.NoError(t, h.party.OnDisconnected(ctx, "s3", ""))
	assert.Equal(t, domain.UserID("bob"), h.party.Settings().PartyLeaderID)

	require.NoError(t, h.party.OnDisconnected(ctx, "s2", ""))
	assert.Empty(t, h.party.Settings().PartyLeaderID)
	assert.Empty(t, h.party.Members())
}

func TestQuitHookReportsEmptyParty(t *testing.T) {
	events := make(chan QuitEvent, 4)
	h := newHarness(t, func(o *Options) {
		o.Hooks.OnQuit = func(_ context.Context, ev QuitEvent) { events <- ev }
	})
	h.join(t, "s1", "alice")
	require.NoError(t, h.party.OnDisconnected(context.Background(), "s1", domain.KickedSentinel))

	select {
	case ev := <-events:
		assert.Equal(t, domain.UserID("alice"), ev.UserID)
		assert.Equal(t, domain.ReasonKicked, ev.Reason)
		assert.True(t, ev.Empty)
	case <-time.After(time.Second):
		t.Fatal("quit hook not called")
	}
}

func TestKickPlayer(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.join(t, "s1", "alice")
	h.join(t, "s2", "bob")
	h.join(t, "s3", "carol")

	assert.ErrorIs(t, h.party.KickPlayer(ctx, "s2", "carol"), ErrNotLeader)
	assert.ErrorIs(t, h.party.KickPlayer(ctx, "s2", "alice"), ErrKickLeader)
	assert.ErrorIs(t, h.party.KickPlayer(ctx, "s1", "alice"), ErrKickLeader)
	assert.NoError(t, h.party.KickPlayer(ctx, "s1", "nobody"))
	assert.Len(t, h.party.Members(), 3)

	require.NoError(t, h.party.KickPlayer(ctx, "s1", "carol"))
	assert.Len(t, h.party.Members(), 2)
	h.transport.mu.Lock()
	assert.Equal(t, domain.KickedSentinel, h.transport.disconnected["s3"])
	h.transport.mu.Unlock()

	left := h.transport.received("s2", core.RouteMemberLeft)
	require.Len(t, left, 1)
	assert.Equal(t, domain.ReasonKicked, left[0].Payload.(memberLeftPayload).Reason)

	// The transport reports the close afterwards; it is a no-op by then.
	require.NoError(t, h.party.OnDisconnected(ctx, "s3", domain.KickedSentinel))
	assert.Len(t, h.transport.received("s2", core.RouteMemberLeft), 1)
}

func TestPromoteLeader(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.join(t, "s1", "alice")
	h.join(t, "s2", "bob")

	assert.ErrorIs(t, h.party.PromoteLeader(ctx, "s2", "bob"), ErrNotLeader)
	assert.ErrorIs(t, h.party.PromoteLeader(ctx, "s1", "nobody"), ErrUnknownMember)
	assert.ErrorIs(t, h.party.PromoteLeader(ctx, "s9", "bob"), ErrNotMember)

	require.NoError(t, h.party.PromoteLeader(ctx, "s1", "bob"))
	assert.Equal(t, domain.UserID("bob"), h.party.Settings().PartyLeaderID)
	assert.ErrorIs(t, h.party.KickPlayer(ctx, "s1", "bob"), ErrKickLeader)
	require.NoError(t, h.party.KickPlayer(ctx, "s2", "alice"))
}

func TestConcurrentMutationsNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	track := func() {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(50 * time.Microsecond)
		inFlight.Add(-1)
	}
	h := newHarness(t, func(o *Options) {
		o.Hooks.JoinPolicies = []JoinPolicy{func(_ context.Context, _ JoinRequest, d Decision) Decision {
			track()
			return d
		}}
		o.Hooks.SettingsPolicies = []SettingsPolicy{func(_ context.Context, _ SettingsProposal, d SettingsDecision) SettingsDecision {
			track()
			return d
		}}
		o.Hooks.AfterSettingsApplied = func(context.Context, domain.PartySettings) { track() }
	})
	h.join(t, "leader", "lead")

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sid := core.SessionID("s" + string(rune('a'+i)))
		uid := domain.UserID("u" + string(rune('a'+i)))
		h.sessions.add(sid, uid, "pc")
		wg.Add(2)
		go func() {
			defer wg.Done()
			if d, err := h.party.OnConnecting(ctx, sid, nil); err == nil && d.Accepted {
				_ = h.party.OnConnected(ctx, sid)
				_ = h.party.OnDisconnected(ctx, sid, "")
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = h.party.UpdateSettings(ctx, "leader", domain.SettingsUpdate{GameFinderName: "ranked", IsJoinable: true})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Len(t, h.party.Members(), 1)
	assert.Equal(t, 0, h.party.View().PendingPeers)
}
