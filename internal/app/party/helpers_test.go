package party

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type sentMsg struct {
	to      core.SessionID
	route   string
	payload any
}

type fakeTransport struct {
	mu           sync.Mutex
	sent         []sentMsg
	slow         map[core.SessionID]bool
	disconnected map[core.SessionID]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		slow:         make(map[core.SessionID]bool),
		disconnected: make(map[core.SessionID]string),
	}
}

func (t *fakeTransport) Send(ctx context.Context, to core.SessionID, route string, payload any) (json.RawMessage, error) {
	t.mu.Lock()
	slow := t.slow[to]
	t.mu.Unlock()
	if slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	t.mu.Lock()
	t.sent = append(t.sent, sentMsg{to: to, route: route, payload: payload})
	t.mu.Unlock()
	return json.RawMessage(`{}`), nil
}

func (t *fakeTransport) Disconnect(to core.SessionID, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected[to] = reason
	return nil
}

func (t *fakeTransport) setSlow(sid core.SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slow[sid] = true
}

// received returns the payloads sent to sid on route, in order.
func (t *fakeTransport) received(sid core.SessionID, route string) []core.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []core.Notification
	for _, m := range t.sent {
		if m.to == sid && m.route == route {
			out = append(out, m.payload.(core.Notification))
		}
	}
	return out
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[core.SessionID]core.Session
	users    map[domain.UserID]domain.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: make(map[core.SessionID]core.Session),
		users:    make(map[domain.UserID]domain.User),
	}
}

func (s *fakeSessions) add(sid core.SessionID, uid domain.UserID, platform string) core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: uid, Username: string(uid), Platform: domain.PlatformID{Platform: platform, OnlineID: string(uid)}}
	sess := core.Session{ID: sid, User: u}
	s.sessions[sid] = sess
	s.users[uid] = u
	return sess
}

func (s *fakeSessions) addOffline(uid domain.UserID, platform string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[uid] = domain.User{ID: uid, Username: string(uid), Platform: domain.PlatformID{Platform: platform, OnlineID: string(uid)}}
}

func (s *fakeSessions) GetSession(_ context.Context, sid core.SessionID) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return sess, nil
}

func (s *fakeSessions) GetSessionByUser(_ context.Context, uid domain.UserID) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.User.ID == uid {
			return sess, nil
		}
	}
	return core.Session{}, core.ErrSessionNotFound
}

func (s *fakeSessions) GetUser(_ context.Context, uid domain.UserID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return domain.User{}, core.ErrUserNotFound
	}
	return u, nil
}

// blockingMatchmaker runs until canceled unless result is set.
type blockingMatchmaker struct {
	mu     sync.Mutex
	calls  []core.GameFinderRequest
	result chan error
}

func newBlockingMatchmaker() *blockingMatchmaker {
	return &blockingMatchmaker{result: make(chan error, 1)}
}

func (m *blockingMatchmaker) FindGame(ctx context.Context, req core.GameFinderRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	select {
	case err := <-m.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *blockingMatchmaker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type fakeChannel struct {
	name       string
	offline    bool
	compatible []string // empty means every platform
	// answer, when set, is returned at once; otherwise delivery waits for ctx.
	answer *bool

	mu    sync.Mutex
	calls []core.InvitationContext
}

func (c *fakeChannel) PlatformName() string       { return c.name }
func (c *fakeChannel) CanReachOfflineUsers() bool { return c.offline }

func (c *fakeChannel) IsCompatible(platform string) bool {
	if len(c.compatible) == 0 {
		return true
	}
	for _, p := range c.compatible {
		if p == platform {
			return true
		}
	}
	return false
}

func (c *fakeChannel) SendInvitation(ctx context.Context, ic core.InvitationContext) (bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, ic)
	c.mu.Unlock()
	if c.answer != nil {
		return *c.answer, nil
	}
	<-ctx.Done()
	return false, ctx.Err()
}

func (c *fakeChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeCodes struct {
	mu       sync.Mutex
	next     int
	released []string
}

func (c *fakeCodes) Create(domain.PartyID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return fmt.Sprintf("CODE%02d", c.next), nil
}

func (c *fakeCodes) Release(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, code)
}

type harness struct {
	party      *Party
	transport  *fakeTransport
	sessions   *fakeSessions
	matchmaker *blockingMatchmaker
}

func defaultSettings() domain.PartySettings {
	return domain.PartySettings{GameFinderName: "ranked", IsJoinable: true}
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		transport:  newFakeTransport(),
		sessions:   newFakeSessions(),
		matchmaker: newBlockingMatchmaker(),
	}
	opts := Options{
		Config:     Config{ClientAckTimeout: 100 * time.Millisecond},
		Sessions:   h.sessions,
		Transport:  h.transport,
		Matchmaker: h.matchmaker,
		Codes:      &fakeCodes{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.party = New("party-1", opts)
	t.Cleanup(h.party.Close)
	require.NoError(t, h.party.Configure(context.Background(), defaultSettings()))
	return h
}

func (h *harness) join(t *testing.T, sid core.SessionID, uid domain.UserID) {
	t.Helper()
	h.joinOn(t, sid, uid, "pc")
}

func (h *harness) joinOn(t *testing.T, sid core.SessionID, uid domain.UserID, platform string) {
	t.Helper()
	ctx := context.Background()
	h.sessions.add(sid, uid, platform)
	d, err := h.party.OnConnecting(ctx, sid, nil)
	require.NoError(t, err)
	require.True(t, d.Accepted, "join denied: %s", d.Reason)
	require.NoError(t, h.party.OnConnected(ctx, sid))
}

func (h *harness) statuses() map[domain.UserID]domain.ReadinessStatus {
	out := make(map[domain.UserID]domain.ReadinessStatus)
	for _, m := range h.party.Members() {
		out[m.UserID] = m.Status
	}
	return out
}

func (h *harness) version() int {
	return h.party.View().SettingsVersion
}
