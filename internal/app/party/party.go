// Package party coordinates one group of players: membership, leader
// election, versioned settings, readiness and the hand-off to matchmaking.
//
// All party state is owned by a single taskqueue.Queue. Every exported
// operation that reads or writes it is a work item on that queue, so
// operations on one party are applied one at a time in submission order.
// Different parties share nothing and run in parallel.
package party

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/dkeye/partyhub/internal/app/taskqueue"
	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

const (
	DefaultClientAckTimeout     = 2 * time.Second
	DefaultQueueSize            = 64
	DefaultBroadcastConcurrency = 16
)

type Config struct {
	// ClientAckTimeout bounds one broadcast, across all members.
	ClientAckTimeout     time.Duration
	MaxMembers           int
	QueueSize            int
	BroadcastConcurrency int
}

func (c Config) withDefaults() Config {
	if c.ClientAckTimeout <= 0 {
		c.ClientAckTimeout = DefaultClientAckTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.BroadcastConcurrency <= 0 {
		c.BroadcastConcurrency = DefaultBroadcastConcurrency
	}
	return c
}

// InvitationCodes hands out short codes that resolve to a party.
type InvitationCodes interface {
	Create(id domain.PartyID) (string, error)
	Release(code string)
}

type Options struct {
	Config     Config
	Sessions   core.SessionProvider
	Transport  core.Transport
	Matchmaker core.Matchmaker
	// Channels are tried in order when picking an invitation channel.
	Channels       []core.InvitationChannel
	DefaultChannel core.InvitationChannel
	Codes          InvitationCodes
	Hooks          Hooks
}

type member struct {
	session core.Session
	data    domain.PartyMember
}

type pendingPeer struct {
	session  core.Session
	userData []byte
}

type gameFinderRequest struct {
	id       string
	cancel   context.CancelFunc
	canceled bool
}

type Party struct {
	id         domain.PartyID
	cfg        Config
	queue      *taskqueue.Queue
	sessions   core.SessionProvider
	transport  core.Transport
	matchmaker core.Matchmaker
	channels   []core.InvitationChannel
	defaultCh  core.InvitationChannel
	codes      InvitationCodes
	hooks      Hooks
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	bg     conc.WaitGroup

	// Owned by the queue goroutine.
	settings        *domain.PartySettings
	settingsVersion int
	stateVersion    int
	members         map[core.SessionID]*member
	order           []core.SessionID
	pending         map[core.SessionID]pendingPeer
	invitations     map[domain.UserID]map[domain.UserID]*invitation
	gameFinder      *gameFinderRequest
	code            string
	closed          bool

	view atomic.Pointer[View]
}

func New(id domain.PartyID, opts Options) *Party {
	cfg := opts.Config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	hooks := opts.Hooks
	hooks.JoinPolicies = append([]JoinPolicy{UniqueUser(), MaxMembers(cfg.MaxMembers)}, hooks.JoinPolicies...)

	p := &Party{
		id:          id,
		cfg:         cfg,
		queue:       taskqueue.New(cfg.QueueSize),
		sessions:    opts.Sessions,
		transport:   opts.Transport,
		matchmaker:  opts.Matchmaker,
		channels:    slices.Clone(opts.Channels),
		defaultCh:   opts.DefaultChannel,
		codes:       opts.Codes,
		hooks:       hooks,
		logger:      log.With().Str("module", "app.party").Str("party_id", string(id)).Logger(),
		ctx:         ctx,
		cancel:      cancel,
		members:     make(map[core.SessionID]*member),
		pending:     make(map[core.SessionID]pendingPeer),
		invitations: make(map[domain.UserID]map[domain.UserID]*invitation),
	}
	p.publish()
	return p
}

func (p *Party) ID() domain.PartyID { return p.id }

// Configure installs the initial settings. The leader is always cleared:
// the first member to connect becomes leader.
func (p *Party) Configure(ctx context.Context, settings domain.PartySettings) error {
	return p.do(ctx, func(ctx context.Context) error {
		s := settings.Clone()
		s.PartyID = p.id
		s.PartyLeaderID = ""
		p.settings = &s
		p.settingsVersion++
		p.logger.Info().Str("game_finder", s.GameFinderName).Bool("joinable", s.IsJoinable).Msg("party configured")
		return nil
	})
}

// Close tears the party down: matchmaking is canceled, pending invitations
// fail with ErrClosed and the queue stops. Safe to call more than once.
func (p *Party) Close() {
	_, _ = p.shutdown(context.Background(), false)
}

// CloseIfEmpty closes the party only if no member is joined or connecting.
func (p *Party) CloseIfEmpty(ctx context.Context) (bool, error) {
	return p.shutdown(ctx, true)
}

func (p *Party) shutdown(ctx context.Context, onlyIfEmpty bool) (bool, error) {
	closed, err := taskqueue.Do(ctx, p.queue, func(ctx context.Context) (bool, error) {
		if p.closed {
			return false, nil
		}
		if onlyIfEmpty && (len(p.members) > 0 || len(p.pending) > 0) {
			return false, nil
		}
		p.closed = true
		if p.gameFinder != nil {
			p.gameFinder.cancel()
		}
		for _, bySender := range p.invitations {
			for _, inv := range bySender {
				inv.resolve(false, ErrClosed)
			}
		}
		clear(p.invitations)
		p.releaseCode()
		p.publish()
		return true, nil
	})
	if errors.Is(err, taskqueue.ErrClosed) {
		return false, nil
	}
	if err != nil || !closed {
		return false, err
	}
	p.cancel()
	p.bg.Wait()
	p.queue.Close()
	p.logger.Info().Msg("party closed")
	return true, nil
}

// do runs fn on the queue and refreshes the published view afterwards.
func (p *Party) do(ctx context.Context, fn taskqueue.Func) error {
	err := p.queue.Push(ctx, func(ctx context.Context) error {
		if p.closed {
			return ErrClosed
		}
		defer p.publish()
		return fn(ctx)
	})
	if errors.Is(err, taskqueue.ErrClosed) {
		return ErrClosed
	}
	return err
}

func doValue[T any](ctx context.Context, p *Party, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// spawn runs fn outside the queue for the lifetime of the party.
func (p *Party) spawn(name string, fn func(ctx context.Context)) {
	p.bg.Go(func() {
		if r := panics.Try(func() { fn(p.ctx) }); r != nil {
			p.logger.Error().Err(r.AsError()).Str("task", name).Msg("background task panicked")
		}
	})
}

func (p *Party) requireSettings() *domain.PartySettings {
	if p.settings == nil {
		panic("party " + string(p.id) + ": settings not configured")
	}
	return p.settings
}

func (p *Party) memberOf(sid core.SessionID) (*member, error) {
	m, ok := p.members[sid]
	if !ok {
		return nil, ErrNotMember
	}
	return m, nil
}

func (p *Party) sessionOfUser(uid domain.UserID) (core.SessionID, bool) {
	for _, sid := range p.order {
		if p.members[sid].data.UserID == uid {
			return sid, true
		}
	}
	return "", false
}

func (p *Party) isLeader(m *member) bool {
	return p.settings != nil && p.settings.PartyLeaderID == m.data.UserID
}

func (p *Party) memberList() []domain.PartyMember {
	out := make([]domain.PartyMember, 0, len(p.order))
	for _, sid := range p.order {
		out = append(out, p.members[sid].data.Clone())
	}
	return out
}

func (p *Party) connectingUsers() []domain.UserID {
	out := make([]domain.UserID, 0, len(p.pending))
	for _, peer := range p.pending {
		out = append(out, peer.session.User.ID)
	}
	return out
}

// MemberView is a member as seen from outside the queue.
type MemberView struct {
	SessionID core.SessionID `json:"sessionId"`
	domain.PartyMember
}

// View is an immutable snapshot of the party, refreshed after every
// operation. It may lag behind operations that are still queued.
type View struct {
	Settings          domain.PartySettings `json:"settings"`
	Configured        bool                 `json:"configured"`
	Members           []MemberView         `json:"members"`
	PendingPeers      int                  `json:"pendingPeers"`
	SettingsVersion   int                  `json:"settingsVersion"`
	StateVersion      int                  `json:"stateVersion"`
	GameFinderRunning bool                 `json:"gameFinderRunning"`
	InvitationCode    string               `json:"invitationCode,omitempty"`
	Closed            bool                 `json:"closed"`
}

func (p *Party) publish() {
	v := &View{
		PendingPeers:      len(p.pending),
		SettingsVersion:   p.settingsVersion,
		StateVersion:      p.stateVersion,
		GameFinderRunning: p.gameFinderRunning(),
		InvitationCode:    p.code,
		Closed:            p.closed,
		Members:           make([]MemberView, 0, len(p.order)),
	}
	if p.settings != nil {
		v.Settings = p.settings.Clone()
		v.Configured = true
	}
	for _, sid := range p.order {
		v.Members = append(v.Members, MemberView{SessionID: sid, PartyMember: p.members[sid].data.Clone()})
	}
	p.view.Store(v)
}

// View returns the latest published snapshot. Callers must not modify it.
func (p *Party) View() *View { return p.view.Load() }

func (p *Party) Settings() domain.PartySettings { return p.View().Settings.Clone() }

func (p *Party) Members() []MemberView { return slices.Clone(p.View().Members) }

func (p *Party) IsGameFinderRunning() bool { return p.View().GameFinderRunning }
