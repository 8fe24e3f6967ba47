package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type memberJoinedPayload struct {
	SessionID core.SessionID     `json:"sessionId"`
	Member    domain.PartyMember `json:"member"`
}

type memberLeftPayload struct {
	UserID domain.UserID           `json:"userId"`
	Reason domain.DisconnectReason `json:"reason"`
}

type leaderChangedPayload struct {
	LeaderID domain.UserID `json:"leaderId"`
}

type memberStatus struct {
	UserID domain.UserID          `json:"userId"`
	Status domain.ReadinessStatus `json:"status"`
}

type memberStatusPayload struct {
	Members []memberStatus `json:"members"`
}

type memberDataPayload struct {
	UserID   domain.UserID `json:"userId"`
	UserData []byte        `json:"userData"`
}

type settingsPayload struct {
	Settings        domain.PartySettings `json:"settings"`
	SettingsVersion int                  `json:"settingsVersion"`
}

type gameFinderFailedPayload struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason"`
}

func uniform(v any) func(*member) any {
	return func(*member) any { return v }
}

// broadcast bumps the state version and delivers one notification per
// member. All sends share a single ack timeout. Failures are logged and
// never returned: a member that misses an update recovers with a full
// state pull.
func (p *Party) broadcast(ctx context.Context, route string, payloadFor func(m *member) any) {
	p.stateVersion++
	version := p.stateVersion
	if len(p.order) == 0 {
		return
	}

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ClientAckTimeout)
	defer cancel()

	wp := pool.New().WithMaxGoroutines(p.cfg.BroadcastConcurrency)
	for _, sid := range p.order {
		m := p.members[sid]
		n := core.Notification{StateVersion: version, Payload: payloadFor(m)}
		uid := m.data.UserID
		wp.Go(func() {
			if _, err := p.transport.Send(bctx, sid, route, n); err != nil {
				p.logger.Warn().
					Err(err).
					Str("route", route).
					Str("sid", string(sid)).
					Str("user", string(uid)).
					Int("state_version", version).
					Msg("member did not acknowledge update")
			}
		})
	}
	wp.Wait()
	p.logger.Debug().Str("route", route).Int("state_version", version).Int("members", len(p.order)).Msg("broadcast done")
}

func (p *Party) broadcastSettings(ctx context.Context) {
	s := p.settings.Clone()
	version := p.settingsVersion
	view := p.hooks.MemberSettings
	p.broadcast(ctx, core.RouteSettingsUpdated, func(m *member) any {
		out := s.Clone()
		if view != nil {
			out = view(m.data.Clone(), out)
		}
		return settingsPayload{Settings: out, SettingsVersion: version}
	})
}

func (p *Party) broadcastLeader(ctx context.Context) {
	p.broadcast(ctx, core.RouteLeaderChanged, uniform(leaderChangedPayload{LeaderID: p.settings.PartyLeaderID}))
}

func (p *Party) partyState() domain.PartyState {
	s := p.requireSettings()
	return domain.PartyState{
		Settings:        s.Clone(),
		LeaderID:        s.PartyLeaderID,
		Members:         p.memberList(),
		SettingsVersion: p.settingsVersion,
		StateVersion:    p.stateVersion,
	}
}

// SendPartyState pushes the full state to one member as a fresh request.
func (p *Party) SendPartyState(ctx context.Context, recipient core.SessionID) error {
	return p.do(ctx, func(ctx context.Context) error {
		if _, err := p.memberOf(recipient); err != nil {
			return err
		}
		state := p.partyState()
		sctx, cancel := context.WithTimeout(ctx, p.cfg.ClientAckTimeout)
		defer cancel()
		n := core.Notification{StateVersion: p.stateVersion, Payload: state}
		if _, err := p.transport.Send(sctx, recipient, core.RoutePartyState, n); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %w", core.ErrTimeout, err)
			}
			return fmt.Errorf("send party state to %s: %w", recipient, err)
		}
		return nil
	})
}

// SendPartyStateAsRequestAnswer returns the full state so it can be used
// as the answer to the member's own request.
func (p *Party) SendPartyStateAsRequestAnswer(ctx context.Context, recipient core.SessionID) (domain.PartyState, error) {
	return doValue(ctx, p, func(ctx context.Context) (domain.PartyState, error) {
		if _, err := p.memberOf(recipient); err != nil {
			return domain.PartyState{}, err
		}
		return p.partyState(), nil
	})
}
