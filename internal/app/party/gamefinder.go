package party

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type StatusUpdate struct {
	Status domain.ReadinessStatus `json:"status"`
	// ClientSettingsVersion is the settings version the client last saw.
	ClientSettingsVersion int `json:"settingsVersion"`
}

// UpdateGameFinderPlayerStatus changes the caller's readiness and starts or
// cancels matchmaking so that a request runs exactly when the policy chain
// says it should.
func (p *Party) UpdateGameFinderPlayerStatus(ctx context.Context, caller core.SessionID, upd StatusUpdate) error {
	return p.do(ctx, func(ctx context.Context) error {
		s := p.requireSettings()
		m, err := p.memberOf(caller)
		if err != nil {
			return err
		}
		if upd.Status == domain.Ready && upd.ClientSettingsVersion < p.settingsVersion {
			return ErrStaleSettings
		}
		if m.data.Status == upd.Status {
			return nil
		}
		m.data.Status = upd.Status
		p.broadcast(ctx, core.RouteMemberStatus, uniform(memberStatusPayload{
			Members: []memberStatus{{UserID: m.data.UserID, Status: upd.Status}},
		}))

		change := StatusChange{Member: m.data.Clone(), Members: p.memberList(), Settings: s.Clone()}
		var start bool
		switch foldGameFinder(ctx, p.hooks.GameFinderPolicies, change) {
		case TriggerStart:
			start = true
		case TriggerNever:
			start = false
		default:
			start = p.allReady()
		}

		switch running := p.gameFinderRunning(); {
		case start && !running:
			p.launchGameFinder(ctx)
		case !start && running:
			p.tryCancelGameFinder(ctx)
		}
		return nil
	})
}

func (p *Party) allReady() bool {
	if len(p.order) == 0 {
		return false
	}
	for _, sid := range p.order {
		if p.members[sid].data.Status != domain.Ready {
			return false
		}
	}
	return true
}

func (p *Party) gameFinderRunning() bool {
	return p.gameFinder != nil && !p.gameFinder.canceled
}

// launchGameFinder submits a matchmaking request outside the queue. The
// request snapshot is taken now; completion re-enters the queue.
func (p *Party) launchGameFinder(ctx context.Context) {
	if p.gameFinderRunning() {
		return
	}
	if p.matchmaker == nil {
		p.logger.Warn().Msg("matchmaking requested but no matchmaker is configured")
		return
	}
	s := p.requireSettings()
	req := core.GameFinderRequest{
		RequestID:      uuid.NewString(),
		PartyID:        p.id,
		GameFinderName: s.GameFinderName,
		CustomData:     s.CustomData,
		Members:        make([]core.GameFinderMember, 0, len(p.order)),
	}
	for _, sid := range p.order {
		m := p.members[sid]
		req.Members = append(req.Members, core.GameFinderMember{
			SessionID: sid,
			UserID:    m.data.UserID,
			UserData:  m.data.Clone().UserData,
		})
	}

	gctx, cancel := context.WithCancel(p.ctx)
	gf := &gameFinderRequest{id: req.RequestID, cancel: cancel}
	p.gameFinder = gf
	p.logger.Info().Str("request_id", gf.id).Str("game_finder", req.GameFinderName).Int("members", len(req.Members)).Msg("matchmaking started")

	p.spawn("gamefinder", func(context.Context) { p.runGameFinder(gctx, gf, req) })
}

func (p *Party) runGameFinder(ctx context.Context, gf *gameFinderRequest, req core.GameFinderRequest) {
	err := p.matchmaker.FindGame(ctx, req)
	gf.cancel()

	failed := false
	switch {
	case err == nil:
		p.logger.Info().Str("request_id", gf.id).Msg("matchmaking completed")
	case errors.Is(err, context.Canceled), errors.Is(err, core.ErrPeerDisconnected):
		p.logger.Info().Err(err).Str("request_id", gf.id).Msg("matchmaking canceled")
	default:
		failed = true
		p.logger.Error().Err(err).Str("request_id", gf.id).Msg("matchmaking failed")
	}

	// The party may already be closed; nothing is left to reset then.
	_ = p.do(context.Background(), func(ctx context.Context) error {
		if p.gameFinder != gf {
			return nil
		}
		p.gameFinder = nil
		if failed {
			p.broadcast(ctx, core.RouteGameFinderFailed, uniform(gameFinderFailedPayload{RequestID: gf.id, Reason: err.Error()}))
		}
		p.resetReadiness(ctx)
		return nil
	})
}

// tryCancelGameFinder cancels the running request, whose completion resets
// readiness. With no request running readiness is reset right away.
func (p *Party) tryCancelGameFinder(ctx context.Context) {
	if p.gameFinderRunning() {
		p.gameFinder.canceled = true
		p.gameFinder.cancel()
		p.logger.Info().Str("request_id", p.gameFinder.id).Msg("matchmaking cancel requested")
		return
	}
	p.resetReadiness(ctx)
}

func (p *Party) resetReadiness(ctx context.Context) {
	var changed []memberStatus
	for _, sid := range p.order {
		m := p.members[sid]
		if m.data.Status != domain.NotReady {
			m.data.Status = domain.NotReady
			changed = append(changed, memberStatus{UserID: m.data.UserID, Status: domain.NotReady})
		}
	}
	if len(changed) == 0 {
		return
	}
	p.broadcast(ctx, core.RouteMemberStatus, uniform(memberStatusPayload{Members: changed}))
}
