package orch

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// Join runs the connection handshake for sid against party id and returns
// the party state on success. A session in another party leaves it first.
// A denied join comes back as a *party.Error carrying the denial reason.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, id domain.PartyID, userData []byte) (domain.PartyState, error) {
	p, ok := o.Registry.Get(id)
	if !ok {
		return domain.PartyState{}, ErrPartyNotFound
	}
	if cur, ok := o.Registry.PartyOf(sid); ok {
		if cur.ID() == id {
			return cur.SendPartyStateAsRequestAnswer(ctx, sid)
		}
		o.Leave(ctx, sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_party", string(cur.ID())).Msg("left party to join another")
	}

	// Bound before connecting so a disconnect mid-handshake releases the slot.
	o.Registry.Bind(sid, id)
	d, err := p.OnConnecting(ctx, sid, userData)
	if err != nil {
		o.abandonJoin(ctx, p, sid, err.Error())
		return domain.PartyState{}, err
	}
	if !d.Accepted {
		o.abandonJoin(ctx, p, sid, d.Reason)
		return domain.PartyState{}, &party.Error{Code: d.Reason}
	}
	if err := p.OnConnected(ctx, sid); err != nil {
		o.abandonJoin(ctx, p, sid, err.Error())
		return domain.PartyState{}, err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("party_id", string(id)).Msg("joined party")
	return p.SendPartyStateAsRequestAnswer(ctx, sid)
}

// abandonJoin undoes a handshake that did not complete. A queued party
// item keeps running after its caller's ctx ends, so sid may still have
// been accepted or even connected; the cleanup runs on a detached context
// and queues behind it.
func (o *Orchestrator) abandonJoin(ctx context.Context, p *party.Party, sid core.SessionID, reason string) {
	o.Registry.Unbind(sid)
	ctx = context.WithoutCancel(ctx)
	if err := p.OnConnectionRejected(ctx, sid, reason); err != nil && !errors.Is(err, party.ErrClosed) {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("release join slot")
	}
	connected := slices.ContainsFunc(p.Members(), func(m party.MemberView) bool { return m.SessionID == sid })
	if !connected {
		return
	}
	if err := p.OnDisconnected(ctx, sid, string(domain.ReasonLeft)); err != nil && !errors.Is(err, party.ErrClosed) {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("remove half-joined member")
	}
}

func (o *Orchestrator) JoinByCode(ctx context.Context, sid core.SessionID, code string, userData []byte) (domain.PartyState, error) {
	id, ok := o.Registry.ResolveInvitationCode(code)
	if !ok {
		return domain.PartyState{}, ErrUnknownCode
	}
	return o.Join(ctx, sid, id, userData)
}

// Leave takes sid out of its party, if any. The session stays open.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) {
	o.leave(ctx, sid, string(domain.ReasonLeft))
}

// OnDisconnect is called once the session's transport is gone.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID, reason string) {
	o.leave(ctx, sid, reason)
	o.Sessions.Close(sid)
}

func (o *Orchestrator) leave(ctx context.Context, sid core.SessionID, reason string) {
	p, ok := o.Registry.PartyOf(sid)
	o.Registry.Unbind(sid)
	if !ok {
		return
	}
	if err := p.OnDisconnected(ctx, sid, reason); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("leave party")
	}
}

// DeclineInvitation declines sender's invitation to the user behind sid.
func (o *Orchestrator) DeclineInvitation(ctx context.Context, sid core.SessionID, id domain.PartyID, sender domain.UserID) error {
	sess, err := o.Sessions.GetSession(ctx, sid)
	if err != nil {
		return err
	}
	p, ok := o.Registry.Get(id)
	if !ok {
		return ErrPartyNotFound
	}
	return p.DeclineInvitation(ctx, sess.User.ID, sender)
}
