package party

import (
	"context"
	"fmt"
	"slices"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// OnConnecting decides whether a peer may join. An accepted peer holds a
// slot until OnConnected or OnConnectionRejected.
func (p *Party) OnConnecting(ctx context.Context, sid core.SessionID, userData []byte) (Decision, error) {
	return doValue(ctx, p, func(ctx context.Context) (Decision, error) {
		s := p.requireSettings()
		if !s.IsJoinable {
			p.logger.Info().Str("sid", string(sid)).Msg("join denied: party not joinable")
			return Deny(ReasonNotJoinable), nil
		}
		sess, err := p.sessions.GetSession(ctx, sid)
		if err != nil {
			return Decision{}, fmt.Errorf("resolve session %s: %w", sid, err)
		}
		req := JoinRequest{
			Session:       sess,
			Settings:      s.Clone(),
			OccupiedSlots: len(p.members) + len(p.pending),
			Members:       p.memberList(),
			Connecting:    p.connectingUsers(),
			UserData:      userData,
		}
		d := foldJoin(ctx, p.hooks.JoinPolicies, req)
		if !d.Accepted {
			p.logger.Info().Str("sid", string(sid)).Str("user", string(sess.User.ID)).Str("reason", d.Reason).Msg("join denied")
			return d, nil
		}
		p.pending[sid] = pendingPeer{session: sess, userData: slices.Clone(userData)}
		p.logger.Debug().Str("sid", string(sid)).Str("user", string(sess.User.ID)).Msg("join accepted")
		return d, nil
	})
}

// OnConnectionRejected releases the slot of a peer whose connection did
// not complete and notifies OnJoinDenied.
func (p *Party) OnConnectionRejected(ctx context.Context, sid core.SessionID, reason string) error {
	return p.do(ctx, func(ctx context.Context) error {
		delete(p.pending, sid)
		if hook := p.hooks.OnJoinDenied; hook != nil {
			ev := JoinDenied{PartyID: p.id, SessionID: sid, Reason: reason}
			p.spawn("join-denied", func(ctx context.Context) { hook(ctx, ev) })
		}
		return nil
	})
}

// OnConnected turns an accepted peer into a member.
func (p *Party) OnConnected(ctx context.Context, sid core.SessionID) error {
	return p.do(ctx, func(ctx context.Context) error {
		s := p.requireSettings()
		peer, ok := p.pending[sid]
		if !ok {
			return ErrNotAccepted
		}
		delete(p.pending, sid)
		if _, dup := p.sessionOfUser(peer.session.User.ID); dup {
			p.logger.Warn().Str("sid", string(sid)).Str("user", string(peer.session.User.ID)).Msg("user already a member")
			return ErrAlreadyMember
		}

		m := &member{
			session: peer.session,
			data: domain.PartyMember{
				UserID:   peer.session.User.ID,
				Platform: peer.session.User.Platform,
				Status:   domain.NotReady,
				UserData: peer.userData,
			},
		}
		p.members[sid] = m
		p.order = append(p.order, sid)
		p.logger.Info().Str("sid", string(sid)).Str("user", string(m.data.UserID)).Int("members", len(p.order)).Msg("member joined")

		// Joining directly wins over any invitation that is still out.
		if bySender, ok := p.invitations[m.data.UserID]; ok {
			for _, inv := range bySender {
				inv.resolve(true, nil)
			}
			delete(p.invitations, m.data.UserID)
		}

		newLeader := false
		if s.PartyLeaderID == "" {
			s.PartyLeaderID = m.data.UserID
			newLeader = true
		}

		p.tryCancelGameFinder(ctx)
		p.broadcast(ctx, core.RouteMemberJoined, uniform(memberJoinedPayload{SessionID: sid, Member: m.data.Clone()}))
		if newLeader {
			p.broadcastLeader(ctx)
		}

		if hook := p.hooks.OnJoined; hook != nil {
			ev := MemberEvent{PartyID: p.id, Session: m.session, Member: m.data.Clone()}
			p.spawn("joined", func(ctx context.Context) { hook(ctx, ev) })
		}
		return nil
	})
}

// OnDisconnected removes a member or a still-connecting peer. reason is the
// transport close reason; domain.KickedSentinel marks a kick.
func (p *Party) OnDisconnected(ctx context.Context, sid core.SessionID, reason string) error {
	return p.do(ctx, func(ctx context.Context) error {
		if _, ok := p.pending[sid]; ok {
			delete(p.pending, sid)
			return nil
		}
		p.removeMember(ctx, sid, domain.DisconnectReasonFrom(reason))
		return nil
	})
}

func (p *Party) removeMember(ctx context.Context, sid core.SessionID, reason domain.DisconnectReason) {
	m, ok := p.members[sid]
	if !ok {
		return
	}
	s := p.requireSettings()
	delete(p.members, sid)
	p.order = slices.DeleteFunc(p.order, func(x core.SessionID) bool { return x == sid })
	p.logger.Info().Str("sid", string(sid)).Str("user", string(m.data.UserID)).Str("reason", string(reason)).Int("members", len(p.order)).Msg("member left")

	p.tryCancelGameFinder(ctx)

	if s.PartyLeaderID == m.data.UserID {
		if len(p.order) > 0 {
			s.PartyLeaderID = p.members[p.order[0]].data.UserID
			p.logger.Info().Str("leader", string(s.PartyLeaderID)).Msg("leader elected")
			p.broadcastLeader(ctx)
		} else {
			s.PartyLeaderID = ""
		}
	}

	p.broadcast(ctx, core.RouteMemberLeft, uniform(memberLeftPayload{UserID: m.data.UserID, Reason: reason}))

	if hook := p.hooks.OnQuit; hook != nil {
		ev := QuitEvent{
			PartyID:   p.id,
			SessionID: sid,
			UserID:    m.data.UserID,
			Reason:    reason,
			Empty:     len(p.members) == 0 && len(p.pending) == 0,
		}
		p.spawn("quit", func(ctx context.Context) { hook(ctx, ev) })
	}
}

// KickPlayer removes target from the party and closes its session. Only
// the leader may kick, the leader cannot be kicked, and kicking someone who
// is not a member does nothing.
func (p *Party) KickPlayer(ctx context.Context, caller core.SessionID, target domain.UserID) error {
	return p.do(ctx, func(ctx context.Context) error {
		c, err := p.memberOf(caller)
		if err != nil {
			return err
		}
		s := p.requireSettings()
		if target == s.PartyLeaderID {
			return ErrKickLeader
		}
		if !p.isLeader(c) {
			return ErrNotLeader
		}
		sid, ok := p.sessionOfUser(target)
		if !ok {
			return nil
		}
		p.removeMember(ctx, sid, domain.ReasonKicked)
		if err := p.transport.Disconnect(sid, domain.KickedSentinel); err != nil {
			p.logger.Warn().Err(err).Str("sid", string(sid)).Msg("kick: disconnect failed")
		}
		return nil
	})
}

// PromoteLeader hands leadership to another member.
func (p *Party) PromoteLeader(ctx context.Context, caller core.SessionID, target domain.UserID) error {
	return p.do(ctx, func(ctx context.Context) error {
		c, err := p.memberOf(caller)
		if err != nil {
			return err
		}
		if !p.isLeader(c) {
			return ErrNotLeader
		}
		if _, ok := p.sessionOfUser(target); !ok {
			return ErrUnknownMember
		}
		s := p.requireSettings()
		if s.PartyLeaderID == target {
			return nil
		}
		s.PartyLeaderID = target
		p.logger.Info().Str("leader", string(target)).Msg("leader promoted")
		p.broadcastLeader(ctx)
		return nil
	})
}
