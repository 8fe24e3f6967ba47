package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type joinPayload struct {
	PartyID  domain.PartyID `json:"partyId"`
	Code     string         `json:"code"`
	UserData []byte         `json:"userData,omitempty"`
}

type userDataPayload struct {
	UserData []byte `json:"userData"`
}

type targetPayload struct {
	UserID domain.UserID `json:"userId"`
}

type invitationPayload struct {
	UserID              domain.UserID `json:"userId"`
	ForceDefaultChannel bool          `json:"forceDefaultChannel"`
}

type invitationResult struct {
	Accepted bool `json:"accepted"`
}

type declinePayload struct {
	PartyID  domain.PartyID `json:"partyId"`
	SenderID domain.UserID  `json:"senderId"`
}

type codeResult struct {
	Code string `json:"code"`
}

func (ctl *Controller) handleJoin(ctx context.Context, sid core.SessionID, raw json.RawMessage) (any, error) {
	p, err := decode[joinPayload](raw)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("party_id", string(p.PartyID)).Msg("join")
	return ctl.Orch.Join(ctx, sid, p.PartyID, p.UserData)
}

func (ctl *Controller) handleJoinByCode(ctx context.Context, sid core.SessionID, raw json.RawMessage) (any, error) {
	p, err := decode[joinPayload](raw)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("code", p.Code).Msg("join by code")
	return ctl.Orch.JoinByCode(ctx, sid, p.Code, p.UserData)
}

// handleLeave takes the session out of its party; the connection stays up.
func (ctl *Controller) handleLeave(ctx context.Context, sid core.SessionID, _ json.RawMessage) (any, error) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(ctx, sid)
	return nil, nil
}

func (ctl *Controller) handleUpdateSettings(ctx context.Context, p *party.Party, sid core.SessionID, raw json.RawMessage) (any, error) {
	upd, err := decode[domain.SettingsUpdate](raw)
	if err != nil {
		return nil, err
	}
	return p.UpdateSettings(ctx, sid, upd)
}

func (ctl *Controller) handleUpdateStatus(ctx context.Context, p *party.Party, sid core.SessionID, raw json.RawMessage) (any, error) {
	upd, err := decode[party.StatusUpdate](raw)
	if err != nil {
		return nil, err
	}
	return nil, p.UpdateGameFinderPlayerStatus(ctx, sid, upd)
}

func (ctl *Controller) handleUpdateUserData(ctx context.Context, p *party.Party, sid core.SessionID, raw json.RawMessage) (any, error) {
	upd, err := decode[userDataPayload](raw)
	if err != nil {
		return nil, err
	}
	return nil, p.UpdatePartyUserData(ctx, sid, upd.UserData)
}

func (ctl *Controller) handlePromote(ctx context.Context, p *party.Party, sid core.SessionID, raw json.RawMessage) (any, error) {
	t, err := decode[targetPayload](raw)
	if err != nil {
		return nil, err
	}
	return nil, p.PromoteLeader(ctx, sid, t.UserID)
}

func (ctl *Controller) handleKick(ctx context.Context, p *party.Party, sid core.SessionID, raw json.RawMessage) (any, error) {
	t, err := decode[targetPayload](raw)
	if err != nil {
		return nil, err
	}
	return nil, p.KickPlayer(ctx, sid, t.UserID)
}

func (ctl *Controller) handleGetState(ctx context.Context, p *party.Party, sid core.SessionID, _ json.RawMessage) (any, error) {
	return p.SendPartyStateAsRequestAnswer(ctx, sid)
}

// handlePushState answers empty once the state has been delivered as a
// separate party.state request.
func (ctl *Controller) handlePushState(ctx context.Context, p *party.Party, sid core.SessionID, _ json.RawMessage) (any, error) {
	return nil, p.SendPartyState(ctx, sid)
}

func (ctl *Controller) handleSendInvitation(ctx context.Context, p *party.Party, sid core.SessionID, raw json.RawMessage) (any, error) {
	inv, err := decode[invitationPayload](raw)
	if err != nil {
		return nil, err
	}
	accepted, err := p.SendInvitation(ctx, sid, inv.UserID, inv.ForceDefaultChannel)
	if err != nil {
		return nil, err
	}
	return invitationResult{Accepted: accepted}, nil
}

func (ctl *Controller) handleDeclineInvitation(ctx context.Context, sid core.SessionID, raw json.RawMessage) (any, error) {
	d, err := decode[declinePayload](raw)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.DeclineInvitation(ctx, sid, d.PartyID, d.SenderID)
}

func (ctl *Controller) handleCreateCode(ctx context.Context, p *party.Party, sid core.SessionID, _ json.RawMessage) (any, error) {
	code, err := p.CreateInvitationCode(ctx, sid)
	if err != nil {
		return nil, err
	}
	return codeResult{Code: code}, nil
}

func (ctl *Controller) handleCancelCode(ctx context.Context, p *party.Party, sid core.SessionID, _ json.RawMessage) (any, error) {
	return nil, p.CancelInvitationCode(ctx, sid)
}
