package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type whoAmI struct {
	User    domain.User    `json:"user"`
	PartyID domain.PartyID `json:"partyId,omitempty"`
}

func (ctl *Controller) handleRename(ctx context.Context, sid core.SessionID, raw json.RawMessage) (any, error) {
	type renamePayload struct {
		Name string `json:"name"`
	}
	p, err := decode[renamePayload](raw)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, &core.WireError{Code: "invalidName", Message: "empty name"}
	}
	if err := ctl.Orch.Sessions.UpdateUsername(sid, p.Name); err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	return ctl.handleWhoAmI(ctx, sid, nil)
}

func (ctl *Controller) handleWhoAmI(ctx context.Context, sid core.SessionID, _ json.RawMessage) (any, error) {
	sess, err := ctl.Orch.Sessions.GetSession(ctx, sid)
	if err != nil {
		return nil, err
	}
	resp := whoAmI{User: sess.User}
	if p, err := ctl.Orch.PartyOf(sid); err == nil {
		resp.PartyID = p.ID()
	}
	return resp, nil
}
