package party

import (
	"context"
	"slices"
	"strings"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// SettingsResult reports the version reached by an accepted update.
// HookModified is set when a settings policy altered the proposal; the
// version then advances by two instead of one so the proposer knows its
// local copy is stale.
type SettingsResult struct {
	SettingsVersion int  `json:"settingsVersion"`
	HookModified    bool `json:"hookModified"`
}

// UpdateSettings applies a leader's settings proposal.
func (p *Party) UpdateSettings(ctx context.Context, caller core.SessionID, update domain.SettingsUpdate) (SettingsResult, error) {
	return doValue(ctx, p, func(ctx context.Context) (SettingsResult, error) {
		s := p.requireSettings()
		c, err := p.memberOf(caller)
		if err != nil {
			return SettingsResult{}, err
		}
		if !p.isLeader(c) {
			return SettingsResult{}, ErrNotLeader
		}
		if strings.TrimSpace(update.GameFinderName) == "" {
			return SettingsResult{}, ErrEmptyGameFinder
		}

		proposal := SettingsProposal{Caller: c.session, Current: s.Clone(), Original: update.Clone()}
		d := foldSettings(ctx, p.hooks.SettingsPolicies, proposal)
		if !d.Accepted {
			p.logger.Info().Str("user", string(c.data.UserID)).Str("message", d.Message).Msg("settings update denied")
			return SettingsResult{}, policyDenied(d.Message)
		}
		if strings.TrimSpace(d.Update.GameFinderName) == "" {
			return SettingsResult{}, ErrEmptyGameFinder
		}

		modified := !d.Update.Equal(update)
		*s = s.Apply(d.Update)
		p.settingsVersion++
		if modified {
			p.settingsVersion++
		}
		p.logger.Info().
			Int("settings_version", p.settingsVersion).
			Bool("hook_modified", modified).
			Str("game_finder", s.GameFinderName).
			Msg("settings updated")

		p.tryCancelGameFinder(ctx)
		if hook := p.hooks.AfterSettingsApplied; hook != nil {
			hook(ctx, s.Clone())
		}
		p.broadcastSettings(ctx)
		return SettingsResult{SettingsVersion: p.settingsVersion, HookModified: modified}, nil
	})
}

// UpdatePartyUserData replaces the caller's opaque user data.
func (p *Party) UpdatePartyUserData(ctx context.Context, caller core.SessionID, data []byte) error {
	return p.do(ctx, func(ctx context.Context) error {
		m, err := p.memberOf(caller)
		if err != nil {
			return err
		}
		m.data.UserData = slices.Clone(data)
		// A running request carries a snapshot of the old data.
		p.tryCancelGameFinder(ctx)
		p.broadcast(ctx, core.RouteMemberData, uniform(memberDataPayload{UserID: m.data.UserID, UserData: slices.Clone(data)}))
		return nil
	})
}
