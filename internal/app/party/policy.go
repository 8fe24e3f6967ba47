package party

import (
	"context"
	"slices"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// Join denial reasons produced by the built-in policies.
const (
	ReasonNotJoinable   = "party.notJoinable"
	ReasonFull          = "party.full"
	ReasonAlreadyMember = "party.alreadyMember"
)

// Decision is the outcome of a join policy chain.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func Accept() Decision            { return Decision{Accepted: true} }
func Deny(reason string) Decision { return Decision{Reason: reason} }

// JoinRequest is what join policies see. OccupiedSlots counts members and
// peers that were accepted but have not finished connecting; Connecting
// holds the users behind those peers.
type JoinRequest struct {
	Session       core.Session
	Settings      domain.PartySettings
	OccupiedSlots int
	Members       []domain.PartyMember
	Connecting    []domain.UserID
	UserData      []byte
}

// JoinPolicy receives the decision folded so far and returns the next one.
// Policies run left to right; every policy runs, so a later policy may
// override an earlier one.
type JoinPolicy func(ctx context.Context, req JoinRequest, current Decision) Decision

// MaxMembers denies joins once the party holds n occupied slots. n <= 0
// means no limit.
func MaxMembers(n int) JoinPolicy {
	return func(_ context.Context, req JoinRequest, current Decision) Decision {
		if !current.Accepted || n <= 0 {
			return current
		}
		if req.OccupiedSlots >= n {
			return Deny(ReasonFull)
		}
		return current
	}
}

// UniqueUser denies a user that is already a member or is still
// connecting on another session.
func UniqueUser() JoinPolicy {
	return func(_ context.Context, req JoinRequest, current Decision) Decision {
		if !current.Accepted {
			return current
		}
		uid := req.Session.User.ID
		for _, m := range req.Members {
			if m.UserID == uid {
				return Deny(ReasonAlreadyMember)
			}
		}
		if slices.Contains(req.Connecting, uid) {
			return Deny(ReasonAlreadyMember)
		}
		return current
	}
}

type SettingsProposal struct {
	Caller   core.Session
	Current  domain.PartySettings
	Original domain.SettingsUpdate
}

// SettingsDecision carries the possibly altered update along the chain.
type SettingsDecision struct {
	Accepted bool
	Message  string
	Update   domain.SettingsUpdate
}

type SettingsPolicy func(ctx context.Context, p SettingsProposal, current SettingsDecision) SettingsDecision

// MemberSettingsView customizes the settings a single member receives.
type MemberSettingsView func(member domain.PartyMember, settings domain.PartySettings) domain.PartySettings

type GameFinderTrigger int

const (
	// TriggerAllReady starts matchmaking once every member is ready.
	TriggerAllReady GameFinderTrigger = iota
	TriggerStart
	TriggerNever
)

type StatusChange struct {
	Member   domain.PartyMember
	Members  []domain.PartyMember
	Settings domain.PartySettings
}

type GameFinderPolicy func(ctx context.Context, c StatusChange, current GameFinderTrigger) GameFinderTrigger

type JoinDenied struct {
	PartyID   domain.PartyID
	SessionID core.SessionID
	Reason    string
}

type MemberEvent struct {
	PartyID domain.PartyID
	Session core.Session
	Member  domain.PartyMember
}

type QuitEvent struct {
	PartyID   domain.PartyID
	SessionID core.SessionID
	UserID    domain.UserID
	Reason    domain.DisconnectReason
	// Empty reports that nobody is left or connecting.
	Empty bool
}

// Hooks plug custom behavior into a party. The On* notifications run
// outside the party's queue and must not wait on party operations.
type Hooks struct {
	JoinPolicies         []JoinPolicy
	SettingsPolicies     []SettingsPolicy
	AfterSettingsApplied func(ctx context.Context, settings domain.PartySettings)
	MemberSettings       MemberSettingsView
	GameFinderPolicies   []GameFinderPolicy

	OnJoinDenied func(ctx context.Context, ev JoinDenied)
	OnJoined     func(ctx context.Context, ev MemberEvent)
	OnQuit       func(ctx context.Context, ev QuitEvent)
}

func foldJoin(ctx context.Context, policies []JoinPolicy, req JoinRequest) Decision {
	d := Accept()
	for _, p := range policies {
		d = p(ctx, req, d)
	}
	return d
}

func foldSettings(ctx context.Context, policies []SettingsPolicy, p SettingsProposal) SettingsDecision {
	d := SettingsDecision{Accepted: true, Update: p.Original.Clone()}
	for _, policy := range policies {
		d = policy(ctx, p, d)
	}
	return d
}

func foldGameFinder(ctx context.Context, policies []GameFinderPolicy, c StatusChange) GameFinderTrigger {
	t := TriggerAllReady
	for _, p := range policies {
		t = p(ctx, c, t)
	}
	return t
}
