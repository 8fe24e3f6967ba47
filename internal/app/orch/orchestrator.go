// Package orch routes session-level actions to the party a session is in.
package orch

import (
	"errors"

	"github.com/dkeye/partyhub/internal/app"
	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/core"
)

var (
	ErrNotInParty    = errors.New("session is not in a party")
	ErrPartyNotFound = errors.New("party not found")
	ErrUnknownCode   = errors.New("unknown invitation code")
)

type Orchestrator struct {
	Registry *app.Registry
	Sessions *app.Sessions
}

// PartyOf returns the party sid is bound to.
func (o *Orchestrator) PartyOf(sid core.SessionID) (*party.Party, error) {
	p, ok := o.Registry.PartyOf(sid)
	if !ok {
		return nil, ErrNotInParty
	}
	return p, nil
}
