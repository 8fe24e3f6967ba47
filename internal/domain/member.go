package domain

import (
	"encoding/json"
	"fmt"
)

type ReadinessStatus int

const (
	NotReady ReadinessStatus = iota
	Ready
)

func (s ReadinessStatus) String() string {
	switch s {
	case NotReady:
		return "notReady"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("ReadinessStatus(%d)", int(s))
	}
}

func (s ReadinessStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ReadinessStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "notReady":
		*s = NotReady
	case "ready":
		*s = Ready
	default:
		return fmt.Errorf("unknown readiness status %q", str)
	}
	return nil
}

// PartyMember represents user's participation meta for a party.
// No transport or lifecycle logic here.
type PartyMember struct {
	UserID   UserID          `json:"userId"`
	Platform PlatformID      `json:"platform"`
	Status   ReadinessStatus `json:"status"`
	UserData []byte          `json:"userData,omitempty"`
}

// Clone returns a copy that shares no memory with m.
func (m PartyMember) Clone() PartyMember {
	if m.UserData != nil {
		m.UserData = append([]byte(nil), m.UserData...)
	}
	return m
}

type DisconnectReason string

const (
	ReasonLeft   DisconnectReason = "left"
	ReasonKicked DisconnectReason = "kicked"
)

// KickedSentinel is the transport close reason used when a member is kicked.
const KickedSentinel = "party.kicked"

// DisconnectReasonFrom infers the member-left reason from a transport close reason.
func DisconnectReasonFrom(transportReason string) DisconnectReason {
	if transportReason == KickedSentinel {
		return ReasonKicked
	}
	return ReasonLeft
}
