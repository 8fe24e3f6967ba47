package domain

import "maps"

type PartyID string

// PartySettings is the shared configuration every member agrees on.
type PartySettings struct {
	PartyID             PartyID           `json:"partyId"`
	PartyLeaderID       UserID            `json:"leaderId"`
	GameFinderName      string            `json:"gameFinderName"`
	CustomData          string            `json:"customData"`
	IsJoinable          bool              `json:"isJoinable"`
	OnlyLeaderCanInvite bool              `json:"onlyLeaderCanInvite"`
	PublicServerData    map[string]string `json:"publicServerData,omitempty"`
}

func (s PartySettings) Clone() PartySettings {
	s.PublicServerData = maps.Clone(s.PublicServerData)
	return s
}

// SettingsUpdate is the part of PartySettings members are allowed to propose.
type SettingsUpdate struct {
	GameFinderName      string            `json:"gameFinderName"`
	CustomData          string            `json:"customData"`
	IsJoinable          bool              `json:"isJoinable"`
	OnlyLeaderCanInvite bool              `json:"onlyLeaderCanInvite"`
	PublicServerData    map[string]string `json:"publicServerData,omitempty"`
}

func (u SettingsUpdate) Clone() SettingsUpdate {
	u.PublicServerData = maps.Clone(u.PublicServerData)
	return u
}

func (u SettingsUpdate) Equal(o SettingsUpdate) bool {
	return u.GameFinderName == o.GameFinderName &&
		u.CustomData == o.CustomData &&
		u.IsJoinable == o.IsJoinable &&
		u.OnlyLeaderCanInvite == o.OnlyLeaderCanInvite &&
		maps.Equal(u.PublicServerData, o.PublicServerData)
}

// Apply copies the proposed fields onto s. Identity fields are untouched.
func (s PartySettings) Apply(u SettingsUpdate) PartySettings {
	s.GameFinderName = u.GameFinderName
	s.CustomData = u.CustomData
	s.IsJoinable = u.IsJoinable
	s.OnlyLeaderCanInvite = u.OnlyLeaderCanInvite
	s.PublicServerData = maps.Clone(u.PublicServerData)
	return s
}

func (s PartySettings) Update() SettingsUpdate {
	return SettingsUpdate{
		GameFinderName:      s.GameFinderName,
		CustomData:          s.CustomData,
		IsJoinable:          s.IsJoinable,
		OnlyLeaderCanInvite: s.OnlyLeaderCanInvite,
		PublicServerData:    maps.Clone(s.PublicServerData),
	}
}

// PartyState is the full-state payload sent to a member who asks for it.
type PartyState struct {
	Settings        PartySettings `json:"settings"`
	LeaderID        UserID        `json:"leaderId"`
	Members         []PartyMember `json:"members"`
	SettingsVersion int           `json:"settingsVersion"`
	StateVersion    int           `json:"stateVersion"`
}
