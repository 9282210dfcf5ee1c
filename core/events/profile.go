package events

import (
	"sodap/core/address"
	"sodap/core/types"
)

const (
	TypeProfileCreated = "profile.created"
	TypeProfileUpdated = "profile.updated"
)

type ProfileCreated struct {
	Profile address.Address
	Owner   [20]byte
}

func (ProfileCreated) EventType() string { return TypeProfileCreated }

func (e ProfileCreated) Event() *types.Event {
	return &types.Event{Type: TypeProfileCreated, Attributes: map[string]string{
		"profile": addr(e.Profile),
		"owner":   credential(e.Owner),
	}}
}

type ProfileUpdated struct {
	Profile   address.Address
	Owner     [20]byte
	UpdatedAt uint64
}

func (ProfileUpdated) EventType() string { return TypeProfileUpdated }

func (e ProfileUpdated) Event() *types.Event {
	return &types.Event{Type: TypeProfileUpdated, Attributes: map[string]string{
		"profile":   addr(e.Profile),
		"owner":     credential(e.Owner),
		"updatedAt": amount(e.UpdatedAt),
	}}
}
