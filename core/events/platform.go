package events

import "sodap/core/types"

const (
	TypePlatformAdminAdded   = "platform.admin.added"
	TypePlatformAdminRemoved = "platform.admin.removed"
	TypePlatformModulePaused = "platform.module.paused"
)

type PlatformAdminAdded struct {
	Admin [20]byte
	Name  string
	By    [20]byte
}

func (PlatformAdminAdded) EventType() string { return TypePlatformAdminAdded }

func (e PlatformAdminAdded) Event() *types.Event {
	return &types.Event{Type: TypePlatformAdminAdded, Attributes: map[string]string{
		"admin": credential(e.Admin),
		"name":  e.Name,
		"by":    credential(e.By),
	}}
}

type PlatformAdminRemoved struct {
	Admin [20]byte
	By    [20]byte
}

func (PlatformAdminRemoved) EventType() string { return TypePlatformAdminRemoved }

func (e PlatformAdminRemoved) Event() *types.Event {
	return &types.Event{Type: TypePlatformAdminRemoved, Attributes: map[string]string{
		"admin": credential(e.Admin),
		"by":    credential(e.By),
	}}
}

type PlatformModulePaused struct {
	Module string
	Paused bool
	By     [20]byte
}

func (PlatformModulePaused) EventType() string { return TypePlatformModulePaused }

func (e PlatformModulePaused) Event() *types.Event {
	return &types.Event{Type: TypePlatformModulePaused, Attributes: map[string]string{
		"module": e.Module,
		"paused": flag(e.Paused),
		"by":     credential(e.By),
	}}
}
