package events

import (
	"sodap/core/address"
	"sodap/core/types"
)

const (
	TypeStoreRegistered   = "store.registered"
	TypeStoreUpdated      = "store.updated"
	TypeStoreAdminAdded   = "store.admin.added"
	TypeStoreAdminRemoved = "store.admin.removed"
	TypeStoreStatus       = "store.status"
)

type StoreRegistered struct {
	Store address.Address
	Owner [20]byte
	Name  string
}

func (StoreRegistered) EventType() string { return TypeStoreRegistered }

func (e StoreRegistered) Event() *types.Event {
	return &types.Event{Type: TypeStoreRegistered, Attributes: map[string]string{
		"store": addr(e.Store),
		"owner": credential(e.Owner),
		"name":  e.Name,
	}}
}

type StoreUpdated struct {
	Store  address.Address
	Caller [20]byte
	Fields []string
}

func (StoreUpdated) EventType() string { return TypeStoreUpdated }

func (e StoreUpdated) Event() *types.Event {
	attrs := map[string]string{
		"store":  addr(e.Store),
		"caller": credential(e.Caller),
	}
	for _, f := range e.Fields {
		attrs["changed."+f] = "true"
	}
	return &types.Event{Type: TypeStoreUpdated, Attributes: attrs}
}

type StoreAdminAdded struct {
	Store address.Address
	Admin [20]byte
	Role  string
}

func (StoreAdminAdded) EventType() string { return TypeStoreAdminAdded }

func (e StoreAdminAdded) Event() *types.Event {
	return &types.Event{Type: TypeStoreAdminAdded, Attributes: map[string]string{
		"store": addr(e.Store),
		"admin": credential(e.Admin),
		"role":  e.Role,
	}}
}

type StoreAdminRemoved struct {
	Store address.Address
	Admin [20]byte
}

func (StoreAdminRemoved) EventType() string { return TypeStoreAdminRemoved }

func (e StoreAdminRemoved) Event() *types.Event {
	return &types.Event{Type: TypeStoreAdminRemoved, Attributes: map[string]string{
		"store": addr(e.Store),
		"admin": credential(e.Admin),
	}}
}

// StoreStatus is emitted when a platform admin toggles a store.
type StoreStatus struct {
	Store  address.Address
	Active bool
	By     [20]byte
}

func (StoreStatus) EventType() string { return TypeStoreStatus }

func (e StoreStatus) Event() *types.Event {
	return &types.Event{Type: TypeStoreStatus, Attributes: map[string]string{
		"store":  addr(e.Store),
		"active": flag(e.Active),
		"by":     credential(e.By),
	}}
}
