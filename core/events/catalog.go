package events

import (
	"sodap/core/address"
	"sodap/core/types"
)

const (
	TypeProductRegistered  = "product.registered"
	TypeProductUpdated     = "product.updated"
	TypeProductDeactivated = "product.deactivated"
)

type ProductRegistered struct {
	Store   address.Address
	Product address.Address
	UUID    [16]byte
	Price   uint64
	Stock   uint64
}

func (ProductRegistered) EventType() string { return TypeProductRegistered }

func (e ProductRegistered) Event() *types.Event {
	return &types.Event{Type: TypeProductRegistered, Attributes: map[string]string{
		"store":   addr(e.Store),
		"product": addr(e.Product),
		"uuid":    address.FormatUUID(e.UUID),
		"price":   amount(e.Price),
		"stock":   amount(e.Stock),
	}}
}

type ProductUpdated struct {
	Store   address.Address
	Product address.Address
	UUID    [16]byte
	Price   uint64
	Stock   uint64
}

func (ProductUpdated) EventType() string { return TypeProductUpdated }

func (e ProductUpdated) Event() *types.Event {
	return &types.Event{Type: TypeProductUpdated, Attributes: map[string]string{
		"store":   addr(e.Store),
		"product": addr(e.Product),
		"uuid":    address.FormatUUID(e.UUID),
		"price":   amount(e.Price),
		"stock":   amount(e.Stock),
	}}
}

type ProductDeactivated struct {
	Store   address.Address
	Product address.Address
	UUID    [16]byte
}

func (ProductDeactivated) EventType() string { return TypeProductDeactivated }

func (e ProductDeactivated) Event() *types.Event {
	return &types.Event{Type: TypeProductDeactivated, Attributes: map[string]string{
		"store":   addr(e.Store),
		"product": addr(e.Product),
		"uuid":    address.FormatUUID(e.UUID),
	}}
}
