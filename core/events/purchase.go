package events

import (
	"strconv"

	"sodap/core/address"
	"sodap/core/types"
)

const TypePurchaseCompleted = "purchase.completed"

type PurchaseCompleted struct {
	Store     address.Address
	Receipt   address.Address
	Buyer     [20]byte
	TotalPaid uint64
	Items     int
	Timestamp uint64
}

func (PurchaseCompleted) EventType() string { return TypePurchaseCompleted }

func (e PurchaseCompleted) Event() *types.Event {
	return &types.Event{Type: TypePurchaseCompleted, Attributes: map[string]string{
		"store":     addr(e.Store),
		"receipt":   addr(e.Receipt),
		"buyer":     credential(e.Buyer),
		"totalPaid": amount(e.TotalPaid),
		"items":     strconv.Itoa(e.Items),
		"timestamp": amount(e.Timestamp),
	}}
}
