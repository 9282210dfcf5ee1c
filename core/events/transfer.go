package events

import (
	"sodap/core/types"
)

const (
	// TypeTransfer is emitted for value movements between credentials.
	TypeTransfer = "transfer.value"
)

type Transfer struct {
	Asset  string
	From   [20]byte
	To     [20]byte
	Amount uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"asset":  e.Asset,
		"from":   credential(e.From),
		"to":     credential(e.To),
		"amount": amount(e.Amount),
	}}
}
