package events

import (
	"sodap/core/address"
	"sodap/core/types"
)

const (
	TypeEscrowDeposited = "escrow.deposited"
	TypeEscrowReleased  = "escrow.released"
	TypeEscrowRefunded  = "escrow.refunded"
	TypeEscrowPayout    = "escrow.payout"
)

// EscrowMovement describes any change to an escrow's held balance. Kind
// selects which of the four event types it renders as.
type EscrowMovement struct {
	Kind         string
	Store        address.Address
	Counterparty [20]byte
	Amount       uint64
	Balance      uint64
}

func (e EscrowMovement) EventType() string { return e.Kind }

func (e EscrowMovement) Event() *types.Event {
	return &types.Event{Type: e.Kind, Attributes: map[string]string{
		"store":        addr(e.Store),
		"escrow":       addr(address.Escrow(e.Store)),
		"counterparty": credential(e.Counterparty),
		"amount":       amount(e.Amount),
		"balance":      amount(e.Balance),
	}}
}
