// Package escrow holds each store's purchase proceeds until the owner
// releases them, refunds a buyer, or loyalty redemption pays them out.
package escrow

import (
	"fmt"
	"math"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
	"sodap/native/store"
)

var (
	ErrEscrowExists   = fmt.Errorf("escrow: %w", coreerrors.ErrAlreadyExists)
	ErrEscrowNotFound = fmt.Errorf("escrow: %w", coreerrors.ErrNotFound)
	ErrInsufficient   = fmt.Errorf("escrow: %w", coreerrors.ErrInsufficientEscrowBalance)
)

type engineState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
}

type valueMover interface {
	Move(from, to []byte, amount uint64) error
}

type storeAuthority interface {
	RequireRole(caller [20]byte, addr address.Address, min store.Role) (*store.Store, error)
}

// Engine owns Escrow records and the vault balances behind them.
type Engine struct {
	state   engineState
	bank    valueMover
	stores  storeAuthority
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewEngine(st engineState, bank valueMover, stores storeAuthority) *Engine {
	return &Engine{state: st, bank: bank, stores: stores, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Open creates the zero-balance escrow of a newly registered store.
func (e *Engine) Open(storeAddr address.Address) (*Escrow, error) {
	addr := address.Escrow(storeAddr)
	ok, err := e.state.RecordGet(addr, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrEscrowExists
	}
	esc := &Escrow{Address: addr, Store: storeAddr}
	if err := e.state.RecordPut(addr, esc); err != nil {
		return nil, err
	}
	return esc, nil
}

// Get loads the escrow of a store.
func (e *Engine) Get(storeAddr address.Address) (*Escrow, error) {
	esc := new(Escrow)
	ok, err := e.state.RecordGet(address.Escrow(storeAddr), esc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: store %s", ErrEscrowNotFound, storeAddr)
	}
	return esc, nil
}

// Deposit moves amount from a buyer into the store's escrow. It is reachable
// only through the purchase engine.
func (e *Engine) Deposit(storeAddr address.Address, from [20]byte, amount uint64) error {
	esc, err := e.Get(storeAddr)
	if err != nil {
		return err
	}
	if esc.Balance > math.MaxUint64-amount || esc.TotalDeposited > math.MaxUint64-amount {
		return fmt.Errorf("escrow: %w", coreerrors.ErrArithmeticOverflow)
	}
	if err := e.bank.Move(from[:], esc.Address[:], amount); err != nil {
		return err
	}
	esc.Balance += amount
	esc.TotalDeposited += amount
	if err := e.state.RecordPut(esc.Address, esc); err != nil {
		return err
	}
	e.emitter.Emit(events.EscrowMovement{Kind: events.TypeEscrowDeposited, Store: storeAddr, Counterparty: from, Amount: amount, Balance: esc.Balance})
	return nil
}

func (e *Engine) debit(esc *Escrow, to [20]byte, amount uint64) error {
	if amount > esc.Balance {
		return fmt.Errorf("%w: held %d, requested %d", ErrInsufficient, esc.Balance, amount)
	}
	if err := e.bank.Move(esc.Address[:], to[:], amount); err != nil {
		return err
	}
	esc.Balance -= amount
	return nil
}

// Release pays amount from escrow to the store owner. Only the owner may
// call it.
func (e *Engine) Release(caller [20]byte, storeAddr address.Address, amount uint64) error {
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleEscrow); err != nil {
		return err
	}
	s, err := e.stores.RequireRole(caller, storeAddr, store.RoleOwner)
	if err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("escrow: %w: amount must be positive", coreerrors.ErrInvalidInput)
	}
	esc, err := e.Get(storeAddr)
	if err != nil {
		return err
	}
	if err := e.debit(esc, s.Owner, amount); err != nil {
		return err
	}
	esc.TotalReleased += amount
	if err := e.state.RecordPut(esc.Address, esc); err != nil {
		return err
	}
	e.emitter.Emit(events.EscrowMovement{Kind: events.TypeEscrowReleased, Store: storeAddr, Counterparty: s.Owner, Amount: amount, Balance: esc.Balance})
	return nil
}

// Refund returns amount from escrow to a buyer. Only the owner may call it.
func (e *Engine) Refund(caller [20]byte, storeAddr address.Address, buyer [20]byte, amount uint64) error {
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleEscrow); err != nil {
		return err
	}
	if _, err := e.stores.RequireRole(caller, storeAddr, store.RoleOwner); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("escrow: %w: amount must be positive", coreerrors.ErrInvalidInput)
	}
	esc, err := e.Get(storeAddr)
	if err != nil {
		return err
	}
	if err := e.debit(esc, buyer, amount); err != nil {
		return err
	}
	esc.TotalRefunded += amount
	if err := e.state.RecordPut(esc.Address, esc); err != nil {
		return err
	}
	e.emitter.Emit(events.EscrowMovement{Kind: events.TypeEscrowRefunded, Store: storeAddr, Counterparty: buyer, Amount: amount, Balance: esc.Balance})
	return nil
}

// Payout pays amount from escrow to a loyalty redeemer. It is reachable only
// through the loyalty program.
func (e *Engine) Payout(storeAddr address.Address, to [20]byte, amount uint64) error {
	esc, err := e.Get(storeAddr)
	if err != nil {
		return err
	}
	if err := e.debit(esc, to, amount); err != nil {
		return err
	}
	esc.TotalPaidOut += amount
	if err := e.state.RecordPut(esc.Address, esc); err != nil {
		return err
	}
	e.emitter.Emit(events.EscrowMovement{Kind: events.TypeEscrowPayout, Store: storeAddr, Counterparty: to, Amount: amount, Balance: esc.Balance})
	return nil
}
