// Package bank holds the fungible balances the commerce modules move: the
// ledger's value token and per-store loyalty points.
package bank

import (
	"fmt"
	"math"

	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
)

type bankState interface {
	Balance(holder []byte, symbol string) (uint64, error)
	SetBalance(holder []byte, symbol string, amount uint64) error
	PointsBalance(mint [32]byte, holder [20]byte) (uint64, error)
	SetPointsBalance(mint [32]byte, holder [20]byte, amount uint64) error
}

// Bank moves value and points. Vaults are addressed by their 32-byte derived
// address; people by their 20-byte credential.
type Bank struct {
	st      bankState
	symbol  string
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewBank(st bankState, symbol string) *Bank {
	return &Bank{st: st, symbol: symbol, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (b *Bank) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

func (b *Bank) SetPauses(p nativecommon.PauseView) { b.pauses = p }

// Symbol is the value token moved by purchases and payouts.
func (b *Bank) Symbol() string { return b.symbol }

func (b *Bank) Balance(holder []byte) (uint64, error) {
	return b.st.Balance(holder, b.symbol)
}

// Credit adds amount to holder, used by genesis allocations.
func (b *Bank) Credit(holder []byte, amount uint64) error {
	current, err := b.st.Balance(holder, b.symbol)
	if err != nil {
		return err
	}
	if current > math.MaxUint64-amount {
		return fmt.Errorf("bank: %w", coreerrors.ErrArithmeticOverflow)
	}
	return b.st.SetBalance(holder, b.symbol, current+amount)
}

// Move debits from and credits to. The debit is checked first so a failed
// move leaves both balances untouched.
func (b *Bank) Move(from, to []byte, amount uint64) error {
	fromBal, err := b.st.Balance(from, b.symbol)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("bank: %w: have %d, need %d", coreerrors.ErrInsufficientFunds, fromBal, amount)
	}
	if string(from) == string(to) {
		return nil
	}
	toBal, err := b.st.Balance(to, b.symbol)
	if err != nil {
		return err
	}
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("bank: %w", coreerrors.ErrArithmeticOverflow)
	}
	if err := b.st.SetBalance(from, b.symbol, fromBal-amount); err != nil {
		return err
	}
	return b.st.SetBalance(to, b.symbol, toBal+amount)
}

// Transfer is the caller-facing value transfer between two credentials.
func (b *Bank) Transfer(from, to [20]byte, amount uint64) error {
	if err := nativecommon.Guard(b.pauses, nativecommon.ModuleBank); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("bank: %w: amount must be positive", coreerrors.ErrInvalidInput)
	}
	if err := b.Move(from[:], to[:], amount); err != nil {
		return err
	}
	b.emitter.Emit(events.Transfer{Asset: b.symbol, From: from, To: to, Amount: amount})
	return nil
}

func (b *Bank) Points(mint [32]byte, holder [20]byte) (uint64, error) {
	return b.st.PointsBalance(mint, holder)
}

// MintPoints increases holder's points under mint.
func (b *Bank) MintPoints(mint [32]byte, holder [20]byte, amount uint64) error {
	current, err := b.st.PointsBalance(mint, holder)
	if err != nil {
		return err
	}
	if current > math.MaxUint64-amount {
		return fmt.Errorf("bank: %w", coreerrors.ErrArithmeticOverflow)
	}
	return b.st.SetPointsBalance(mint, holder, current+amount)
}

// BurnPoints decreases holder's points under mint.
func (b *Bank) BurnPoints(mint [32]byte, holder [20]byte, amount uint64) error {
	current, err := b.st.PointsBalance(mint, holder)
	if err != nil {
		return err
	}
	if current < amount {
		return fmt.Errorf("bank: %w: have %d, need %d", coreerrors.ErrInsufficientPoints, current, amount)
	}
	return b.st.SetPointsBalance(mint, holder, current-amount)
}
