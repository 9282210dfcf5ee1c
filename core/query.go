package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/state"
	"sodap/native/catalog"
	"sodap/native/escrow"
	"sodap/native/loyalty"
	"sodap/native/platform"
	"sodap/native/profile"
	"sodap/native/purchase"
	"sodap/native/store"
)

// Queries read committed state. They share the ledger lock with Apply so a
// reader never observes the pending writes of an operation in flight.

func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head.Height
}

func (l *Ledger) StateRoot() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head.Root
}

// Symbol is the ticker of the value token.
func (l *Ledger) Symbol() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head.Symbol
}

// Decimals is the display precision of the value token.
func (l *Ledger) Decimals() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head.Decimals
}

// Token returns the registered metadata of the value token.
func (l *Ledger) Token() (*state.TokenMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	meta, err := l.state.Token(l.head.Symbol)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("ledger: token %s %w", l.head.Symbol, coreerrors.ErrNotFound)
	}
	return meta, nil
}

func (l *Ledger) Store(addr address.Address) (*store.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stores.Get(addr)
}

func (l *Ledger) Product(storeAddr address.Address, id [16]byte) (*catalog.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.catalog.Get(storeAddr, id)
}

func (l *Ledger) Products(storeAddr address.Address) ([]*catalog.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.stores.Get(storeAddr); err != nil {
		return nil, err
	}
	return l.catalog.List(storeAddr)
}

func (l *Ledger) Escrow(storeAddr address.Address) (*escrow.Escrow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrow.Get(storeAddr)
}

func (l *Ledger) Receipt(storeAddr address.Address, buyer [20]byte) (*purchase.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purchase.Receipt(storeAddr, buyer)
}

func (l *Ledger) LoyaltyMint(storeAddr address.Address) (*loyalty.Mint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loyalty.Get(storeAddr)
}

func (l *Ledger) Points(storeAddr address.Address, holder [20]byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loyalty.Points(storeAddr, holder)
}

// Balance returns the value balance of a credential.
func (l *Ledger) Balance(holder [20]byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bank.Balance(holder[:])
}

func (l *Ledger) Profile(owner [20]byte) (*profile.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profiles.Get(owner)
}

func (l *Ledger) PlatformAdmins() ([]platform.Admin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.platform.Admins()
}

func (l *Ledger) PausedModules() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.platform.PausedModules()
}

// AppliedAt reports the height at which an operation hash committed.
func (l *Ledger) AppliedAt(hash [32]byte) (uint64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.AppliedAt(hash)
}
