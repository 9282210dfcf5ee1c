package escrow

import "sodap/core/address"

// Escrow is the record at address.Escrow(store). Balance always equals
// TotalDeposited minus every outflow, and matches the value held by the vault
// account at the escrow address.
type Escrow struct {
	Address        address.Address
	Store          address.Address
	Balance        uint64
	TotalDeposited uint64
	TotalReleased  uint64
	TotalPaidOut   uint64
	TotalRefunded  uint64
}

// Reconciles reports whether the running totals explain the balance.
func (e *Escrow) Reconciles() bool {
	out := e.TotalReleased + e.TotalPaidOut + e.TotalRefunded
	return out <= e.TotalDeposited && e.TotalDeposited-out == e.Balance
}
