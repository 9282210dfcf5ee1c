package loyalty

import "sodap/core/address"

// Mint is the record at address.LoyaltyMint(store). Rates are fixed at
// creation. TotalIssued minus TotalRedeemed equals the sum of every holder's
// points under this mint.
type Mint struct {
	Address            address.Address
	Store              address.Address
	PointsPerUnitValue uint64
	RedemptionRate     uint64
	Authority          [20]byte
	TotalIssued        uint64
	TotalRedeemed      uint64
	CreatedAt          uint64
}

// Outstanding is the number of points currently held by buyers.
func (m *Mint) Outstanding() uint64 {
	return m.TotalIssued - m.TotalRedeemed
}
