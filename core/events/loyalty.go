package events

import (
	"sodap/core/address"
	"sodap/core/types"
)

const (
	TypeLoyaltyInitialized = "loyalty.initialized"
	TypeLoyaltyMinted      = "loyalty.minted"
	TypeLoyaltySkipped     = "loyalty.skipped"
	TypeLoyaltyRedeemed    = "loyalty.redeemed"
)

type LoyaltyInitialized struct {
	Store              address.Address
	Mint               address.Address
	PointsPerUnitValue uint64
	RedemptionRate     uint64
	Authority          [20]byte
}

func (LoyaltyInitialized) EventType() string { return TypeLoyaltyInitialized }

func (e LoyaltyInitialized) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyInitialized, Attributes: map[string]string{
		"store":              addr(e.Store),
		"mint":               addr(e.Mint),
		"pointsPerUnitValue": amount(e.PointsPerUnitValue),
		"redemptionRate":     amount(e.RedemptionRate),
		"authority":          credential(e.Authority),
	}}
}

type LoyaltyMinted struct {
	Store          address.Address
	Holder         [20]byte
	PurchaseAmount uint64
	Points         uint64
}

func (LoyaltyMinted) EventType() string { return TypeLoyaltyMinted }

func (e LoyaltyMinted) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyMinted, Attributes: map[string]string{
		"store":          addr(e.Store),
		"holder":         credential(e.Holder),
		"purchaseAmount": amount(e.PurchaseAmount),
		"points":         amount(e.Points),
	}}
}

// LoyaltySkipped records a purchase that earned no points.
type LoyaltySkipped struct {
	Store  address.Address
	Holder [20]byte
	Reason string
}

func (LoyaltySkipped) EventType() string { return TypeLoyaltySkipped }

func (e LoyaltySkipped) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltySkipped, Attributes: map[string]string{
		"store":  addr(e.Store),
		"holder": credential(e.Holder),
		"reason": e.Reason,
	}}
}

type LoyaltyRedeemed struct {
	Store    address.Address
	Holder   [20]byte
	Points   uint64
	Value    uint64
	ForValue bool
}

func (LoyaltyRedeemed) EventType() string { return TypeLoyaltyRedeemed }

func (e LoyaltyRedeemed) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyRedeemed, Attributes: map[string]string{
		"store":    addr(e.Store),
		"holder":   credential(e.Holder),
		"points":   amount(e.Points),
		"value":    amount(e.Value),
		"forValue": flag(e.ForValue),
	}}
}
