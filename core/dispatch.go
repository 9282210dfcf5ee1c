package core

import (
	"fmt"

	coreerrors "sodap/core/errors"
	"sodap/core/ops"
	"sodap/native/catalog"
	"sodap/native/profile"
	"sodap/native/purchase"
	"sodap/native/store"
)

// RedeemOutput reports the value paid by a loyalty redemption.
type RedeemOutput struct {
	Points uint64
	Value  uint64
}

// MintOutput reports the points credited by an authority mint.
type MintOutput struct {
	Points uint64
}

func storeLoyalty(c ops.LoyaltyConfig) store.LoyaltyConfig {
	return store.LoyaltyConfig{
		PointsPerUnitValue: c.PointsPerUnitValue,
		MinPurchase:        c.MinPurchase,
		RewardPercentage:   c.RewardPercentage,
		Active:             c.Active,
	}
}

func optString(set bool, v string) *string {
	if !set {
		return nil
	}
	return &v
}

func optUint(set bool, v uint64) *uint64 {
	if !set {
		return nil
	}
	return &v
}

// dispatch routes a decoded payload to its owning module. Callers hold l.mu.
func (l *Ledger) dispatch(sender [20]byte, payload ops.Payload) (interface{}, error) {
	switch p := payload.(type) {
	case *ops.Transfer:
		return nil, l.bank.Transfer(sender, p.To, p.Amount)

	case *ops.RegisterStore:
		s, err := l.stores.Register(sender, p.Name, p.Description, p.LogoURI, storeLoyalty(p.Loyalty))
		if err != nil {
			return nil, err
		}
		if _, err := l.escrow.Open(s.Address); err != nil {
			return nil, err
		}
		return s, nil
	case *ops.UpdateStore:
		u := store.Update{
			Name:        optString(p.SetName, p.Name),
			Description: optString(p.SetDescription, p.Description),
			LogoURI:     optString(p.SetLogoURI, p.LogoURI),
		}
		if p.SetLoyalty {
			cfg := storeLoyalty(p.Loyalty)
			u.Loyalty = &cfg
		}
		return l.stores.Update(sender, p.Store, u)
	case *ops.AddStoreAdmin:
		return nil, l.stores.AddAdmin(sender, p.Store, p.Candidate, store.Role(p.Role))
	case *ops.RemoveStoreAdmin:
		return nil, l.stores.RemoveAdmin(sender, p.Store, p.Target)
	case *ops.SetStoreActive:
		return nil, l.stores.SetActive(sender, p.Store, p.Active)

	case *ops.RegisterProduct:
		return l.catalog.Register(sender, p.Store, p.UUID, p.Price, p.Stock, catalog.TokenizedType(p.TokenizedType), p.MetadataURI)
	case *ops.UpdateProduct:
		u := catalog.Update{
			Price:       optUint(p.SetPrice, p.Price),
			Stock:       optUint(p.SetStock, p.Stock),
			MetadataURI: optString(p.SetMetadataURI, p.MetadataURI),
		}
		if p.SetTokenized {
			tt := catalog.TokenizedType(p.TokenizedType)
			u.TokenizedType = &tt
		}
		return l.catalog.Update(sender, p.Store, p.UUID, u)
	case *ops.DeactivateProduct:
		return nil, l.catalog.Deactivate(sender, p.Store, p.UUID)

	case *ops.PurchaseCart:
		return l.purchase.PurchaseCart(sender, purchase.Cart{
			Store:      p.Store,
			UUIDs:      p.UUIDs,
			Quantities: p.Quantities,
			TotalPaid:  p.TotalPaid,
		})
	case *ops.ReleaseEscrow:
		return nil, l.escrow.Release(sender, p.Store, p.Amount)
	case *ops.RefundEscrow:
		return nil, l.escrow.Refund(sender, p.Store, p.Buyer, p.Amount)

	case *ops.InitializeLoyalty:
		return l.loyalty.Initialize(sender, p.Store, p.PointsPerUnitValue, p.RedemptionRate, p.Authority)
	case *ops.MintLoyalty:
		pts, err := l.loyalty.MintAs(sender, p.Store, p.Buyer, p.PurchaseAmount)
		if err != nil {
			return nil, err
		}
		return &MintOutput{Points: pts}, nil
	case *ops.RedeemLoyalty:
		value, err := l.loyalty.Redeem(sender, p.Store, p.Points, p.ForValue)
		if err != nil {
			return nil, err
		}
		return &RedeemOutput{Points: p.Points, Value: value}, nil

	case *ops.AddPlatformAdmin:
		return nil, l.platform.Add(sender, p.Candidate, p.Name, p.RootSecret)
	case *ops.RemovePlatformAdmin:
		return nil, l.platform.Remove(sender, p.Target, p.RootSecret)
	case *ops.SetModulePaused:
		return nil, l.platform.SetModulePaused(sender, p.Module, p.Paused)

	case *ops.CreateWallet:
		return l.profiles.CreateWallet(sender)
	case *ops.UpdateProfile:
		u := profile.Update{
			UserID:          optString(p.SetUserID, p.UserID),
			Name:            optString(p.SetName, p.Name),
			Email:           optString(p.SetEmail, p.Email),
			Phone:           optString(p.SetPhone, p.Phone),
			DeliveryAddress: optString(p.SetDeliveryAddress, p.DeliveryAddress),
		}
		if p.SetPreferredStore {
			preferred := p.PreferredStore
			u.PreferredStore = &preferred
		}
		return l.profiles.Update(sender, u)
	}
	return nil, fmt.Errorf("ledger: %w: unsupported payload %T", coreerrors.ErrInvalidInput, payload)
}
