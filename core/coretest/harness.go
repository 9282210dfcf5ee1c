// Package coretest builds throwaway ledgers for tests of packages layered on
// top of core.
package coretest

import (
	"context"
	"crypto/ecdsa"
	"strconv"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"sodap/core"
	"sodap/core/address"
	"sodap/core/genesis"
	"sodap/core/ops"
	"sodap/crypto"
	"sodap/native/platform"
	"sodap/native/store"
	"sodap/storage"
)

const ChainID = 42

// Actor is a signing identity.
type Actor struct {
	Key  *ecdsa.PrivateKey
	Cred [20]byte
}

func NewActor(t testing.TB) Actor {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return Actor{Key: key, Cred: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

// Harness is an in-memory ledger with a platform admin, a store owner and a
// funded buyer.
type Harness struct {
	t      testing.TB
	Ledger *core.Ledger
	Admin  Actor
	Owner  Actor
	Buyer  Actor
	nonce  uint64
}

// New opens a ledger whose buyer holds buyerFunds.
func New(t testing.TB, buyerFunds uint64) *Harness {
	t.Helper()
	h := &Harness{t: t, Admin: NewActor(t), Owner: NewActor(t), Buyer: NewActor(t)}
	hash, err := platform.HashSecret("root-secret", platform.SecretParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	chainID := uint64(ChainID)
	spec := &genesis.GenesisSpec{
		GenesisTime:    "2024-01-01T00:00:00Z",
		ChainID:        &chainID,
		Token:          genesis.TokenSpec{Symbol: "SDP", Name: "Sodap Dollar", Decimals: 6},
		Alloc:          map[string]string{crypto.FormatCredential(h.Buyer.Cred): strconv.FormatUint(buyerFunds, 10)},
		PlatformAdmin:  genesis.AdminSpec{Address: crypto.FormatCredential(h.Admin.Cred), Name: "ops"},
		RootSecretHash: hash,
	}
	l, err := core.Open(storage.NewMemDB(), spec, core.Options{
		Now: func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	h.Ledger = l
	return h
}

// Apply signs p as from and applies it, failing the test on error.
func (h *Harness) Apply(from Actor, p ops.Payload) *core.Result {
	h.t.Helper()
	h.nonce++
	tx, err := ops.NewTransaction(ChainID, h.nonce, p)
	if err != nil {
		h.t.Fatalf("new transaction: %v", err)
	}
	if err := tx.Sign(from.Key); err != nil {
		h.t.Fatalf("sign: %v", err)
	}
	res, err := h.Ledger.Apply(context.Background(), tx)
	if err != nil {
		h.t.Fatalf("apply %T: %v", p, err)
	}
	return res
}

// Widget is the product UUID registered by Shop.
var Widget = [16]byte{0x57, 0x1d, 0x9e, 0x2a, 0x4b, 0x3c, 0x4d, 0x8e, 0x9f, 0x10, 0x21, 0x32, 0x43, 0x54, 0x65, 0x76}

// Shop registers the owner's store with one widget priced 100 and stock 10.
func (h *Harness) Shop() address.Address {
	h.t.Helper()
	res := h.Apply(h.Owner, &ops.RegisterStore{Name: "Corner Shop"})
	s, ok := res.Output.(*store.Store)
	if !ok {
		h.t.Fatalf("unexpected register output %T", res.Output)
	}
	h.Apply(h.Owner, &ops.RegisterProduct{Store: s.Address, UUID: Widget, Price: 100, Stock: 10})
	return s.Address
}

// Buy purchases qty widgets from shop as the buyer.
func (h *Harness) Buy(shop address.Address, qty uint64) *core.Result {
	h.t.Helper()
	return h.Apply(h.Buyer, &ops.PurchaseCart{Store: shop, UUIDs: [][16]byte{Widget}, Quantities: []uint64{qty}, TotalPaid: 100 * qty})
}
