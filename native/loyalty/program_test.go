package loyalty

import (
	"errors"
	"testing"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	"sodap/core/state"
	"sodap/native/bank"
	"sodap/native/escrow"
	"sodap/native/store"
	"sodap/storage"
	statetrie "sodap/storage/trie"
)

var (
	owner     = [20]byte{0x01}
	authority = [20]byte{0x02}
	buyer     = [20]byte{0x03}
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

type fixture struct {
	program *Program
	escrow  *escrow.Engine
	bank    *bank.Bank
	store   address.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := statetrie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)
	if err := mgr.RegisterToken("SDP", "Sodap Dollar", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}
	b := bank.NewBank(mgr, "SDP")
	if err := b.Credit(buyer[:], 10_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	stores := store.NewRegistry(mgr)
	s, err := stores.Register(owner, "shop", "", "", store.LoyaltyConfig{})
	if err != nil {
		t.Fatalf("register store: %v", err)
	}
	esc := escrow.NewEngine(mgr, b, stores)
	if _, err := esc.Open(s.Address); err != nil {
		t.Fatalf("open escrow: %v", err)
	}
	return &fixture{program: NewProgram(mgr, b, esc, stores), escrow: esc, bank: b, store: s.Address}
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	if _, err := f.program.Initialize(authority, f.store, 1, 10, authority); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("non-owner initialize must fail, got %v", err)
	}
	if _, err := f.program.Initialize(owner, f.store, 1, 0, authority); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("zero redemption rate must fail, got %v", err)
	}
	m, err := f.program.Initialize(owner, f.store, 1, 10, authority)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.Address != address.LoyaltyMint(f.store) {
		t.Fatalf("mint must live at derived address")
	}
	if _, err := f.program.Initialize(owner, f.store, 2, 20, authority); !errors.Is(err, coreerrors.ErrAlreadyExists) {
		t.Fatalf("re-initialize must fail, got %v", err)
	}
}

func TestMintWithoutProgram(t *testing.T) {
	f := newFixture(t)
	if _, err := f.program.Mint(f.store, buyer, 100); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMintTruncatesWithUnitScale(t *testing.T) {
	f := newFixture(t)
	if _, err := f.program.Initialize(owner, f.store, 3, 10, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	f.program.SetUnitScale(100)
	pts, err := f.program.Mint(f.store, buyer, 250)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	// 250 * 3 / 100 = 7.5, truncated.
	if pts != 7 {
		t.Fatalf("expected 7 points, got %d", pts)
	}
	m, _ := f.program.Get(f.store)
	if m.TotalIssued != 7 {
		t.Fatalf("expected issued 7, got %d", m.TotalIssued)
	}
}

func TestMintAsRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	if _, err := f.program.Initialize(owner, f.store, 1, 10, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := f.program.MintAs(owner, f.store, buyer, 10); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("owner is not the authority, got %v", err)
	}
	if _, err := f.program.MintAs(authority, f.store, buyer, 10); err != nil {
		t.Fatalf("mint as authority: %v", err)
	}
}

func TestRedeemConservesPoints(t *testing.T) {
	f := newFixture(t)
	emitter := &capturingEmitter{}
	f.program.SetEmitter(emitter)
	if _, err := f.program.Initialize(owner, f.store, 1, 10, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := f.escrow.Deposit(f.store, buyer, 150); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.program.Mint(f.store, buyer, 150); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.program.Redeem(buyer, f.store, 151, true); !errors.Is(err, coreerrors.ErrInsufficientPoints) {
		t.Fatalf("expected insufficient points, got %v", err)
	}

	before, _ := f.bank.Balance(buyer[:])
	value, err := f.program.Redeem(buyer, f.store, 100, true)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if value != 10 {
		t.Fatalf("expected value 10, got %d", value)
	}
	pts, _ := f.program.Points(f.store, buyer)
	if pts != 50 {
		t.Fatalf("expected 50 points left, got %d", pts)
	}
	esc, _ := f.escrow.Get(f.store)
	if esc.Balance != 140 {
		t.Fatalf("expected escrow 140, got %d", esc.Balance)
	}
	after, _ := f.bank.Balance(buyer[:])
	if after-before != 10 {
		t.Fatalf("buyer should receive 10, got %d", after-before)
	}
	m, _ := f.program.Get(f.store)
	if m.Outstanding() != pts {
		t.Fatalf("outstanding %d must equal held points %d", m.Outstanding(), pts)
	}
}

func TestRedeemChecksEscrow(t *testing.T) {
	f := newFixture(t)
	if _, err := f.program.Initialize(owner, f.store, 1, 10, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := f.program.Mint(f.store, buyer, 500); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.program.Redeem(buyer, f.store, 100, true); !errors.Is(err, coreerrors.ErrInsufficientEscrowBalance) {
		t.Fatalf("expected insufficient escrow balance, got %v", err)
	}
	if pts, _ := f.program.Points(f.store, buyer); pts != 500 {
		t.Fatalf("failed redeem must not burn points, have %d", pts)
	}
	value, err := f.program.Redeem(buyer, f.store, 100, false)
	if err != nil || value != 0 {
		t.Fatalf("burn-only redeem: value=%d err=%v", value, err)
	}
	if pts, _ := f.program.Points(f.store, buyer); pts != 400 {
		t.Fatalf("expected 400 points, got %d", pts)
	}
}

func TestRedeemBelowOneUnitBurnsWithoutPayout(t *testing.T) {
	f := newFixture(t)
	if _, err := f.program.Initialize(owner, f.store, 1, 10, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := f.escrow.Deposit(f.store, buyer, 5); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.program.Mint(f.store, buyer, 5); err != nil {
		t.Fatalf("mint: %v", err)
	}
	before, _ := f.bank.Balance(buyer[:])
	value, err := f.program.Redeem(buyer, f.store, 5, true)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if value != 0 {
		t.Fatalf("5 points at rate 10 are worth 0, got %d", value)
	}
	if pts, _ := f.program.Points(f.store, buyer); pts != 0 {
		t.Fatalf("expected all 5 points burned, have %d", pts)
	}
	esc, _ := f.escrow.Get(f.store)
	if esc.Balance != 5 || esc.TotalPaidOut != 0 {
		t.Fatalf("escrow must be untouched, balance %d paid out %d", esc.Balance, esc.TotalPaidOut)
	}
	if after, _ := f.bank.Balance(buyer[:]); after != before {
		t.Fatalf("buyer balance changed from %d to %d", before, after)
	}
	m, _ := f.program.Get(f.store)
	if m.TotalRedeemed != 5 || m.Outstanding() != 0 {
		t.Fatalf("redeemed %d outstanding %d", m.TotalRedeemed, m.Outstanding())
	}
}

func TestMintBelowOnePointEmitsSkipped(t *testing.T) {
	f := newFixture(t)
	emitter := &capturingEmitter{}
	f.program.SetEmitter(emitter)
	if _, err := f.program.Initialize(owner, f.store, 1, 10, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	f.program.SetUnitScale(100)
	pts, err := f.program.Mint(f.store, buyer, 99)
	if err != nil || pts != 0 {
		t.Fatalf("mint: pts=%d err=%v", pts, err)
	}
	last := emitter.events[len(emitter.events)-1]
	skipped, ok := last.(events.LoyaltySkipped)
	if !ok || skipped.Reason != SkipZeroPoints {
		t.Fatalf("expected loyalty.skipped, got %#v", last)
	}
}
