package store

import (
	"errors"
	"testing"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	"sodap/core/state"
	"sodap/storage"
	statetrie "sodap/storage/trie"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

type platformStub map[[20]byte]bool

func (p platformStub) RequireAdmin(c [20]byte) error {
	if !p[c] {
		return coreerrors.ErrUnauthorized
	}
	return nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := statetrie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	reg := NewRegistry(state.NewManager(tr))
	reg.SetNowFunc(func() int64 { return 1_700_000_000 })
	return reg
}

var owner = [20]byte{0x01}

func registerStore(t *testing.T, reg *Registry) address.Address {
	t.Helper()
	s, err := reg.Register(owner, "Corner Shop", "snacks", "https://example.com/logo.png", LoyaltyConfig{PointsPerUnitValue: 1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return s.Address
}

func TestRegisterCreatesOwnerAdmin(t *testing.T) {
	reg := newTestRegistry(t)
	emitter := &capturingEmitter{}
	reg.SetEmitter(emitter)
	addr := registerStore(t, reg)
	if addr != address.Store(owner) {
		t.Fatalf("store must live at the derived address")
	}
	s, err := reg.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(s.Admins) != 1 || s.Admins[0].Role != RoleOwner || s.Admins[0].Credential != owner {
		t.Fatalf("unexpected admins %+v", s.Admins)
	}
	if !s.Active || s.CreatedAt != 1_700_000_000 {
		t.Fatalf("unexpected store %+v", s)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeStoreRegistered {
		t.Fatalf("expected registered event")
	}
	if _, err := reg.Register(owner, "Again", "", "", LoyaltyConfig{}); !errors.Is(err, coreerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Register(owner, "  ", "", "", LoyaltyConfig{}); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	if _, err := reg.Register(owner, "shop", "", "", LoyaltyConfig{RewardPercentage: 101}); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid loyalty config, got %v", err)
	}
}

func TestUpdatePartialAndRoles(t *testing.T) {
	reg := newTestRegistry(t)
	addr := registerStore(t, reg)
	manager, viewer := [20]byte{0x02}, [20]byte{0x03}
	if err := reg.AddAdmin(owner, addr, manager, RoleManager); err != nil {
		t.Fatalf("add manager: %v", err)
	}
	if err := reg.AddAdmin(owner, addr, viewer, RoleViewer); err != nil {
		t.Fatalf("add viewer: %v", err)
	}

	newName := "Corner Shop 2"
	s, err := reg.Update(manager, addr, Update{Name: &newName})
	if err != nil {
		t.Fatalf("manager update: %v", err)
	}
	if s.Name != newName || s.Description != "snacks" {
		t.Fatalf("partial update must preserve other fields: %+v", s)
	}
	empty := ""
	s, err = reg.Update(owner, addr, Update{Description: &empty})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if s.Description != "" || s.Name != newName {
		t.Fatalf("explicit empty description must clear only that field: %+v", s)
	}
	if _, err := reg.Update(viewer, addr, Update{Name: &newName}); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("viewer must be unauthorized, got %v", err)
	}
	if _, err := reg.Update([20]byte{0x09}, addr, Update{}); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("stranger must be unauthorized, got %v", err)
	}
	if _, err := reg.Update(owner, address.Store([20]byte{0x42}), Update{}); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddAdminRules(t *testing.T) {
	reg := newTestRegistry(t)
	addr := registerStore(t, reg)
	manager := [20]byte{0x02}
	if err := reg.AddAdmin(manager, addr, [20]byte{0x05}, RoleViewer); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("non-owner add must fail, got %v", err)
	}
	if err := reg.AddAdmin(owner, addr, manager, RoleOwner); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("owner role must not be assignable, got %v", err)
	}
	if err := reg.AddAdmin(owner, addr, manager, RoleManager); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.AddAdmin(owner, addr, manager, RoleViewer); !errors.Is(err, coreerrors.ErrAlreadyExists) {
		t.Fatalf("duplicate must fail, got %v", err)
	}
	if err := reg.AddAdmin(manager, addr, [20]byte{0x05}, RoleViewer); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("manager add must fail, got %v", err)
	}
}

func TestAdminCap(t *testing.T) {
	reg := newTestRegistry(t)
	addr := registerStore(t, reg)
	for i := 0; i < MaxAdmins-1; i++ {
		if err := reg.AddAdmin(owner, addr, [20]byte{0x10, byte(i)}, RoleViewer); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	s, _ := reg.Get(addr)
	if len(s.Admins) != MaxAdmins {
		t.Fatalf("expected %d admins, got %d", MaxAdmins, len(s.Admins))
	}
	if err := reg.AddAdmin(owner, addr, [20]byte{0x20}, RoleViewer); !errors.Is(err, coreerrors.ErrMaxAdminsReached) {
		t.Fatalf("expected max admins, got %v", err)
	}
}

func TestRemoveAdmin(t *testing.T) {
	reg := newTestRegistry(t)
	addr := registerStore(t, reg)
	manager := [20]byte{0x02}
	if err := reg.AddAdmin(owner, addr, manager, RoleManager); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.RemoveAdmin(owner, addr, owner); !errors.Is(err, coreerrors.ErrCannotRemoveOwner) {
		t.Fatalf("expected cannot remove owner, got %v", err)
	}
	if err := reg.RemoveAdmin(manager, addr, owner); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("manager removing owner must be unauthorized, got %v", err)
	}
	if err := reg.RemoveAdmin(owner, addr, manager); err != nil {
		t.Fatalf("remove: %v", err)
	}
	s, _ := reg.Get(addr)
	if s.RoleOf(manager) != RoleNone || len(s.Admins) != 1 {
		t.Fatalf("manager must be gone: %+v", s.Admins)
	}
	if err := reg.RemoveAdmin(owner, addr, manager); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("removing absent admin must fail not found, got %v", err)
	}
	if s.RoleOf(owner) != RoleOwner {
		t.Fatalf("owner entry must survive")
	}
}

func TestSetActiveRequiresPlatformAdmin(t *testing.T) {
	reg := newTestRegistry(t)
	addr := registerStore(t, reg)
	platformAdmin := [20]byte{0xee}
	reg.SetPlatform(platformStub{platformAdmin: true})
	if err := reg.SetActive(owner, addr, false); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("store owner is not a platform admin, got %v", err)
	}
	if err := reg.SetActive(platformAdmin, addr, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	s, _ := reg.Get(addr)
	if s.Active {
		t.Fatalf("store should be inactive")
	}
}

func TestAddRevenue(t *testing.T) {
	reg := newTestRegistry(t)
	addr := registerStore(t, reg)
	if err := reg.AddRevenue(addr, 250); err != nil {
		t.Fatalf("add revenue: %v", err)
	}
	if err := reg.AddRevenue(addr, ^uint64(0)); !errors.Is(err, coreerrors.ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	s, _ := reg.Get(addr)
	if s.Revenue != 250 {
		t.Fatalf("expected revenue 250, got %d", s.Revenue)
	}
}
