package platform

import (
	"errors"
	"testing"

	coreerrors "sodap/core/errors"
	"sodap/core/events"
	"sodap/core/state"
	nativecommon "sodap/native/common"
	"sodap/storage"
	statetrie "sodap/storage/trie"
)

var testParams = SecretParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

func newTestRegistry(t *testing.T) (*Registry, [20]byte) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := statetrie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	reg := NewRegistry(state.NewManager(tr))
	reg.SetNowFunc(func() int64 { return 1_700_000_000 })
	hash, err := HashSecret("root-secret", testParams)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	root := [20]byte{0xaa}
	if err := reg.Seed(root, "root", hash); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return reg, root
}

func TestSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("hunter2", testParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := VerifySecret("hunter2", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = VerifySecret("hunter3", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
	if _, err := VerifySecret("x", "$bcrypt$nope"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestSeedOnlyOnce(t *testing.T) {
	reg, root := newTestRegistry(t)
	if err := reg.Seed(root, "again", "$argon2id$x"); !errors.Is(err, coreerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestAddRequiresAdminAndSecret(t *testing.T) {
	reg, root := newTestRegistry(t)
	emitter := &capturingEmitter{}
	reg.SetEmitter(emitter)
	stranger := [20]byte{0x01}
	candidate := [20]byte{0x02}

	if err := reg.Add(stranger, candidate, "c", "root-secret"); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-admin, got %v", err)
	}
	if err := reg.Add(root, candidate, "c", "wrong"); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad secret, got %v", err)
	}
	if err := reg.Add(root, candidate, "c", "root-secret"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !reg.IsAdmin(candidate) {
		t.Fatalf("candidate should be admin")
	}
	if err := reg.Add(root, candidate, "c", "root-secret"); !errors.Is(err, coreerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypePlatformAdminAdded {
		t.Fatalf("expected one admin added event, got %+v", emitter.events)
	}
}

func TestAdminCap(t *testing.T) {
	reg, root := newTestRegistry(t)
	for i := 1; i < MaxAdmins; i++ {
		if err := reg.Add(root, [20]byte{byte(i)}, "", "root-secret"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := reg.Add(root, [20]byte{0x77}, "", "root-secret"); !errors.Is(err, coreerrors.ErrMaxAdminsReached) {
		t.Fatalf("expected max admins, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	reg, root := newTestRegistry(t)
	other := [20]byte{0x03}
	if err := reg.Remove(root, other, "root-secret"); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := reg.Add(root, other, "o", "root-secret"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.Remove(other, root, "root-secret"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if reg.IsAdmin(root) {
		t.Fatalf("root should be removed")
	}
	if err := reg.Remove(other, other, "root-secret"); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected last admin rejection, got %v", err)
	}
}

func TestModulePauses(t *testing.T) {
	reg, root := newTestRegistry(t)
	if err := reg.SetModulePaused([20]byte{0x09}, nativecommon.ModulePurchase, true); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := reg.SetModulePaused(root, "warp-drive", true); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid module, got %v", err)
	}
	if err := reg.SetModulePaused(root, nativecommon.ModulePurchase, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := nativecommon.Guard(reg, nativecommon.ModulePurchase); !errors.Is(err, coreerrors.ErrModulePaused) {
		t.Fatalf("guard should block paused module, got %v", err)
	}
	if err := reg.SetModulePaused(root, nativecommon.ModulePurchase, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if reg.IsPaused(nativecommon.ModulePurchase) {
		t.Fatalf("module should be resumed")
	}
}
