// Package platform keeps the platform-wide admin list and the module pause
// switches those admins control.
package platform

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
)

var (
	ErrNotSeeded    = fmt.Errorf("platform: %w: admins not seeded", coreerrors.ErrNotFound)
	ErrNotAdmin     = fmt.Errorf("platform: %w: caller is not a platform admin", coreerrors.ErrUnauthorized)
	ErrBadSecret    = fmt.Errorf("platform: %w: root secret mismatch", coreerrors.ErrUnauthorized)
	ErrAdminExists  = fmt.Errorf("platform: %w: admin already listed", coreerrors.ErrAlreadyExists)
	ErrAdminMissing = fmt.Errorf("platform: %w: admin not listed", coreerrors.ErrNotFound)
	ErrLastAdmin    = fmt.Errorf("platform: %w: cannot remove the last admin", coreerrors.ErrInvalidInput)
)

var pausesKey = []byte("platform:pauses")

type registryState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Registry manages the PlatformAdmins record.
type Registry struct {
	st      registryState
	emitter events.Emitter
	nowFn   func() int64
}

func NewRegistry(st registryState) *Registry {
	return &Registry{
		st:      st,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	r.nowFn = now
}

func (r *Registry) now() uint64 {
	ts := r.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (r *Registry) load() (*Admins, error) {
	rec := new(Admins)
	ok, err := r.st.RecordGet(address.PlatformAdmins(), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotSeeded
	}
	return rec, nil
}

// Seed installs the first admin and the root secret hash. It runs once, from
// genesis.
func (r *Registry) Seed(first [20]byte, name, secretHash string) error {
	if _, err := r.load(); err == nil {
		return fmt.Errorf("platform: %w: admins already seeded", coreerrors.ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotSeeded) {
		return err
	}
	if secretHash == "" {
		return fmt.Errorf("platform: %w: root secret hash required", coreerrors.ErrInvalidInput)
	}
	rec := &Admins{
		Entries:    []Admin{{Credential: first, Name: name, AddedAt: r.now()}},
		SecretHash: secretHash,
	}
	return r.st.RecordPut(address.PlatformAdmins(), rec)
}

// Admins returns the current admin list.
func (r *Registry) Admins() ([]Admin, error) {
	rec, err := r.load()
	if err != nil {
		return nil, err
	}
	return append([]Admin(nil), rec.Entries...), nil
}

// IsAdmin reports whether c is a platform admin. Read failures count as no.
func (r *Registry) IsAdmin(c [20]byte) bool {
	rec, err := r.load()
	if err != nil {
		return false
	}
	return rec.index(c) >= 0
}

// RequireAdmin fails Unauthorized unless c is a platform admin.
func (r *Registry) RequireAdmin(c [20]byte) error {
	if !r.IsAdmin(c) {
		return ErrNotAdmin
	}
	return nil
}

func (r *Registry) authorize(rec *Admins, caller [20]byte, secret string) error {
	if rec.index(caller) < 0 {
		return ErrNotAdmin
	}
	ok, err := VerifySecret(secret, rec.SecretHash)
	if err != nil {
		return fmt.Errorf("platform: verify secret: %w", err)
	}
	if !ok {
		return ErrBadSecret
	}
	return nil
}

// Add appends candidate to the admin list.
func (r *Registry) Add(caller, candidate [20]byte, name, secret string) error {
	rec, err := r.load()
	if err != nil {
		return err
	}
	if err := r.authorize(rec, caller, secret); err != nil {
		return err
	}
	cleanName, err := nativecommon.NormalizeText("name", name, 64)
	if err != nil {
		return err
	}
	if rec.index(candidate) >= 0 {
		return ErrAdminExists
	}
	if len(rec.Entries) >= MaxAdmins {
		return fmt.Errorf("platform: %w", coreerrors.ErrMaxAdminsReached)
	}
	rec.Entries = append(rec.Entries, Admin{Credential: candidate, Name: cleanName, AddedAt: r.now()})
	if err := r.st.RecordPut(address.PlatformAdmins(), rec); err != nil {
		return err
	}
	r.emitter.Emit(events.PlatformAdminAdded{Admin: candidate, Name: cleanName, By: caller})
	return nil
}

// Remove drops target from the admin list.
func (r *Registry) Remove(caller, target [20]byte, secret string) error {
	rec, err := r.load()
	if err != nil {
		return err
	}
	if err := r.authorize(rec, caller, secret); err != nil {
		return err
	}
	idx := rec.index(target)
	if idx < 0 {
		return ErrAdminMissing
	}
	if len(rec.Entries) == 1 {
		return ErrLastAdmin
	}
	rec.Entries = append(rec.Entries[:idx], rec.Entries[idx+1:]...)
	if err := r.st.RecordPut(address.PlatformAdmins(), rec); err != nil {
		return err
	}
	r.emitter.Emit(events.PlatformAdminRemoved{Admin: target, By: caller})
	return nil
}

func (r *Registry) loadPauses() (*Pauses, error) {
	p := new(Pauses)
	if _, err := r.st.KVGet(pausesKey, p); err != nil {
		return nil, err
	}
	return p, nil
}

// IsPaused implements nativecommon.PauseView.
func (r *Registry) IsPaused(module string) bool {
	p, err := r.loadPauses()
	if err != nil {
		return false
	}
	idx := sort.SearchStrings(p.Modules, module)
	return idx < len(p.Modules) && p.Modules[idx] == module
}

// PausedModules lists the modules currently paused.
func (r *Registry) PausedModules() ([]string, error) {
	p, err := r.loadPauses()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.Modules...), nil
}

// SetModulePaused flips a module's pause switch. Only platform admins may
// call it; repeated calls with the same value are no-ops.
func (r *Registry) SetModulePaused(caller [20]byte, module string, paused bool) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if !nativecommon.IsPausable(module) {
		return fmt.Errorf("platform: %w: unknown module %q", coreerrors.ErrInvalidInput, module)
	}
	p, err := r.loadPauses()
	if err != nil {
		return err
	}
	idx := sort.SearchStrings(p.Modules, module)
	present := idx < len(p.Modules) && p.Modules[idx] == module
	switch {
	case paused && !present:
		p.Modules = append(p.Modules, module)
		sort.Strings(p.Modules)
	case !paused && present:
		p.Modules = append(p.Modules[:idx], p.Modules[idx+1:]...)
	default:
		return nil
	}
	if err := r.st.KVPut(pausesKey, p); err != nil {
		return err
	}
	r.emitter.Emit(events.PlatformModulePaused{Module: module, Paused: paused, By: caller})
	return nil
}
