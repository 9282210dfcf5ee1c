// Package store registers merchants and manages their admin lists.
package store

import (
	"fmt"
	"math"
	"time"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
)

var (
	ErrStoreExists   = fmt.Errorf("store: %w", coreerrors.ErrAlreadyExists)
	ErrStoreNotFound = fmt.Errorf("store: %w", coreerrors.ErrNotFound)
	ErrNotOwner      = fmt.Errorf("store: %w: caller is not the store owner", coreerrors.ErrUnauthorized)
	ErrRoleTooLow    = fmt.Errorf("store: %w: caller role too low", coreerrors.ErrUnauthorized)
	ErrAdminExists   = fmt.Errorf("store: %w: admin already listed", coreerrors.ErrAlreadyExists)
	ErrAdminMissing  = fmt.Errorf("store: %w: admin not listed", coreerrors.ErrNotFound)
	ErrInactive      = fmt.Errorf("store: %w", coreerrors.ErrStoreInactive)
)

type registryState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
}

// PlatformAuthority gates platform-wide store operations.
type PlatformAuthority interface {
	RequireAdmin(caller [20]byte) error
}

// Registry owns Store records.
type Registry struct {
	st       registryState
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	platform PlatformAuthority
	nowFn    func() int64
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

func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

func (r *Registry) SetPlatform(p PlatformAuthority) { r.platform = p }

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

// Get loads the store at addr.
func (r *Registry) Get(addr address.Address) (*Store, error) {
	rec := new(Store)
	ok, err := r.st.RecordGet(addr, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, addr)
	}
	return rec, nil
}

func (r *Registry) put(s *Store) error {
	return r.st.RecordPut(s.Address, s)
}

// RequireRole loads the store and checks that caller holds at least min.
func (r *Registry) RequireRole(caller [20]byte, addr address.Address, min Role) (*Store, error) {
	s, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	role := s.RoleOf(caller)
	if min == RoleOwner && role != RoleOwner {
		return nil, ErrNotOwner
	}
	if role < min {
		return nil, ErrRoleTooLow
	}
	return s, nil
}

// Register creates the caller's store. The registrant becomes the sole owner
// admin.
func (r *Registry) Register(owner [20]byte, name, description, logoURI string, loyalty LoyaltyConfig) (*Store, error) {
	if err := nativecommon.Guard(r.pauses, nativecommon.ModuleStore); err != nil {
		return nil, err
	}
	cleanName, err := nativecommon.RequireText("name", name, maxNameBytes)
	if err != nil {
		return nil, err
	}
	cleanDesc, err := nativecommon.NormalizeText("description", description, maxDescriptionBytes)
	if err != nil {
		return nil, err
	}
	cleanLogo, err := nativecommon.NormalizeText("logoURI", logoURI, maxLogoURIBytes)
	if err != nil {
		return nil, err
	}
	if err := loyalty.validate(); err != nil {
		return nil, err
	}
	addr := address.Store(owner)
	ok, err := r.st.RecordGet(addr, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrStoreExists
	}
	s := &Store{
		Address:     addr,
		Owner:       owner,
		Name:        cleanName,
		Description: cleanDesc,
		LogoURI:     cleanLogo,
		Loyalty:     loyalty,
		Admins:      []AdminEntry{{Credential: owner, Role: RoleOwner}},
		Active:      true,
		CreatedAt:   r.now(),
	}
	if err := r.put(s); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.StoreRegistered{Store: addr, Owner: owner, Name: cleanName})
	return s, nil
}

// Update applies a partial update. Owners and managers may update.
func (r *Registry) Update(caller [20]byte, addr address.Address, u Update) (*Store, error) {
	if err := nativecommon.Guard(r.pauses, nativecommon.ModuleStore); err != nil {
		return nil, err
	}
	s, err := r.RequireRole(caller, addr, RoleManager)
	if err != nil {
		return nil, err
	}
	var changed []string
	if u.Name != nil {
		if s.Name, err = nativecommon.RequireText("name", *u.Name, maxNameBytes); err != nil {
			return nil, err
		}
		changed = append(changed, "name")
	}
	if u.Description != nil {
		if s.Description, err = nativecommon.NormalizeText("description", *u.Description, maxDescriptionBytes); err != nil {
			return nil, err
		}
		changed = append(changed, "description")
	}
	if u.LogoURI != nil {
		if s.LogoURI, err = nativecommon.NormalizeText("logoURI", *u.LogoURI, maxLogoURIBytes); err != nil {
			return nil, err
		}
		changed = append(changed, "logoURI")
	}
	if u.Loyalty != nil {
		if err := u.Loyalty.validate(); err != nil {
			return nil, err
		}
		s.Loyalty = *u.Loyalty
		changed = append(changed, "loyalty")
	}
	if err := r.put(s); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.StoreUpdated{Store: addr, Caller: caller, Fields: changed})
	return s, nil
}

// AddAdmin appends a manager or viewer. Only the owner may call it.
func (r *Registry) AddAdmin(caller [20]byte, addr address.Address, candidate [20]byte, role Role) error {
	if err := nativecommon.Guard(r.pauses, nativecommon.ModuleStore); err != nil {
		return err
	}
	s, err := r.RequireRole(caller, addr, RoleOwner)
	if err != nil {
		return err
	}
	if role != RoleManager && role != RoleViewer {
		return fmt.Errorf("%w: role %s cannot be assigned", coreerrors.ErrInvalidInput, role)
	}
	if len(s.Admins) >= MaxAdmins {
		return fmt.Errorf("store: %w", coreerrors.ErrMaxAdminsReached)
	}
	if s.adminIndex(candidate) >= 0 {
		return ErrAdminExists
	}
	s.Admins = append(s.Admins, AdminEntry{Credential: candidate, Role: role})
	if err := r.put(s); err != nil {
		return err
	}
	r.emitter.Emit(events.StoreAdminAdded{Store: addr, Admin: candidate, Role: role.String()})
	return nil
}

// RemoveAdmin removes the first entry matching target. The owner entry is
// permanent.
func (r *Registry) RemoveAdmin(caller [20]byte, addr address.Address, target [20]byte) error {
	if err := nativecommon.Guard(r.pauses, nativecommon.ModuleStore); err != nil {
		return err
	}
	s, err := r.RequireRole(caller, addr, RoleOwner)
	if err != nil {
		return err
	}
	idx := s.adminIndex(target)
	if idx < 0 {
		return ErrAdminMissing
	}
	if s.Admins[idx].Role == RoleOwner {
		return fmt.Errorf("store: %w", coreerrors.ErrCannotRemoveOwner)
	}
	s.Admins = append(s.Admins[:idx], s.Admins[idx+1:]...)
	if err := r.put(s); err != nil {
		return err
	}
	r.emitter.Emit(events.StoreAdminRemoved{Store: addr, Admin: target})
	return nil
}

// SetActive enables or disables a store. Only platform admins may call it.
func (r *Registry) SetActive(caller [20]byte, addr address.Address, active bool) error {
	if r.platform == nil {
		return fmt.Errorf("store: %w: platform authority not configured", coreerrors.ErrUnauthorized)
	}
	if err := r.platform.RequireAdmin(caller); err != nil {
		return err
	}
	s, err := r.Get(addr)
	if err != nil {
		return err
	}
	if s.Active == active {
		return nil
	}
	s.Active = active
	if err := r.put(s); err != nil {
		return err
	}
	r.emitter.Emit(events.StoreStatus{Store: addr, Active: active, By: caller})
	return nil
}

// AddRevenue bumps the cumulative revenue counter. It is reachable only
// through the purchase engine.
func (r *Registry) AddRevenue(addr address.Address, amount uint64) error {
	s, err := r.Get(addr)
	if err != nil {
		return err
	}
	if s.Revenue > math.MaxUint64-amount {
		return fmt.Errorf("store: revenue: %w", coreerrors.ErrArithmeticOverflow)
	}
	s.Revenue += amount
	return r.put(s)
}
