// Package profile keeps one buyer profile per credential.
package profile

import (
	"errors"
	"fmt"
	"math"
	"time"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
	"sodap/native/store"
)

const (
	maxUserIDBytes  = 50
	maxNameBytes    = 100
	maxEmailBytes   = 254
	maxPhoneBytes   = 32
	maxAddressBytes = 200
)

var (
	ErrProfileExists   = fmt.Errorf("profile: %w", coreerrors.ErrAlreadyExists)
	ErrProfileNotFound = fmt.Errorf("profile: %w", coreerrors.ErrNotFound)
)

// Profile is the record at address.UserProfile(owner).
type Profile struct {
	Address         address.Address
	Owner           [20]byte
	UserID          string
	Name            string
	Email           string
	Phone           string
	DeliveryAddress string
	PreferredStore  address.Address
	TotalPurchases  uint64
	CreatedAt       uint64
	UpdatedAt       uint64
}

// Update carries the optional profile fields. Nil means unchanged; a zero
// PreferredStore clears the preference.
type Update struct {
	UserID          *string
	Name            *string
	Email           *string
	Phone           *string
	DeliveryAddress *string
	PreferredStore  *address.Address
}

type registryState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
}

type storeLookup interface {
	Get(addr address.Address) (*store.Store, error)
}

type Registry struct {
	st      registryState
	stores  storeLookup
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

func NewRegistry(st registryState, stores storeLookup) *Registry {
	return &Registry{
		st:      st,
		stores:  stores,
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

func (r *Registry) Get(owner [20]byte) (*Profile, error) {
	p := new(Profile)
	ok, err := r.st.RecordGet(address.UserProfile(owner), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// CreateWallet registers the caller's profile. Each credential may do this
// once.
func (r *Registry) CreateWallet(owner [20]byte) (*Profile, error) {
	if err := nativecommon.Guard(r.pauses, nativecommon.ModuleProfile); err != nil {
		return nil, err
	}
	addr := address.UserProfile(owner)
	ok, err := r.st.RecordGet(addr, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrProfileExists
	}
	now := r.now()
	p := &Profile{Address: addr, Owner: owner, CreatedAt: now, UpdatedAt: now}
	if err := r.st.RecordPut(addr, p); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.ProfileCreated{Profile: addr, Owner: owner})
	return p, nil
}

func applyText(dst *string, field string, src *string, max int) error {
	if src == nil {
		return nil
	}
	v, err := nativecommon.NormalizeText(field, *src, max)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// Update changes the caller's own profile.
func (r *Registry) Update(owner [20]byte, u Update) (*Profile, error) {
	if err := nativecommon.Guard(r.pauses, nativecommon.ModuleProfile); err != nil {
		return nil, err
	}
	p, err := r.Get(owner)
	if err != nil {
		return nil, err
	}
	if err := applyText(&p.UserID, "userID", u.UserID, maxUserIDBytes); err != nil {
		return nil, err
	}
	if err := applyText(&p.Name, "name", u.Name, maxNameBytes); err != nil {
		return nil, err
	}
	if err := applyText(&p.Email, "email", u.Email, maxEmailBytes); err != nil {
		return nil, err
	}
	if err := applyText(&p.Phone, "phone", u.Phone, maxPhoneBytes); err != nil {
		return nil, err
	}
	if err := applyText(&p.DeliveryAddress, "deliveryAddress", u.DeliveryAddress, maxAddressBytes); err != nil {
		return nil, err
	}
	if u.PreferredStore != nil {
		if !u.PreferredStore.IsZero() {
			if _, err := r.stores.Get(*u.PreferredStore); err != nil {
				return nil, err
			}
		}
		p.PreferredStore = *u.PreferredStore
	}
	p.UpdatedAt = r.now()
	if err := r.st.RecordPut(p.Address, p); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.ProfileUpdated{Profile: p.Address, Owner: owner, UpdatedAt: p.UpdatedAt})
	return p, nil
}

// RecordPurchase bumps the buyer's purchase counter when a profile exists.
func (r *Registry) RecordPurchase(owner [20]byte) error {
	p, err := r.Get(owner)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		return err
	}
	if p.TotalPurchases == math.MaxUint64 {
		return fmt.Errorf("profile: %w", coreerrors.ErrArithmeticOverflow)
	}
	p.TotalPurchases++
	return r.st.RecordPut(p.Address, p)
}
