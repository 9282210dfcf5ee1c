package store

import (
	"fmt"
	"strings"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
)

// MaxAdmins bounds the admin list, owner entry included.
const MaxAdmins = 10

const (
	maxNameBytes        = 200
	maxDescriptionBytes = 500
	maxLogoURIBytes     = 200
)

// Role is an admin's privilege level on a store. Higher values include the
// privileges of lower ones.
type Role uint8

const (
	RoleNone Role = iota
	RoleViewer
	RoleManager
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleManager:
		return "manager"
	case RoleOwner:
		return "owner"
	default:
		return "none"
	}
}

// ParseRole resolves a role name.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "viewer":
		return RoleViewer, nil
	case "manager":
		return RoleManager, nil
	case "owner":
		return RoleOwner, nil
	default:
		return RoleNone, fmt.Errorf("%w: unknown role %q", coreerrors.ErrInvalidInput, name)
	}
}

// LoyaltyConfig is the store-level earning policy. MinPurchase gates minting:
// when the config is active, purchases below it earn nothing.
type LoyaltyConfig struct {
	PointsPerUnitValue uint64
	MinPurchase        uint64
	RewardPercentage   uint64
	Active             bool
}

func (c LoyaltyConfig) validate() error {
	if c.RewardPercentage > 100 {
		return fmt.Errorf("%w: reward percentage %d exceeds 100", coreerrors.ErrInvalidInput, c.RewardPercentage)
	}
	return nil
}

type AdminEntry struct {
	Credential [20]byte
	Role       Role
}

// Store is the record at address.Store(owner).
type Store struct {
	Address     address.Address
	Owner       [20]byte
	Name        string
	Description string
	LogoURI     string
	Loyalty     LoyaltyConfig
	Revenue     uint64
	Admins      []AdminEntry
	Active      bool
	CreatedAt   uint64
}

// RoleOf returns c's role on the store.
func (s *Store) RoleOf(c [20]byte) Role {
	if s == nil {
		return RoleNone
	}
	for _, entry := range s.Admins {
		if entry.Credential == c {
			return entry.Role
		}
	}
	return RoleNone
}

func (s *Store) adminIndex(c [20]byte) int {
	for i, entry := range s.Admins {
		if entry.Credential == c {
			return i
		}
	}
	return -1
}

// Update carries the optional fields of a store update. Nil means unchanged.
type Update struct {
	Name        *string
	Description *string
	LogoURI     *string
	Loyalty     *LoyaltyConfig
}
