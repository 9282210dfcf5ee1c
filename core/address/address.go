// Package address derives the fixed locations of every ledger record from a
// program identifier, a record tag and the record's identifying seeds.
package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	coreerrors "sodap/core/errors"
)

// ProgramID namespaces every derived address.
const ProgramID = "sodap"

const (
	TagStore          = "store"
	TagEscrow         = "escrow"
	TagProduct        = "product"
	TagLoyaltyMint    = "loyalty_mint"
	TagPurchase       = "purchase"
	TagUserProfile    = "user_profile"
	TagPlatformAdmins = "platform_admins"
)

// Address is a 32-byte derived record location.
type Address [32]byte

// Zero is the unset address.
var Zero Address

func (a Address) IsZero() bool { return a == Zero }

func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// Derive hashes the RLP list [ProgramID, tag, seeds...]. RLP framing keeps
// seed boundaries unambiguous, so distinct seed tuples never collide.
func Derive(tag string, seeds ...[]byte) Address {
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, []byte(ProgramID), []byte(tag))
	parts = append(parts, seeds...)
	encoded, err := rlp.EncodeToBytes(parts)
	if err != nil {
		// [][]byte always encodes.
		panic(err)
	}
	var out Address
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out
}

func Store(owner [20]byte) Address {
	return Derive(TagStore, owner[:])
}

func Escrow(store Address) Address {
	return Derive(TagEscrow, store[:])
}

func Product(store Address, id [16]byte) Address {
	return Derive(TagProduct, store[:], id[:])
}

func LoyaltyMint(store Address) Address {
	return Derive(TagLoyaltyMint, store[:])
}

func Receipt(store Address, buyer [20]byte) Address {
	return Derive(TagPurchase, store[:], buyer[:])
}

func UserProfile(owner [20]byte) Address {
	return Derive(TagUserProfile, owner[:])
}

func PlatformAdmins() Address {
	return Derive(TagPlatformAdmins)
}

// Parse decodes a 0x-prefixed or bare 64 character hex address.
func Parse(value string) (Address, error) {
	var out Address
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("%w: address: %v", coreerrors.ErrInvalidInput, err)
	}
	return FromBytes(raw)
}

// FromBytes checks the length of raw key material.
func FromBytes(raw []byte) (Address, error) {
	var out Address
	if len(raw) != len(out) {
		return out, fmt.Errorf("%w: address must be 32 bytes, got %d", coreerrors.ErrInvalidInput, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// ParseUUID accepts the canonical textual form of a product UUID.
func ParseUUID(value string) ([16]byte, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return [16]byte{}, fmt.Errorf("%w: product uuid: %v", coreerrors.ErrInvalidInput, err)
	}
	return [16]byte(id), nil
}

// FormatUUID renders a product UUID in canonical form.
func FormatUUID(id [16]byte) string {
	return uuid.UUID(id).String()
}
