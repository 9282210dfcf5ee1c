package catalog

import (
	"fmt"
	"strings"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
)

// MaxMetadataURIBytes bounds a product's metadata URI.
const MaxMetadataURIBytes = 128

// TokenizedType tags how a product is represented off the ledger.
type TokenizedType uint8

const (
	TokenizedNone TokenizedType = iota
	TokenizedPhysical
	TokenizedToken
)

func (t TokenizedType) String() string {
	switch t {
	case TokenizedPhysical:
		return "physical"
	case TokenizedToken:
		return "token"
	default:
		return "none"
	}
}

func (t TokenizedType) valid() bool { return t <= TokenizedToken }

// ParseTokenizedType resolves a tokenized type name.
func ParseTokenizedType(name string) (TokenizedType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return TokenizedNone, nil
	case "physical":
		return TokenizedPhysical, nil
	case "token", "spl-token":
		return TokenizedToken, nil
	default:
		return TokenizedNone, fmt.Errorf("%w: unknown tokenized type %q", coreerrors.ErrInvalidInput, name)
	}
}

// Product is the record at address.Product(store, uuid).
type Product struct {
	Address       address.Address
	Store         address.Address
	UUID          [16]byte
	Price         uint64
	Stock         uint64
	TokenizedType TokenizedType
	MetadataURI   string
	Active        bool
	CreatedBy     [20]byte
	CreatedAt     uint64
	UpdatedAt     uint64
}

// Update carries the optional fields of a product update. Nil means
// unchanged.
type Update struct {
	Price         *uint64
	Stock         *uint64
	MetadataURI   *string
	TokenizedType *TokenizedType
}
