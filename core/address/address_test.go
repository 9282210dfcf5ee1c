package address

import (
	"errors"
	"testing"

	coreerrors "sodap/core/errors"
)

func TestDeriveIsDeterministic(t *testing.T) {
	owner := [20]byte{1, 2, 3}
	if Store(owner) != Store(owner) {
		t.Fatalf("store address must be stable")
	}
	other := [20]byte{1, 2, 4}
	if Store(owner) == Store(other) {
		t.Fatalf("different owners must map to different stores")
	}
}

func TestDeriveSeparatesTags(t *testing.T) {
	owner := [20]byte{9}
	store := Store(owner)
	if UserProfile(owner) == store {
		t.Fatalf("profile and store derived from the same credential must differ")
	}
	if Escrow(store) == LoyaltyMint(store) {
		t.Fatalf("escrow and loyalty mint must differ")
	}
}

func TestDeriveSeedBoundaries(t *testing.T) {
	a := Derive(TagProduct, []byte{1, 2}, []byte{3})
	b := Derive(TagProduct, []byte{1}, []byte{2, 3})
	if a == b {
		t.Fatalf("seed framing must be unambiguous")
	}
}

func TestReceiptKeyedByStoreAndBuyer(t *testing.T) {
	store := Store([20]byte{1})
	buyer := [20]byte{2}
	if Receipt(store, buyer) != Receipt(store, buyer) {
		t.Fatalf("receipt address must be stable")
	}
	if Receipt(store, buyer) == Receipt(Store([20]byte{3}), buyer) {
		t.Fatalf("receipts at different stores must differ")
	}
}

func TestParseRoundTrip(t *testing.T) {
	addr := PlatformAdmins()
	parsed, err := Parse(addr.Hex())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != addr {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Parse("0x1234"); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := FromBytes(addr[:31]); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("short raw address must fail, got %v", err)
	}
}

func TestParseUUID(t *testing.T) {
	id, err := ParseUUID("6f1c9f8e-3a4b-4c7d-9e2f-0123456789ab")
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	if FormatUUID(id) != "6f1c9f8e-3a4b-4c7d-9e2f-0123456789ab" {
		t.Fatalf("unexpected format %s", FormatUUID(id))
	}
	if _, err := ParseUUID("not-a-uuid"); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
