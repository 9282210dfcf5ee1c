package ops

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/types"
)

func TestSignedPurchaseDecodes(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	shop := address.Store([20]byte{0x01})
	in := &PurchaseCart{
		Store:      shop,
		UUIDs:      [][16]byte{{0xaa}, {0xbb}},
		Quantities: []uint64{1, 3},
		TotalPaid:  175,
	}
	tx, err := NewTransaction(7, 1, in)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if tx.Type != types.TxTypePurchaseCart {
		t.Fatalf("unexpected type %s", tx.Type)
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	decoded, err := Decode(tx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, ok := decoded.(*PurchaseCart)
	if !ok {
		t.Fatalf("unexpected payload %T", decoded)
	}
	if out.Store != shop || out.TotalPaid != 175 || len(out.UUIDs) != 2 || out.Quantities[1] != 3 {
		t.Fatalf("payload mismatch: %+v", out)
	}
}

func TestOptionalFieldsKeepZero(t *testing.T) {
	tx, err := NewTransaction(1, 1, &UpdateProduct{SetStock: true, Stock: 0})
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	decoded, err := Decode(tx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u := decoded.(*UpdateProduct)
	if !u.SetStock || u.Stock != 0 || u.SetPrice || u.SetTokenized {
		t.Fatalf("set flags lost: %+v", u)
	}
}

func TestUpdateProductCarriesTokenizedType(t *testing.T) {
	tx, err := NewTransaction(1, 1, &UpdateProduct{SetTokenized: true, TokenizedType: 2})
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	decoded, err := Decode(tx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u := decoded.(*UpdateProduct)
	if !u.SetTokenized || u.TokenizedType != 2 || u.SetMetadataURI {
		t.Fatalf("tokenized update lost: %+v", u)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := Decode(&types.Transaction{Type: 0xff}); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("unknown type: expected invalid input, got %v", err)
	}
	if _, err := Decode(&types.Transaction{Type: types.TxTypeReleaseEscrow, Payload: []byte{0x01, 0x02}}); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("garbage payload: expected invalid input, got %v", err)
	}
	if _, err := Encode(nil); err == nil {
		t.Fatalf("nil payload must fail")
	}
}
