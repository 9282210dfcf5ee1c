package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := &Transaction{ChainID: 7, Type: TxTypeRegisterStore, Nonce: 1, Payload: []byte{0xc0}}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if from != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered wrong sender")
	}
}

func TestHashCoversNonce(t *testing.T) {
	a := &Transaction{ChainID: 1, Type: TxTypePurchaseCart, Nonce: 1}
	b := &Transaction{ChainID: 1, Type: TxTypePurchaseCart, Nonce: 2}
	ha, _ := a.Hash()
	hb, _ := b.Hash()
	if ha == hb {
		t.Fatalf("nonce must change the hash")
	}
}

func TestIDBindsSigner(t *testing.T) {
	a, _ := crypto.GenerateKey()
	b, _ := crypto.GenerateKey()
	txA := &Transaction{ChainID: 7, Type: TxTypeCreateWallet, Nonce: 42, Payload: []byte{0xc0}}
	txB := &Transaction{ChainID: 7, Type: TxTypeCreateWallet, Nonce: 42, Payload: []byte{0xc0}}
	if err := txA.Sign(a); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := txB.Sign(b); err != nil {
		t.Fatalf("sign: %v", err)
	}
	ha, _ := txA.Hash()
	hb, _ := txB.Hash()
	if ha != hb {
		t.Fatalf("same body must hash equally")
	}
	idA, err := txA.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	idB, _ := txB.ID()
	if idA == idB {
		t.Fatalf("different signers must yield different ids")
	}
	if _, err := (&Transaction{Type: TxTypeTransfer}).ID(); err == nil {
		t.Fatalf("unsigned transaction has no id")
	}
}

func TestUnsignedFrom(t *testing.T) {
	tx := &Transaction{Type: TxTypeTransfer}
	if _, err := tx.From(); err == nil {
		t.Fatalf("expected error for unsigned transaction")
	}
}

func TestTxTypeNames(t *testing.T) {
	if TxTypePurchaseCart.String() != "purchase_cart" {
		t.Fatalf("unexpected name %s", TxTypePurchaseCart)
	}
	parsed, ok := ParseTxType("redeem_loyalty")
	if !ok || parsed != TxTypeRedeemLoyalty {
		t.Fatalf("parse failed")
	}
	if TxType(0xff).String() != "unknown" {
		t.Fatalf("expected unknown")
	}
}
