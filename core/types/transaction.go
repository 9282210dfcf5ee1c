package types

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType identifies the ledger operation carried by a transaction.
type TxType byte

const (
	TxTypeTransfer TxType = 0x01 // value transfer between credentials

	TxTypeRegisterStore    TxType = 0x10
	TxTypeUpdateStore      TxType = 0x11
	TxTypeAddStoreAdmin    TxType = 0x12
	TxTypeRemoveStoreAdmin TxType = 0x13

	TxTypeRegisterProduct   TxType = 0x20
	TxTypeUpdateProduct     TxType = 0x21
	TxTypeDeactivateProduct TxType = 0x22

	TxTypePurchaseCart  TxType = 0x30
	TxTypeReleaseEscrow TxType = 0x31
	TxTypeRefundEscrow  TxType = 0x32

	TxTypeInitializeLoyalty TxType = 0x40
	TxTypeMintLoyalty       TxType = 0x41
	TxTypeRedeemLoyalty     TxType = 0x42

	TxTypeAddPlatformAdmin    TxType = 0x50
	TxTypeRemovePlatformAdmin TxType = 0x51
	TxTypeSetModulePaused     TxType = 0x52
	TxTypeSetStoreActive      TxType = 0x53

	TxTypeCreateWallet  TxType = 0x60
	TxTypeUpdateProfile TxType = 0x61
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:            "transfer",
	TxTypeRegisterStore:       "register_store",
	TxTypeUpdateStore:         "update_store",
	TxTypeAddStoreAdmin:       "add_store_admin",
	TxTypeRemoveStoreAdmin:    "remove_store_admin",
	TxTypeRegisterProduct:     "register_product",
	TxTypeUpdateProduct:       "update_product",
	TxTypeDeactivateProduct:   "deactivate_product",
	TxTypePurchaseCart:        "purchase_cart",
	TxTypeReleaseEscrow:       "release_escrow",
	TxTypeRefundEscrow:        "refund_escrow",
	TxTypeInitializeLoyalty:   "initialize_loyalty",
	TxTypeMintLoyalty:         "mint_loyalty",
	TxTypeRedeemLoyalty:       "redeem_loyalty",
	TxTypeAddPlatformAdmin:    "add_platform_admin",
	TxTypeRemovePlatformAdmin: "remove_platform_admin",
	TxTypeSetModulePaused:     "set_module_paused",
	TxTypeSetStoreActive:      "set_store_active",
	TxTypeCreateWallet:        "create_wallet",
	TxTypeUpdateProfile:       "update_profile",
}

func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseTxType resolves the snake_case name of an operation.
func ParseTxType(name string) (TxType, bool) {
	for t, n := range txTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

var errUnsigned = errors.New("types: transaction is not signed")

// Transaction is the signed envelope of one ledger operation. Payload holds
// the RLP encoding of the operation's arguments. Nonce is chosen by the
// caller so that two intentionally identical operations hash differently.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Payload []byte `json:"payload"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *[20]byte
}

// Hash is keccak256 over the RLP encoding of the unsigned fields.
func (tx *Transaction) Hash() ([32]byte, error) {
	var out [32]byte
	unsigned := struct {
		ChainID uint64
		Type    TxType
		Nonce   uint64
		Payload []byte
	}{tx.ChainID, tx.Type, tx.Nonce, tx.Payload}
	encoded, err := rlp.EncodeToBytes(&unsigned)
	if err != nil {
		return out, err
	}
	copy(out[:], crypto.Keccak256(encoded))
	return out, nil
}

// ID identifies an applied operation: keccak256 over the signer credential
// and Hash. Two signers submitting the same body get distinct IDs.
func (tx *Transaction) ID() ([32]byte, error) {
	var out [32]byte
	from, err := tx.From()
	if err != nil {
		return out, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return out, err
	}
	copy(out[:], crypto.Keccak256(from[:], hash[:]))
	return out, nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash[:], privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signing credential.
func (tx *Transaction) From() ([20]byte, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	var out [20]byte
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return out, errUnsigned
	}
	if tx.R.BitLen() > 256 || tx.S.BitLen() > 256 || tx.V.Uint64() < 27 {
		return out, errors.New("types: malformed signature")
	}
	hash, err := tx.Hash()
	if err != nil {
		return out, err
	}
	sig := make([]byte, 65)
	tx.R.FillBytes(sig[:32])
	tx.S.FillBytes(sig[32:64])
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return out, err
	}
	out = crypto.PubkeyToAddress(*pubKey)
	tx.from = &out
	return out, nil
}
