package ops

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "sodap/core/errors"
	"sodap/core/types"
)

func newPayload(t types.TxType) (Payload, error) {
	switch t {
	case types.TxTypeTransfer:
		return new(Transfer), nil
	case types.TxTypeRegisterStore:
		return new(RegisterStore), nil
	case types.TxTypeUpdateStore:
		return new(UpdateStore), nil
	case types.TxTypeAddStoreAdmin:
		return new(AddStoreAdmin), nil
	case types.TxTypeRemoveStoreAdmin:
		return new(RemoveStoreAdmin), nil
	case types.TxTypeRegisterProduct:
		return new(RegisterProduct), nil
	case types.TxTypeUpdateProduct:
		return new(UpdateProduct), nil
	case types.TxTypeDeactivateProduct:
		return new(DeactivateProduct), nil
	case types.TxTypePurchaseCart:
		return new(PurchaseCart), nil
	case types.TxTypeReleaseEscrow:
		return new(ReleaseEscrow), nil
	case types.TxTypeRefundEscrow:
		return new(RefundEscrow), nil
	case types.TxTypeInitializeLoyalty:
		return new(InitializeLoyalty), nil
	case types.TxTypeMintLoyalty:
		return new(MintLoyalty), nil
	case types.TxTypeRedeemLoyalty:
		return new(RedeemLoyalty), nil
	case types.TxTypeAddPlatformAdmin:
		return new(AddPlatformAdmin), nil
	case types.TxTypeRemovePlatformAdmin:
		return new(RemovePlatformAdmin), nil
	case types.TxTypeSetModulePaused:
		return new(SetModulePaused), nil
	case types.TxTypeSetStoreActive:
		return new(SetStoreActive), nil
	case types.TxTypeCreateWallet:
		return new(CreateWallet), nil
	case types.TxTypeUpdateProfile:
		return new(UpdateProfile), nil
	default:
		return nil, fmt.Errorf("ops: %w: unknown operation type 0x%02x", coreerrors.ErrInvalidInput, byte(t))
	}
}

// Encode serialises a payload.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("ops: %w: nil payload", coreerrors.ErrInvalidInput)
	}
	return rlp.EncodeToBytes(p)
}

// NewTransaction wraps p in an unsigned transaction.
func NewTransaction(chainID uint64, nonce uint64, p Payload) (*types.Transaction, error) {
	payload, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return &types.Transaction{
		ChainID: chainID,
		Type:    p.TxType(),
		Nonce:   nonce,
		Payload: payload,
	}, nil
}

// Decode returns the typed payload of tx. The returned value is a pointer to
// one of the payload structs of this package.
func Decode(tx *types.Transaction) (Payload, error) {
	if tx == nil {
		return nil, fmt.Errorf("ops: %w: nil transaction", coreerrors.ErrInvalidInput)
	}
	p, err := newPayload(tx.Type)
	if err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(tx.Payload, p); err != nil {
		return nil, fmt.Errorf("ops: %w: decode %s: %v", coreerrors.ErrInvalidInput, tx.Type, err)
	}
	return p, nil
}
