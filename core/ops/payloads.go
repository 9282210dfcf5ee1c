// Package ops defines the signed payload carried by each ledger operation.
// Optional fields use an explicit Set flag so that a zero value can still be
// written.
package ops

import (
	"sodap/core/address"
	"sodap/core/types"
)

type Payload interface {
	TxType() types.TxType
}

type Transfer struct {
	To     [20]byte
	Amount uint64
}

type LoyaltyConfig struct {
	PointsPerUnitValue uint64
	MinPurchase        uint64
	RewardPercentage   uint64
	Active             bool
}

type RegisterStore struct {
	Name        string
	Description string
	LogoURI     string
	Loyalty     LoyaltyConfig
}

type UpdateStore struct {
	Store          address.Address
	SetName        bool
	Name           string
	SetDescription bool
	Description    string
	SetLogoURI     bool
	LogoURI        string
	SetLoyalty     bool
	Loyalty        LoyaltyConfig
}

type AddStoreAdmin struct {
	Store     address.Address
	Candidate [20]byte
	Role      uint8
}

type RemoveStoreAdmin struct {
	Store  address.Address
	Target [20]byte
}

type RegisterProduct struct {
	Store         address.Address
	UUID          [16]byte
	Price         uint64
	Stock         uint64
	TokenizedType uint8
	MetadataURI   string
}

type UpdateProduct struct {
	Store          address.Address
	UUID           [16]byte
	SetPrice       bool
	Price          uint64
	SetStock       bool
	Stock          uint64
	SetMetadataURI bool
	MetadataURI    string
	SetTokenized   bool
	TokenizedType  uint8
}

type DeactivateProduct struct {
	Store address.Address
	UUID  [16]byte
}

type PurchaseCart struct {
	Store      address.Address
	UUIDs      [][16]byte
	Quantities []uint64
	TotalPaid  uint64
}

type ReleaseEscrow struct {
	Store  address.Address
	Amount uint64
}

type RefundEscrow struct {
	Store  address.Address
	Buyer  [20]byte
	Amount uint64
}

type InitializeLoyalty struct {
	Store              address.Address
	PointsPerUnitValue uint64
	RedemptionRate     uint64
	Authority          [20]byte
}

type MintLoyalty struct {
	Store          address.Address
	Buyer          [20]byte
	PurchaseAmount uint64
}

type RedeemLoyalty struct {
	Store    address.Address
	Points   uint64
	ForValue bool
}

// AddPlatformAdmin carries the root secret in clear; only its argon2id hash
// is ever stored.
type AddPlatformAdmin struct {
	Candidate  [20]byte
	Name       string
	RootSecret string
}

type RemovePlatformAdmin struct {
	Target     [20]byte
	RootSecret string
}

type SetModulePaused struct {
	Module string
	Paused bool
}

type SetStoreActive struct {
	Store  address.Address
	Active bool
}

type CreateWallet struct{}

type UpdateProfile struct {
	SetUserID          bool
	UserID             string
	SetName            bool
	Name               string
	SetEmail           bool
	Email              string
	SetPhone           bool
	Phone              string
	SetDeliveryAddress bool
	DeliveryAddress    string
	SetPreferredStore  bool
	PreferredStore     address.Address
}

func (Transfer) TxType() types.TxType            { return types.TxTypeTransfer }
func (RegisterStore) TxType() types.TxType       { return types.TxTypeRegisterStore }
func (UpdateStore) TxType() types.TxType         { return types.TxTypeUpdateStore }
func (AddStoreAdmin) TxType() types.TxType       { return types.TxTypeAddStoreAdmin }
func (RemoveStoreAdmin) TxType() types.TxType    { return types.TxTypeRemoveStoreAdmin }
func (RegisterProduct) TxType() types.TxType     { return types.TxTypeRegisterProduct }
func (UpdateProduct) TxType() types.TxType       { return types.TxTypeUpdateProduct }
func (DeactivateProduct) TxType() types.TxType   { return types.TxTypeDeactivateProduct }
func (PurchaseCart) TxType() types.TxType        { return types.TxTypePurchaseCart }
func (ReleaseEscrow) TxType() types.TxType       { return types.TxTypeReleaseEscrow }
func (RefundEscrow) TxType() types.TxType        { return types.TxTypeRefundEscrow }
func (InitializeLoyalty) TxType() types.TxType   { return types.TxTypeInitializeLoyalty }
func (MintLoyalty) TxType() types.TxType         { return types.TxTypeMintLoyalty }
func (RedeemLoyalty) TxType() types.TxType       { return types.TxTypeRedeemLoyalty }
func (AddPlatformAdmin) TxType() types.TxType    { return types.TxTypeAddPlatformAdmin }
func (RemovePlatformAdmin) TxType() types.TxType { return types.TxTypeRemovePlatformAdmin }
func (SetModulePaused) TxType() types.TxType     { return types.TxTypeSetModulePaused }
func (SetStoreActive) TxType() types.TxType      { return types.TxTypeSetStoreActive }
func (CreateWallet) TxType() types.TxType        { return types.TxTypeCreateWallet }
func (UpdateProfile) TxType() types.TxType       { return types.TxTypeUpdateProfile }
