package purchase

import "sodap/core/address"

// MaxLineItems bounds a single cart.
const MaxLineItems = 10

// Status tags a receipt.
type Status uint8

const (
	StatusSuccess Status = iota + 1
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// LineItem is one cart entry as recorded on the receipt.
type LineItem struct {
	Product  address.Address
	UUID     [16]byte
	Quantity uint64
	Price    uint64
}

// Receipt is the immutable audit record of a completed purchase.
type Receipt struct {
	Address   address.Address
	Store     address.Address
	Buyer     [20]byte
	Items     []LineItem
	TotalPaid uint64
	Status    Status
	Timestamp uint64
}

// Cart is a purchase request. UUIDs and Quantities are parallel slices.
type Cart struct {
	Store      address.Address
	UUIDs      [][16]byte
	Quantities []uint64
	TotalPaid  uint64
}
