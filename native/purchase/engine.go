// Package purchase executes cart purchases across the catalog, escrow and
// loyalty modules.
package purchase

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	"sodap/native/catalog"
	nativecommon "sodap/native/common"
	"sodap/native/store"
)

var (
	ErrReceiptExists   = fmt.Errorf("purchase: receipt %w", coreerrors.ErrAlreadyExists)
	ErrReceiptNotFound = fmt.Errorf("purchase: receipt %w", coreerrors.ErrNotFound)
	ErrPaymentMismatch = fmt.Errorf("purchase: %w", coreerrors.ErrInsufficientPayment)
	ErrEmptyCart       = fmt.Errorf("purchase: %w: cart is empty", coreerrors.ErrInvalidInput)
)

type engineState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
}

type storeLedger interface {
	Get(addr address.Address) (*store.Store, error)
	AddRevenue(addr address.Address, amount uint64) error
}

type productLedger interface {
	Reserve(storeAddr address.Address, id [16]byte, qty uint64) (*catalog.Product, error)
	DecrementStock(addr address.Address, qty uint64) error
}

type escrowLedger interface {
	Deposit(storeAddr address.Address, from [20]byte, amount uint64) error
}

type fundsView interface {
	Balance(holder []byte) (uint64, error)
}

type loyaltyIssuer interface {
	Exists(storeAddr address.Address) (bool, error)
	Mint(storeAddr address.Address, buyer [20]byte, purchaseAmount uint64) (uint64, error)
}

type purchaseCounter interface {
	RecordPurchase(owner [20]byte) error
}

// Engine is the only component that mutates several modules' records in a
// single operation.
type Engine struct {
	st       engineState
	stores   storeLedger
	products productLedger
	escrow   escrowLedger
	funds    fundsView
	loyalty  loyaltyIssuer
	profiles purchaseCounter
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() int64
}

func NewEngine(st engineState, stores storeLedger, products productLedger, esc escrowLedger, funds fundsView) *Engine {
	return &Engine{
		st:       st,
		stores:   stores,
		products: products,
		escrow:   esc,
		funds:    funds,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLoyalty wires point issuance. Without it purchases never mint.
func (e *Engine) SetLoyalty(l loyaltyIssuer) { e.loyalty = l }

// SetProfiles wires the buyer purchase counter.
func (e *Engine) SetProfiles(p purchaseCounter) { e.profiles = p }

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Receipt loads the receipt for (store, buyer).
func (e *Engine) Receipt(storeAddr address.Address, buyer [20]byte) (*Receipt, error) {
	return e.ReceiptAt(address.Receipt(storeAddr, buyer))
}

// ReceiptAt loads a receipt by its derived address.
func (e *Engine) ReceiptAt(addr address.Address) (*Receipt, error) {
	r := new(Receipt)
	ok, err := e.st.RecordGet(addr, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return r, nil
}

type reservation struct {
	product *catalog.Product
	qty     uint64
}

// validate runs every check of a purchase without touching state.
func (e *Engine) validate(buyer [20]byte, cart Cart) ([]reservation, error) {
	if len(cart.UUIDs) == 0 {
		return nil, ErrEmptyCart
	}
	if len(cart.UUIDs) != len(cart.Quantities) {
		return nil, fmt.Errorf("purchase: %w: %d products, %d quantities", coreerrors.ErrInvalidInput, len(cart.UUIDs), len(cart.Quantities))
	}
	if len(cart.UUIDs) > MaxLineItems {
		return nil, fmt.Errorf("purchase: %w: cart exceeds %d items", coreerrors.ErrInvalidInput, MaxLineItems)
	}
	s, err := e.stores.Get(cart.Store)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, store.ErrInactive
	}
	items := make([]reservation, 0, len(cart.UUIDs))
	reserved := make(map[[16]byte]uint64, len(cart.UUIDs))
	total := new(uint256.Int)
	for i, id := range cart.UUIDs {
		qty := cart.Quantities[i]
		if qty == 0 {
			return nil, fmt.Errorf("purchase: %w: item %d has zero quantity", coreerrors.ErrInvalidInput, i)
		}
		// Repeated lines for one product must fit its stock together.
		need := reserved[id] + qty
		if need < qty {
			return nil, fmt.Errorf("purchase: %w", coreerrors.ErrArithmeticOverflow)
		}
		p, err := e.products.Reserve(cart.Store, id, need)
		if err != nil {
			return nil, err
		}
		reserved[id] = need
		line := new(uint256.Int).Mul(uint256.NewInt(p.Price), uint256.NewInt(qty))
		if _, overflow := total.AddOverflow(total, line); overflow {
			return nil, fmt.Errorf("purchase: %w", coreerrors.ErrArithmeticOverflow)
		}
		items = append(items, reservation{product: p, qty: qty})
	}
	if !total.IsUint64() {
		return nil, fmt.Errorf("purchase: %w", coreerrors.ErrArithmeticOverflow)
	}
	if expected := total.Uint64(); expected != cart.TotalPaid {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrPaymentMismatch, expected, cart.TotalPaid)
	}
	balance, err := e.funds.Balance(buyer[:])
	if err != nil {
		return nil, err
	}
	if balance < cart.TotalPaid {
		return nil, fmt.Errorf("purchase: %w: balance %d, need %d", coreerrors.ErrInsufficientFunds, balance, cart.TotalPaid)
	}
	ok, err := e.st.RecordGet(address.Receipt(cart.Store, buyer), nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrReceiptExists
	}
	return items, nil
}

// PurchaseCart buys every line of cart for buyer. Either all effects apply
// or the call fails before any state is touched; failures after validation
// are left to the caller's state rollback.
func (e *Engine) PurchaseCart(buyer [20]byte, cart Cart) (*Receipt, error) {
	if err := nativecommon.Guard(e.pauses, nativecommon.ModulePurchase); err != nil {
		return nil, err
	}
	items, err := e.validate(buyer, cart)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Address:   address.Receipt(cart.Store, buyer),
		Store:     cart.Store,
		Buyer:     buyer,
		Items:     make([]LineItem, 0, len(items)),
		TotalPaid: cart.TotalPaid,
		Status:    StatusSuccess,
		Timestamp: e.now(),
	}
	for _, it := range items {
		if err := e.products.DecrementStock(it.product.Address, it.qty); err != nil {
			return nil, err
		}
		receipt.Items = append(receipt.Items, LineItem{
			Product:  it.product.Address,
			UUID:     it.product.UUID,
			Quantity: it.qty,
			Price:    it.product.Price,
		})
	}
	if cart.TotalPaid > 0 {
		if err := e.escrow.Deposit(cart.Store, buyer, cart.TotalPaid); err != nil {
			return nil, err
		}
	}
	if err := e.st.RecordPut(receipt.Address, receipt); err != nil {
		return nil, err
	}
	if err := e.stores.AddRevenue(cart.Store, cart.TotalPaid); err != nil {
		return nil, err
	}
	if err := e.issueLoyalty(cart.Store, buyer, cart.TotalPaid); err != nil {
		return nil, err
	}
	if e.profiles != nil {
		if err := e.profiles.RecordPurchase(buyer); err != nil {
			return nil, err
		}
	}
	e.emitter.Emit(events.PurchaseCompleted{
		Store:     cart.Store,
		Receipt:   receipt.Address,
		Buyer:     buyer,
		TotalPaid: receipt.TotalPaid,
		Items:     len(receipt.Items),
		Timestamp: receipt.Timestamp,
	})
	return receipt, nil
}

// issueLoyalty mints points whenever the store has a loyalty mint.
func (e *Engine) issueLoyalty(storeAddr address.Address, buyer [20]byte, amount uint64) error {
	if e.loyalty == nil {
		return nil
	}
	ok, err := e.loyalty.Exists(storeAddr)
	if err != nil || !ok {
		return err
	}
	_, err = e.loyalty.Mint(storeAddr, buyer, amount)
	return err
}
