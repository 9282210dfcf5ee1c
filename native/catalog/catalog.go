// Package catalog keeps each store's product records.
package catalog

import (
	"fmt"
	"time"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
	"sodap/native/store"
)

var (
	ErrProductExists   = fmt.Errorf("catalog: %w", coreerrors.ErrAlreadyExists)
	ErrProductNotFound = fmt.Errorf("catalog: %w", coreerrors.ErrNotFound)
	ErrProductInactive = fmt.Errorf("catalog: %w", coreerrors.ErrProductInactive)
)

type catalogState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

type storeAuthority interface {
	RequireRole(caller [20]byte, addr address.Address, min store.Role) (*store.Store, error)
}

// Catalog owns Product records.
type Catalog struct {
	st      catalogState
	stores  storeAuthority
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

func New(st catalogState, stores storeAuthority) *Catalog {
	return &Catalog{
		st:      st,
		stores:  stores,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (c *Catalog) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *Catalog) SetPauses(p nativecommon.PauseView) { c.pauses = p }

func (c *Catalog) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	c.nowFn = now
}

func (c *Catalog) now() uint64 {
	ts := c.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func indexKey(storeAddr address.Address) []byte {
	return append([]byte("catalog:index:"), storeAddr[:]...)
}

// Get loads a product by store and uuid.
func (c *Catalog) Get(storeAddr address.Address, id [16]byte) (*Product, error) {
	return c.GetAt(address.Product(storeAddr, id))
}

// GetAt loads a product by its derived address.
func (c *Catalog) GetAt(addr address.Address) (*Product, error) {
	p := new(Product)
	ok, err := c.st.RecordGet(addr, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, addr)
	}
	return p, nil
}

// List returns every product of a store in registration order.
func (c *Catalog) List(storeAddr address.Address) ([]*Product, error) {
	var ids [][]byte
	if err := c.st.KVGetList(indexKey(storeAddr), &ids); err != nil {
		return nil, err
	}
	out := make([]*Product, 0, len(ids))
	for _, raw := range ids {
		var id [16]byte
		copy(id[:], raw)
		p, err := c.Get(storeAddr, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Register lists a new product. Managers and owners may register.
func (c *Catalog) Register(caller [20]byte, storeAddr address.Address, id [16]byte, price, stock uint64, tokenized TokenizedType, metadataURI string) (*Product, error) {
	if err := nativecommon.Guard(c.pauses, nativecommon.ModuleCatalog); err != nil {
		return nil, err
	}
	if _, err := c.stores.RequireRole(caller, storeAddr, store.RoleManager); err != nil {
		return nil, err
	}
	if id == ([16]byte{}) {
		return nil, fmt.Errorf("%w: product uuid must not be zero", coreerrors.ErrInvalidInput)
	}
	if price == 0 {
		return nil, fmt.Errorf("%w: price must be positive", coreerrors.ErrInvalidInput)
	}
	if !tokenized.valid() {
		return nil, fmt.Errorf("%w: tokenized type %d", coreerrors.ErrInvalidInput, tokenized)
	}
	uri, err := nativecommon.NormalizeText("metadataURI", metadataURI, MaxMetadataURIBytes)
	if err != nil {
		return nil, err
	}
	addr := address.Product(storeAddr, id)
	ok, err := c.st.RecordGet(addr, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrProductExists
	}
	now := c.now()
	p := &Product{
		Address:       addr,
		Store:         storeAddr,
		UUID:          id,
		Price:         price,
		Stock:         stock,
		TokenizedType: tokenized,
		MetadataURI:   uri,
		Active:        true,
		CreatedBy:     caller,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.st.RecordPut(addr, p); err != nil {
		return nil, err
	}
	if err := c.st.KVAppend(indexKey(storeAddr), id[:]); err != nil {
		return nil, err
	}
	c.emitter.Emit(events.ProductRegistered{Store: storeAddr, Product: addr, UUID: id, Price: price, Stock: stock})
	return p, nil
}

// Update changes the supplied fields of an active product.
func (c *Catalog) Update(caller [20]byte, storeAddr address.Address, id [16]byte, u Update) (*Product, error) {
	if err := nativecommon.Guard(c.pauses, nativecommon.ModuleCatalog); err != nil {
		return nil, err
	}
	if _, err := c.stores.RequireRole(caller, storeAddr, store.RoleManager); err != nil {
		return nil, err
	}
	p, err := c.Get(storeAddr, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrProductInactive
	}
	if u.Price != nil {
		if *u.Price == 0 {
			return nil, fmt.Errorf("%w: price must be positive", coreerrors.ErrInvalidInput)
		}
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.MetadataURI != nil {
		if p.MetadataURI, err = nativecommon.NormalizeText("metadataURI", *u.MetadataURI, MaxMetadataURIBytes); err != nil {
			return nil, err
		}
	}
	if u.TokenizedType != nil {
		if !u.TokenizedType.valid() {
			return nil, fmt.Errorf("%w: tokenized type %d", coreerrors.ErrInvalidInput, *u.TokenizedType)
		}
		p.TokenizedType = *u.TokenizedType
	}
	p.UpdatedAt = c.now()
	if err := c.st.RecordPut(p.Address, p); err != nil {
		return nil, err
	}
	c.emitter.Emit(events.ProductUpdated{Store: storeAddr, Product: p.Address, UUID: id, Price: p.Price, Stock: p.Stock})
	return p, nil
}

// Deactivate marks a product inactive. Deactivating an inactive product is a
// successful no-op.
func (c *Catalog) Deactivate(caller [20]byte, storeAddr address.Address, id [16]byte) error {
	if err := nativecommon.Guard(c.pauses, nativecommon.ModuleCatalog); err != nil {
		return err
	}
	if _, err := c.stores.RequireRole(caller, storeAddr, store.RoleManager); err != nil {
		return err
	}
	p, err := c.Get(storeAddr, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}
	p.Active = false
	p.UpdatedAt = c.now()
	if err := c.st.RecordPut(p.Address, p); err != nil {
		return err
	}
	c.emitter.Emit(events.ProductDeactivated{Store: storeAddr, Product: p.Address, UUID: id})
	return nil
}

// Reserve checks that qty units of an active product are available and
// returns the product without mutating it.
func (c *Catalog) Reserve(storeAddr address.Address, id [16]byte, qty uint64) (*Product, error) {
	p, err := c.Get(storeAddr, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: %s", ErrProductInactive, address.FormatUUID(id))
	}
	if p.Stock < qty {
		return nil, fmt.Errorf("catalog: %w: %s has %d, need %d", coreerrors.ErrInsufficientStock, address.FormatUUID(id), p.Stock, qty)
	}
	return p, nil
}

// DecrementStock removes qty units from a product. It is reachable only
// through the purchase engine, after Reserve has validated the whole cart.
func (c *Catalog) DecrementStock(addr address.Address, qty uint64) error {
	p, err := c.GetAt(addr)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return fmt.Errorf("catalog: %w", coreerrors.ErrInsufficientStock)
	}
	p.Stock -= qty
	return c.st.RecordPut(addr, p)
}
