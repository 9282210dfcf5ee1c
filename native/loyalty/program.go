// Package loyalty issues per-store points on purchases and redeems them,
// optionally for value paid out of the store's escrow.
package loyalty

import (
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"

	"sodap/core/address"
	coreerrors "sodap/core/errors"
	"sodap/core/events"
	nativecommon "sodap/native/common"
	"sodap/native/escrow"
	"sodap/native/store"
)

// SkipZeroPoints is the loyalty.skipped reason for purchases too small to
// earn a whole point.
const SkipZeroPoints = "zero_points"

var (
	ErrMintExists   = fmt.Errorf("loyalty: %w", coreerrors.ErrAlreadyExists)
	ErrMintNotFound = fmt.Errorf("loyalty: %w", coreerrors.ErrNotFound)
	ErrNotAuthority = fmt.Errorf("loyalty: %w: caller is not the mint authority", coreerrors.ErrUnauthorized)
)

type programState interface {
	RecordGet(addr [32]byte, out interface{}) (bool, error)
	RecordPut(addr [32]byte, value interface{}) error
}

type pointsLedger interface {
	Points(mint [32]byte, holder [20]byte) (uint64, error)
	MintPoints(mint [32]byte, holder [20]byte, amount uint64) error
	BurnPoints(mint [32]byte, holder [20]byte, amount uint64) error
}

type escrowLedger interface {
	Get(storeAddr address.Address) (*escrow.Escrow, error)
	Payout(storeAddr address.Address, to [20]byte, amount uint64) error
}

type storeAuthority interface {
	RequireRole(caller [20]byte, addr address.Address, min store.Role) (*store.Store, error)
}

// Program owns LoyaltyMint records.
type Program struct {
	st        programState
	points    pointsLedger
	escrow    escrowLedger
	stores    storeAuthority
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	unitScale uint64
	nowFn     func() int64
}

func NewProgram(st programState, points pointsLedger, esc escrowLedger, stores storeAuthority) *Program {
	return &Program{
		st:        st,
		points:    points,
		escrow:    esc,
		stores:    stores,
		emitter:   events.NoopEmitter{},
		unitScale: 1,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (p *Program) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

func (p *Program) SetPauses(v nativecommon.PauseView) { p.pauses = v }

// SetUnitScale sets how many base units make one whole unit of value for
// earning purposes. Zero is treated as one.
func (p *Program) SetUnitScale(scale uint64) {
	if scale == 0 {
		scale = 1
	}
	p.unitScale = scale
}

func (p *Program) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	p.nowFn = now
}

func (p *Program) now() uint64 {
	ts := p.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Get loads the mint of a store.
func (p *Program) Get(storeAddr address.Address) (*Mint, error) {
	m := new(Mint)
	ok, err := p.st.RecordGet(address.LoyaltyMint(storeAddr), m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: store %s", ErrMintNotFound, storeAddr)
	}
	return m, nil
}

// Exists reports whether a store has a loyalty mint.
func (p *Program) Exists(storeAddr address.Address) (bool, error) {
	return p.st.RecordGet(address.LoyaltyMint(storeAddr), nil)
}

// Initialize creates the store's mint. Only the store owner may call it.
func (p *Program) Initialize(caller [20]byte, storeAddr address.Address, pointsPerUnitValue, redemptionRate uint64, authority [20]byte) (*Mint, error) {
	if err := nativecommon.Guard(p.pauses, nativecommon.ModuleLoyalty); err != nil {
		return nil, err
	}
	if _, err := p.stores.RequireRole(caller, storeAddr, store.RoleOwner); err != nil {
		return nil, err
	}
	if redemptionRate == 0 {
		return nil, fmt.Errorf("loyalty: %w: redemption rate must be positive", coreerrors.ErrInvalidInput)
	}
	exists, err := p.Exists(storeAddr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrMintExists
	}
	m := &Mint{
		Address:            address.LoyaltyMint(storeAddr),
		Store:              storeAddr,
		PointsPerUnitValue: pointsPerUnitValue,
		RedemptionRate:     redemptionRate,
		Authority:          authority,
		CreatedAt:          p.now(),
	}
	if err := p.st.RecordPut(m.Address, m); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.LoyaltyInitialized{
		Store:              storeAddr,
		Mint:               m.Address,
		PointsPerUnitValue: pointsPerUnitValue,
		RedemptionRate:     redemptionRate,
		Authority:          authority,
	})
	return m, nil
}

// PointsFor computes purchaseAmount * pointsPerUnitValue / unitScale with
// truncation.
func (p *Program) PointsFor(m *Mint, purchaseAmount uint64) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(purchaseAmount), uint256.NewInt(m.PointsPerUnitValue))
	product.Div(product, uint256.NewInt(p.unitScale))
	if !product.IsUint64() {
		return 0, fmt.Errorf("loyalty: %w", coreerrors.ErrArithmeticOverflow)
	}
	return product.Uint64(), nil
}

// Mint credits buyer with the points earned on purchaseAmount. It is called
// by the purchase engine and by MintAs.
func (p *Program) Mint(storeAddr address.Address, buyer [20]byte, purchaseAmount uint64) (uint64, error) {
	m, err := p.Get(storeAddr)
	if err != nil {
		return 0, err
	}
	pts, err := p.PointsFor(m, purchaseAmount)
	if err != nil {
		return 0, err
	}
	if m.TotalIssued > math.MaxUint64-pts {
		return 0, fmt.Errorf("loyalty: %w", coreerrors.ErrArithmeticOverflow)
	}
	if pts > 0 {
		if err := p.points.MintPoints(m.Address, buyer, pts); err != nil {
			return 0, err
		}
		m.TotalIssued += pts
		if err := p.st.RecordPut(m.Address, m); err != nil {
			return 0, err
		}
	}
	if pts == 0 {
		p.emitter.Emit(events.LoyaltySkipped{Store: storeAddr, Holder: buyer, Reason: SkipZeroPoints})
		return 0, nil
	}
	p.emitter.Emit(events.LoyaltyMinted{Store: storeAddr, Holder: buyer, PurchaseAmount: purchaseAmount, Points: pts})
	return pts, nil
}

// MintAs is the externally callable mint, restricted to the mint authority.
func (p *Program) MintAs(caller [20]byte, storeAddr address.Address, buyer [20]byte, purchaseAmount uint64) (uint64, error) {
	if err := nativecommon.Guard(p.pauses, nativecommon.ModuleLoyalty); err != nil {
		return 0, err
	}
	m, err := p.Get(storeAddr)
	if err != nil {
		return 0, err
	}
	if caller != m.Authority {
		return 0, ErrNotAuthority
	}
	return p.Mint(storeAddr, buyer, purchaseAmount)
}

// Points returns holder's balance under the store's mint.
func (p *Program) Points(storeAddr address.Address, holder [20]byte) (uint64, error) {
	return p.points.Points(address.LoyaltyMint(storeAddr), holder)
}

// Redeem burns points held by caller. When forValue is set the caller also
// receives points / redemptionRate of value from the store's escrow.
func (p *Program) Redeem(caller [20]byte, storeAddr address.Address, points uint64, forValue bool) (uint64, error) {
	if err := nativecommon.Guard(p.pauses, nativecommon.ModuleLoyalty); err != nil {
		return 0, err
	}
	if points == 0 {
		return 0, fmt.Errorf("loyalty: %w: points must be positive", coreerrors.ErrInvalidInput)
	}
	m, err := p.Get(storeAddr)
	if err != nil {
		return 0, err
	}
	held, err := p.points.Points(m.Address, caller)
	if err != nil {
		return 0, err
	}
	if held < points {
		return 0, fmt.Errorf("loyalty: %w: have %d, need %d", coreerrors.ErrInsufficientPoints, held, points)
	}
	var value uint64
	if forValue {
		value = points / m.RedemptionRate
		esc, err := p.escrow.Get(storeAddr)
		if err != nil {
			return 0, err
		}
		if esc.Balance < value {
			return 0, fmt.Errorf("loyalty: %w: held %d, requested %d", coreerrors.ErrInsufficientEscrowBalance, esc.Balance, value)
		}
	}
	if err := p.points.BurnPoints(m.Address, caller, points); err != nil {
		return 0, err
	}
	if value > 0 {
		if err := p.escrow.Payout(storeAddr, caller, value); err != nil {
			return 0, err
		}
	}
	m.TotalRedeemed += points
	if err := p.st.RecordPut(m.Address, m); err != nil {
		return 0, err
	}
	p.emitter.Emit(events.LoyaltyRedeemed{Store: storeAddr, Holder: caller, Points: points, Value: value, ForValue: forValue})
	return value, nil
}
