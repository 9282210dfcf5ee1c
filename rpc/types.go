package rpc

import (
	"encoding/hex"
	"strconv"

	"sodap/core"
	"sodap/core/address"
	"sodap/crypto"
	"sodap/native/catalog"
	"sodap/native/escrow"
	"sodap/native/loyalty"
	"sodap/native/platform"
	"sodap/native/profile"
	"sodap/native/purchase"
	"sodap/native/store"
)

// Amounts are rendered as decimal strings so JavaScript clients never lose
// precision on values above 2^53.

type LoyaltyConfigResult struct {
	PointsPerUnitValue string `json:"pointsPerUnitValue"`
	MinPurchase        string `json:"minPurchase"`
	RewardPercentage   uint64 `json:"rewardPercentage"`
	Active             bool   `json:"active"`
}

type StoreAdminResult struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

type StoreResult struct {
	Address     string              `json:"address"`
	Owner       string              `json:"owner"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	LogoURI     string              `json:"logoUri,omitempty"`
	Loyalty     LoyaltyConfigResult `json:"loyalty"`
	Revenue     string              `json:"revenue"`
	Admins      []StoreAdminResult  `json:"admins"`
	Active      bool                `json:"active"`
	CreatedAt   uint64              `json:"createdAt"`
}

type ProductResult struct {
	Address       string `json:"address"`
	Store         string `json:"store"`
	UUID          string `json:"uuid"`
	Price         string `json:"price"`
	Stock         string `json:"stock"`
	TokenizedType string `json:"tokenizedType"`
	MetadataURI   string `json:"metadataUri,omitempty"`
	Active        bool   `json:"active"`
	CreatedBy     string `json:"createdBy"`
	CreatedAt     uint64 `json:"createdAt"`
	UpdatedAt     uint64 `json:"updatedAt"`
}

type EscrowResult struct {
	Address        string `json:"address"`
	Store          string `json:"store"`
	Balance        string `json:"balance"`
	TotalDeposited string `json:"totalDeposited"`
	TotalReleased  string `json:"totalReleased"`
	TotalPaidOut   string `json:"totalPaidOut"`
	TotalRefunded  string `json:"totalRefunded"`
	Reconciles     bool   `json:"reconciles"`
}

type LineItemResult struct {
	Product  string `json:"product"`
	UUID     string `json:"uuid"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
}

type ReceiptResult struct {
	Address   string           `json:"address"`
	Store     string           `json:"store"`
	Buyer     string           `json:"buyer"`
	Items     []LineItemResult `json:"items"`
	TotalPaid string           `json:"totalPaid"`
	Status    string           `json:"status"`
	Timestamp uint64           `json:"timestamp"`
}

type LoyaltyMintResult struct {
	Address            string `json:"address"`
	Store              string `json:"store"`
	PointsPerUnitValue string `json:"pointsPerUnitValue"`
	RedemptionRate     string `json:"redemptionRate"`
	Authority          string `json:"authority"`
	TotalIssued        string `json:"totalIssued"`
	TotalRedeemed      string `json:"totalRedeemed"`
	Outstanding        string `json:"outstanding"`
	CreatedAt          uint64 `json:"createdAt"`
}

type ProfileResult struct {
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	UserID          string `json:"userId,omitempty"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	DeliveryAddress string `json:"deliveryAddress,omitempty"`
	PreferredStore  string `json:"preferredStore,omitempty"`
	TotalPurchases  uint64 `json:"totalPurchases"`
	CreatedAt       uint64 `json:"createdAt"`
	UpdatedAt       uint64 `json:"updatedAt"`
}

type PlatformAdminResult struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	AddedAt uint64 `json:"addedAt"`
}

type EventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// TransactionResult is returned by sodap_sendTransaction.
type TransactionResult struct {
	Hash      string        `json:"hash"`
	Height    uint64        `json:"height"`
	StateRoot string        `json:"stateRoot"`
	Sender    string        `json:"sender"`
	Timestamp int64         `json:"timestamp"`
	Events    []EventResult `json:"events"`
	Output    interface{}   `json:"output,omitempty"`
}

type PointsResult struct {
	Store  string `json:"store"`
	Holder string `json:"holder"`
	Points string `json:"points"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

type StatusResult struct {
	ChainID   uint64 `json:"chainId"`
	Height    uint64 `json:"height"`
	StateRoot string `json:"stateRoot"`
	Symbol    string `json:"symbol"`
	TokenName string `json:"tokenName"`
	Decimals  uint8  `json:"decimals"`
}

func amount(v uint64) string { return strconv.FormatUint(v, 10) }

func hexHash(h [32]byte) string { return "0x" + hex.EncodeToString(h[:]) }

func storeResult(s *store.Store) *StoreResult {
	if s == nil {
		return nil
	}
	out := &StoreResult{
		Address:     s.Address.Hex(),
		Owner:       crypto.FormatCredential(s.Owner),
		Name:        s.Name,
		Description: s.Description,
		LogoURI:     s.LogoURI,
		Loyalty: LoyaltyConfigResult{
			PointsPerUnitValue: amount(s.Loyalty.PointsPerUnitValue),
			MinPurchase:        amount(s.Loyalty.MinPurchase),
			RewardPercentage:   s.Loyalty.RewardPercentage,
			Active:             s.Loyalty.Active,
		},
		Revenue:   amount(s.Revenue),
		Admins:    make([]StoreAdminResult, 0, len(s.Admins)),
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
	for _, a := range s.Admins {
		out.Admins = append(out.Admins, StoreAdminResult{Address: crypto.FormatCredential(a.Credential), Role: a.Role.String()})
	}
	return out
}

func productResult(p *catalog.Product) *ProductResult {
	if p == nil {
		return nil
	}
	return &ProductResult{
		Address:       p.Address.Hex(),
		Store:         p.Store.Hex(),
		UUID:          address.FormatUUID(p.UUID),
		Price:         amount(p.Price),
		Stock:         amount(p.Stock),
		TokenizedType: p.TokenizedType.String(),
		MetadataURI:   p.MetadataURI,
		Active:        p.Active,
		CreatedBy:     crypto.FormatCredential(p.CreatedBy),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func escrowResult(e *escrow.Escrow) *EscrowResult {
	if e == nil {
		return nil
	}
	return &EscrowResult{
		Address:        e.Address.Hex(),
		Store:          e.Store.Hex(),
		Balance:        amount(e.Balance),
		TotalDeposited: amount(e.TotalDeposited),
		TotalReleased:  amount(e.TotalReleased),
		TotalPaidOut:   amount(e.TotalPaidOut),
		TotalRefunded:  amount(e.TotalRefunded),
		Reconciles:     e.Reconciles(),
	}
}

func receiptResult(r *purchase.Receipt) *ReceiptResult {
	if r == nil {
		return nil
	}
	out := &ReceiptResult{
		Address:   r.Address.Hex(),
		Store:     r.Store.Hex(),
		Buyer:     crypto.FormatCredential(r.Buyer),
		Items:     make([]LineItemResult, 0, len(r.Items)),
		TotalPaid: amount(r.TotalPaid),
		Status:    "unknown",
		Timestamp: r.Timestamp,
	}
	if r.Status == purchase.StatusSuccess {
		out.Status = "success"
	}
	for _, item := range r.Items {
		out.Items = append(out.Items, LineItemResult{
			Product:  item.Product.Hex(),
			UUID:     address.FormatUUID(item.UUID),
			Quantity: amount(item.Quantity),
			Price:    amount(item.Price),
		})
	}
	return out
}

func mintResult(m *loyalty.Mint) *LoyaltyMintResult {
	if m == nil {
		return nil
	}
	return &LoyaltyMintResult{
		Address:            m.Address.Hex(),
		Store:              m.Store.Hex(),
		PointsPerUnitValue: amount(m.PointsPerUnitValue),
		RedemptionRate:     amount(m.RedemptionRate),
		Authority:          crypto.FormatCredential(m.Authority),
		TotalIssued:        amount(m.TotalIssued),
		TotalRedeemed:      amount(m.TotalRedeemed),
		Outstanding:        amount(m.Outstanding()),
		CreatedAt:          m.CreatedAt,
	}
}

func profileResult(p *profile.Profile) *ProfileResult {
	if p == nil {
		return nil
	}
	out := &ProfileResult{
		Address:         p.Address.Hex(),
		Owner:           crypto.FormatCredential(p.Owner),
		UserID:          p.UserID,
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		DeliveryAddress: p.DeliveryAddress,
		TotalPurchases:  p.TotalPurchases,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if !p.PreferredStore.IsZero() {
		out.PreferredStore = p.PreferredStore.Hex()
	}
	return out
}

func adminResults(admins []platform.Admin) []PlatformAdminResult {
	out := make([]PlatformAdminResult, 0, len(admins))
	for _, a := range admins {
		out = append(out, PlatformAdminResult{Address: crypto.FormatCredential(a.Credential), Name: a.Name, AddedAt: a.AddedAt})
	}
	return out
}

// outputResult renders the record an operation produced.
func outputResult(v interface{}) interface{} {
	switch out := v.(type) {
	case *store.Store:
		return storeResult(out)
	case *catalog.Product:
		return productResult(out)
	case *purchase.Receipt:
		return receiptResult(out)
	case *loyalty.Mint:
		return mintResult(out)
	case *profile.Profile:
		return profileResult(out)
	case *core.MintOutput:
		return map[string]string{"points": amount(out.Points)}
	case *core.RedeemOutput:
		return map[string]string{"points": amount(out.Points), "value": amount(out.Value)}
	default:
		return nil
	}
}

func transactionResult(res *core.Result) *TransactionResult {
	out := &TransactionResult{
		Hash:      hexHash(res.Hash),
		Height:    res.Height,
		StateRoot: res.Root.Hex(),
		Sender:    crypto.FormatCredential(res.Sender),
		Timestamp: res.Timestamp,
		Events:    make([]EventResult, 0, len(res.Events)),
		Output:    outputResult(res.Output),
	}
	for _, evt := range res.Events {
		if evt == nil {
			continue
		}
		out.Events = append(out.Events, EventResult{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out
}
