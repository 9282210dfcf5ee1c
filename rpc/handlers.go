package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"sodap/core/address"
	"sodap/core/types"
	"sodap/crypto"
)

func decodeTransaction(params []json.RawMessage) (*types.Transaction, error) {
	if len(params) != 1 {
		return nil, invalidParams("expected a single transaction parameter")
	}
	var tx types.Transaction
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return nil, invalidParams("invalid transaction: %v", err)
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, invalidParams("transaction is not signed")
	}
	return &tx, nil
}

func stringParam(params []json.RawMessage, idx int, name string) (string, error) {
	if idx >= len(params) {
		return "", invalidParams("missing %s parameter", name)
	}
	var value string
	if err := json.Unmarshal(params[idx], &value); err != nil {
		return "", invalidParams("%s must be a string", name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalidParams("%s must not be empty", name)
	}
	return value, nil
}

func addressParam(params []json.RawMessage, idx int, name string) (address.Address, error) {
	raw, err := stringParam(params, idx, name)
	if err != nil {
		return address.Zero, err
	}
	addr, err := address.Parse(raw)
	if err != nil {
		return address.Zero, invalidParams("invalid %s: %v", name, err)
	}
	return addr, nil
}

func credentialParam(params []json.RawMessage, idx int, name string) ([20]byte, error) {
	raw, err := stringParam(params, idx, name)
	if err != nil {
		return [20]byte{}, err
	}
	cred, err := crypto.ParseCredential(raw)
	if err != nil {
		return [20]byte{}, invalidParams("invalid %s: %v", name, err)
	}
	return cred, nil
}

func uuidParam(params []json.RawMessage, idx int, name string) ([16]byte, error) {
	raw, err := stringParam(params, idx, name)
	if err != nil {
		return [16]byte{}, err
	}
	id, err := address.ParseUUID(raw)
	if err != nil {
		return [16]byte{}, invalidParams("invalid %s: %v", name, err)
	}
	return id, nil
}

func (s *Server) handleStatus(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	token, err := s.ledger.Token()
	if err != nil {
		return nil, err
	}
	return StatusResult{
		ChainID:   s.ledger.ChainID(),
		Height:    s.ledger.Height(),
		StateRoot: s.ledger.StateRoot().Hex(),
		Symbol:    token.Symbol,
		TokenName: token.Name,
		Decimals:  token.Decimals,
	}, nil
}

func (s *Server) handleHeight(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	return s.ledger.Height(), nil
}

func (s *Server) handleStateRoot(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	return s.ledger.StateRoot().Hex(), nil
}

// TransactionStatus reports whether a transaction hash has been applied.
type TransactionStatus struct {
	Hash    string `json:"hash"`
	Applied bool   `json:"applied"`
	Height  uint64 `json:"height,omitempty"`
}

func (s *Server) handleGetTransaction(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	raw, err := stringParam(params, 0, "hash")
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X"))
	if err != nil || len(decoded) != 32 {
		return nil, invalidParams("hash must be 32 hex encoded bytes")
	}
	var hash [32]byte
	copy(hash[:], decoded)
	height, applied, err := s.ledger.AppliedAt(hash)
	if err != nil {
		return nil, err
	}
	return TransactionStatus{Hash: hexHash(hash), Applied: applied, Height: height}, nil
}

// DeriveRequest names the record kind and the seeds it derives from.
type DeriveRequest struct {
	Kind  string `json:"kind"`
	Owner string `json:"owner,omitempty"`
	Store string `json:"store,omitempty"`
	UUID  string `json:"uuid,omitempty"`
	Buyer string `json:"buyer,omitempty"`
}

func (s *Server) handleDeriveAddress(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	if len(params) != 1 {
		return nil, invalidParams("expected a single derivation object")
	}
	var req DeriveRequest
	if err := json.Unmarshal(params[0], &req); err != nil {
		return nil, invalidParams("invalid derivation request: %v", err)
	}
	cred := func(value, name string) ([20]byte, error) {
		c, err := crypto.ParseCredential(value)
		if err != nil {
			return c, invalidParams("invalid %s: %v", name, err)
		}
		return c, nil
	}
	storeAddr := func() (address.Address, error) {
		a, err := address.Parse(req.Store)
		if err != nil {
			return a, invalidParams("invalid store: %v", err)
		}
		return a, nil
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	switch kind {
	case "store":
		owner, err := cred(req.Owner, "owner")
		if err != nil {
			return nil, err
		}
		return address.Store(owner).Hex(), nil
	case "profile":
		owner, err := cred(req.Owner, "owner")
		if err != nil {
			return nil, err
		}
		return address.UserProfile(owner).Hex(), nil
	case "escrow", "loyalty_mint":
		st, err := storeAddr()
		if err != nil {
			return nil, err
		}
		if kind == "escrow" {
			return address.Escrow(st).Hex(), nil
		}
		return address.LoyaltyMint(st).Hex(), nil
	case "product":
		st, err := storeAddr()
		if err != nil {
			return nil, err
		}
		id, err := address.ParseUUID(req.UUID)
		if err != nil {
			return nil, invalidParams("invalid uuid: %v", err)
		}
		return address.Product(st, id).Hex(), nil
	case "receipt":
		st, err := storeAddr()
		if err != nil {
			return nil, err
		}
		buyer, err := cred(req.Buyer, "buyer")
		if err != nil {
			return nil, err
		}
		return address.Receipt(st, buyer).Hex(), nil
	case "platform_admins":
		return address.PlatformAdmins().Hex(), nil
	default:
		return nil, invalidParams("unknown address kind %q", req.Kind)
	}
}

func (s *Server) handleGetStore(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	addr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	st, err := s.ledger.Store(addr)
	if err != nil {
		return nil, err
	}
	return storeResult(st), nil
}

func (s *Server) handleGetProduct(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	storeAddr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	id, err := uuidParam(params, 1, "uuid")
	if err != nil {
		return nil, err
	}
	p, err := s.ledger.Product(storeAddr, id)
	if err != nil {
		return nil, err
	}
	return productResult(p), nil
}

func (s *Server) handleListProducts(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	storeAddr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	products, err := s.ledger.Products(storeAddr)
	if err != nil {
		return nil, err
	}
	out := make([]*ProductResult, 0, len(products))
	for _, p := range products {
		out = append(out, productResult(p))
	}
	return out, nil
}

func (s *Server) handleGetEscrow(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	storeAddr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	esc, err := s.ledger.Escrow(storeAddr)
	if err != nil {
		return nil, err
	}
	return escrowResult(esc), nil
}

func (s *Server) handleGetReceipt(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	storeAddr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	buyer, err := credentialParam(params, 1, "buyer")
	if err != nil {
		return nil, err
	}
	receipt, err := s.ledger.Receipt(storeAddr, buyer)
	if err != nil {
		return nil, err
	}
	return receiptResult(receipt), nil
}

func (s *Server) handleGetLoyaltyMint(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	storeAddr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	mint, err := s.ledger.LoyaltyMint(storeAddr)
	if err != nil {
		return nil, err
	}
	return mintResult(mint), nil
}

func (s *Server) handleGetPoints(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	storeAddr, err := addressParam(params, 0, "store")
	if err != nil {
		return nil, err
	}
	holder, err := credentialParam(params, 1, "holder")
	if err != nil {
		return nil, err
	}
	pts, err := s.ledger.Points(storeAddr, holder)
	if err != nil {
		return nil, err
	}
	return PointsResult{Store: storeAddr.Hex(), Holder: crypto.FormatCredential(holder), Points: amount(pts)}, nil
}

func (s *Server) handleGetBalance(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	holder, err := credentialParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	bal, err := s.ledger.Balance(holder)
	if err != nil {
		return nil, err
	}
	return BalanceResult{Address: crypto.FormatCredential(holder), Symbol: s.ledger.Symbol(), Balance: amount(bal)}, nil
}

func (s *Server) handleGetProfile(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	owner, err := credentialParam(params, 0, "owner")
	if err != nil {
		return nil, err
	}
	p, err := s.ledger.Profile(owner)
	if err != nil {
		return nil, err
	}
	return profileResult(p), nil
}

func (s *Server) handleGetPlatformAdmins(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	admins, err := s.ledger.PlatformAdmins()
	if err != nil {
		return nil, err
	}
	return adminResults(admins), nil
}

func (s *Server) handleGetPausedModules(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	modules, err := s.ledger.PausedModules()
	if err != nil {
		return nil, err
	}
	if modules == nil {
		modules = []string{}
	}
	return modules, nil
}
