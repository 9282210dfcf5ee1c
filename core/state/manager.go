package state

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"sodap/storage/trie"
)

// Manager reads and writes RLP-encoded ledger state on a trie. Every key is
// hashed with keccak256 before it reaches the trie.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// TokenMetadata describes a fungible asset held through the bank capability.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func (m *Manager) loadTokenList() ([]string, error) {
	data, err := m.trie.Get(tokenListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) loadTokenMetadata(symbol string) (*TokenMetadata, error) {
	data, err := m.trie.Get(tokenMetadataKey(symbol))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, err := m.loadTokenMetadata(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("token %s already registered", normalized)
	}

	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	encodedList, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	if err := m.trie.Update(tokenListKey, encodedList); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&TokenMetadata{Symbol: normalized, Name: name, Decimals: decimals})
	if err != nil {
		return err
	}
	return m.trie.Update(tokenMetadataKey(normalized), encoded)
}

// Token retrieves metadata for a registered token.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	return m.loadTokenMetadata(normalizeSymbol(symbol))
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return false
	}
	meta, err := m.loadTokenMetadata(normalized)
	return err == nil && meta != nil
}

// SetBalance stores the balance of holder in a registered token. Holders are
// either 20-byte credentials or 32-byte vault addresses.
func (m *Manager) SetBalance(holder []byte, symbol string, amount uint64) error {
	if len(holder) == 0 {
		return fmt.Errorf("holder must not be empty")
	}
	normalized := normalizeSymbol(symbol)
	if !m.TokenExists(normalized) {
		return fmt.Errorf("token %s not registered", normalized)
	}
	return m.putUint(balanceKey(holder, normalized), amount)
}

// Balance returns the holder's balance, zero when never written.
func (m *Manager) Balance(holder []byte, symbol string) (uint64, error) {
	return m.loadUint(balanceKey(holder, normalizeSymbol(symbol)))
}

// SetPointsBalance stores a loyalty points balance for holder under mint.
func (m *Manager) SetPointsBalance(mint [32]byte, holder [20]byte, amount uint64) error {
	return m.putUint(pointsKey(mint, holder), amount)
}

// putUint writes amount under key. Zero removes the key so drained balances
// do not linger in the state.
func (m *Manager) putUint(key []byte, amount uint64) error {
	if amount == 0 {
		return m.trie.Delete(key)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.trie.Update(key, encoded)
}

// PointsBalance returns the holder's points under mint.
func (m *Manager) PointsBalance(mint [32]byte, holder [20]byte) (uint64, error) {
	return m.loadUint(pointsKey(mint, holder))
}

func (m *Manager) loadUint(key []byte) (uint64, error) {
	data, err := m.trie.Get(key)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var v uint64
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends value to the byte-slice list under key. Duplicates are
// ignored to keep the index deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.trie.Get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(hashed, encoded)
}

// KVGetList decodes the list under key into out, a pointer to a slice. A
// missing key yields an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// RecordGet loads the record stored at a derived address.
func (m *Manager) RecordGet(addr [32]byte, out interface{}) (bool, error) {
	return m.KVGet(RecordKey(addr), out)
}

// RecordPut writes the record stored at a derived address.
func (m *Manager) RecordPut(addr [32]byte, value interface{}) error {
	return m.KVPut(RecordKey(addr), value)
}

// MarkApplied records an operation hash. It reports false when the hash was
// already present.
func (m *Manager) MarkApplied(hash [32]byte, sequence uint64) (bool, error) {
	var existing uint64
	ok, err := m.KVGet(appliedKey(hash), &existing)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	return true, m.KVPut(appliedKey(hash), sequence)
}

// AppliedAt returns the sequence at which hash was applied.
func (m *Manager) AppliedAt(hash [32]byte) (uint64, bool, error) {
	var seq uint64
	ok, err := m.KVGet(appliedKey(hash), &seq)
	return seq, ok, err
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}
