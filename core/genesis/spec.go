// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sodap/crypto"
	nativecommon "sodap/native/common"
)

type GenesisSpec struct {
	GenesisTime    string            `json:"genesisTime" yaml:"genesisTime"`
	ChainID        *uint64           `json:"chainId,omitempty" yaml:"chainId,omitempty"`
	Token          TokenSpec         `json:"token" yaml:"token"`
	Alloc          map[string]string `json:"alloc" yaml:"alloc"` // credential -> amount
	PlatformAdmin  AdminSpec         `json:"platformAdmin" yaml:"platformAdmin"`
	RootSecretHash string            `json:"rootSecretHash" yaml:"rootSecretHash"`
	LoyaltyUnit    uint64            `json:"loyaltyUnitScale,omitempty" yaml:"loyaltyUnitScale,omitempty"`
	PausedModules  []string          `json:"pausedModules,omitempty" yaml:"pausedModules,omitempty"`

	genesisTimestamp time.Time
	chainIDValue     uint64
	hasChainID       bool
	adminCredential  [20]byte
	allocations      []Allocation
}

type TokenSpec struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

type AdminSpec struct {
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Allocation is a resolved alloc entry.
type Allocation struct {
	Holder [20]byte
	Amount uint64
}

// LoadGenesisSpec reads a genesis file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Unknown fields are rejected in
// both formats.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s.hasChainID {
		return s.chainIDValue, true
	}
	return 0, false
}

// AdminCredential returns the parsed platform admin credential.
func (s *GenesisSpec) AdminCredential() [20]byte { return s.adminCredential }

// Allocations returns the alloc entries sorted by holder.
func (s *GenesisSpec) Allocations() []Allocation {
	return append([]Allocation(nil), s.allocations...)
}

// UnitScale returns the loyalty unit scale, defaulting to 1.
func (s *GenesisSpec) UnitScale() uint64 {
	if s.LoyaltyUnit == 0 {
		return 1
	}
	return s.LoyaltyUnit
}

// Validate checks the spec and resolves derived fields.
func (s *GenesisSpec) Validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	s.hasChainID = false
	s.chainIDValue = 0
	if s.ChainID != nil {
		s.hasChainID = true
		s.chainIDValue = *s.ChainID
	}

	if err := s.Token.validate(); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	if strings.TrimSpace(s.PlatformAdmin.Address) == "" {
		return fmt.Errorf("platformAdmin.address must be provided")
	}
	admin, err := crypto.ParseCredential(s.PlatformAdmin.Address)
	if err != nil {
		return fmt.Errorf("platformAdmin.address: %w", err)
	}
	s.adminCredential = admin
	if !strings.HasPrefix(strings.TrimSpace(s.RootSecretHash), "$argon2id$") {
		return fmt.Errorf("rootSecretHash must be an argon2id hash")
	}

	holders := make([]string, 0, len(s.Alloc))
	for holder := range s.Alloc {
		holders = append(holders, holder)
	}
	sort.Strings(holders)
	s.allocations = s.allocations[:0]
	seen := make(map[[20]byte]struct{}, len(holders))
	for _, holder := range holders {
		cred, err := crypto.ParseCredential(holder)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", holder, err)
		}
		if _, dup := seen[cred]; dup {
			return fmt.Errorf("alloc[%q]: duplicate holder", holder)
		}
		seen[cred] = struct{}{}
		raw := strings.TrimSpace(s.Alloc[holder])
		if raw == "" {
			return fmt.Errorf("alloc[%q]: amount must be provided", holder)
		}
		amount, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("alloc[%q]: invalid amount %q", holder, raw)
		}
		s.allocations = append(s.allocations, Allocation{Holder: cred, Amount: amount})
	}

	for i, module := range s.PausedModules {
		if !nativecommon.IsPausable(module) {
			return fmt.Errorf("pausedModules[%d]: unknown module %q", i, module)
		}
	}
	return nil
}

func (t *TokenSpec) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol must be provided")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name must be provided")
	}
	if t.Decimals > 18 {
		return fmt.Errorf("decimals must be 18 or fewer")
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid genesisTime: %w", err)
	}
	return ts.UTC(), nil
}
