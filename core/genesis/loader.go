// core/genesis/loader.go
package genesis

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"sodap/core/state"
	"sodap/native/platform"
	"sodap/storage/trie"
)

// Apply writes the genesis state described by spec into manager: the value
// token, allocations, the first platform admin with the root secret hash and
// any initial module pauses.
func Apply(spec *GenesisSpec, manager *state.Manager) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	// 1) Token
	if err := manager.RegisterToken(spec.Token.Symbol, spec.Token.Name, spec.Token.Decimals); err != nil {
		return fmt.Errorf("register token %q: %w", spec.Token.Symbol, err)
	}

	// 2) Allocations (sorted by holder)
	for _, alloc := range spec.Allocations() {
		if err := manager.SetBalance(alloc.Holder[:], spec.Token.Symbol, alloc.Amount); err != nil {
			return fmt.Errorf("alloc %x: %w", alloc.Holder, err)
		}
	}

	// 3) Platform admins
	genesisNow := spec.GenesisTimestamp().Unix()
	admins := platform.NewRegistry(manager)
	admins.SetNowFunc(func() int64 { return genesisNow })
	admin := spec.AdminCredential()
	if err := admins.Seed(admin, spec.PlatformAdmin.Name, spec.RootSecretHash); err != nil {
		return fmt.Errorf("seed platform admin: %w", err)
	}

	// 4) Pauses
	for _, module := range spec.PausedModules {
		if err := admins.SetModulePaused(admin, module, true); err != nil {
			return fmt.Errorf("pause %q: %w", module, err)
		}
	}
	return nil
}

// Build applies spec to a fresh trie and commits it as height 0.
func Build(spec *GenesisSpec, tr *trie.Trie) (common.Hash, error) {
	if tr == nil {
		return common.Hash{}, fmt.Errorf("state trie must not be nil")
	}
	if err := Apply(spec, state.NewManager(tr)); err != nil {
		return common.Hash{}, err
	}
	root, err := tr.Commit(0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit state: %w", err)
	}
	return root, nil
}
