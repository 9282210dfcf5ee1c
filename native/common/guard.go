package common

import (
	"fmt"

	coreerrors "sodap/core/errors"
)

var ErrModulePaused = coreerrors.ErrModulePaused

// Module names accepted by the pause switch.
const (
	ModuleStore    = "store"
	ModuleCatalog  = "catalog"
	ModuleEscrow   = "escrow"
	ModulePurchase = "purchase"
	ModuleLoyalty  = "loyalty"
	ModuleProfile  = "profile"
	ModuleBank     = "bank"
)

// Pausable lists every module a platform admin may pause.
var Pausable = []string{ModuleStore, ModuleCatalog, ModuleEscrow, ModulePurchase, ModuleLoyalty, ModuleProfile, ModuleBank}

// IsPausable reports whether name is a known module.
func IsPausable(name string) bool {
	for _, m := range Pausable {
		if m == name {
			return true
		}
	}
	return false
}

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
