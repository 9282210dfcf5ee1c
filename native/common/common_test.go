package common

import (
	"errors"
	"testing"

	coreerrors "sodap/core/errors"
)

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, ModuleStore); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	view := pauses{ModulePurchase: true}
	if err := Guard(view, ModuleStore); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
	err := Guard(view, ModulePurchase)
	if !errors.Is(err, coreerrors.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
}

func TestNormalizeText(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	got, err := NormalizeText("name", "  Cafe\u0301 ", 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "Caf\u00e9" {
		t.Fatalf("unexpected normalisation %q", got)
	}
	if _, err := NormalizeText("name", "bad\x00name", 0); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected control character rejection, got %v", err)
	}
	if _, err := NormalizeText("uri", "abcdef", 4); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected length rejection, got %v", err)
	}
	if _, err := RequireText("name", "   ", 0); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected empty rejection, got %v", err)
	}
}
