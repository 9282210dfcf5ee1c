package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"sodap/core/address"
	"sodap/crypto"
)

func parseStore(value string) (address.Address, error) {
	if strings.TrimSpace(value) == "" {
		return address.Address{}, fmt.Errorf("--store is required")
	}
	addr, err := address.Parse(value)
	if err != nil {
		return address.Address{}, fmt.Errorf("--store: %w", err)
	}
	return addr, nil
}

func parseCred(flagName, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, fmt.Errorf("--%s is required", flagName)
	}
	cred, err := crypto.ParseCredential(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("--%s: %w", flagName, err)
	}
	return cred, nil
}

func parseUUID(value string) ([16]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [16]byte{}, fmt.Errorf("--uuid is required")
	}
	id, err := address.ParseUUID(value)
	if err != nil {
		return [16]byte{}, fmt.Errorf("--uuid: %w", err)
	}
	return id, nil
}

// itemList collects repeated --item UUID=QTY flags.
type itemList struct {
	uuids      [][16]byte
	quantities []uint64
}

func (l *itemList) String() string { return fmt.Sprintf("%d items", len(l.uuids)) }

func (l *itemList) Set(value string) error {
	id, qty, ok := strings.Cut(value, "=")
	if !ok {
		qty = "1"
	}
	parsed, err := address.ParseUUID(strings.TrimSpace(id))
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(qty), 10, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("quantity must be a positive integer")
	}
	l.uuids = append(l.uuids, parsed)
	l.quantities = append(l.quantities, n)
	return nil
}

// optionalString tracks whether a string flag was supplied at all, so an
// update can set a field to the empty string.
type optionalString struct {
	set   bool
	value string
}

func (o *optionalString) String() string { return o.value }

func (o *optionalString) Set(v string) error {
	o.set = true
	o.value = v
	return nil
}

func flagWasSet(fs *flag.FlagSet, names ...string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		for _, n := range names {
			if f.Name == n {
				found = true
			}
		}
	})
	return found
}
