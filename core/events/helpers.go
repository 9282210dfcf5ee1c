package events

import (
	"strconv"

	"sodap/core/address"
	"sodap/crypto"
)

func credential(c [20]byte) string {
	return crypto.FormatCredential(c)
}

func addr(a address.Address) string {
	return a.Hex()
}

func amount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func flag(b bool) string {
	return strconv.FormatBool(b)
}
