package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	tokenPrefix   = []byte("token:")
	tokenListKey  = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix = []byte("balance:")
	pointsPrefix  = []byte("points:")
	recordPrefix  = []byte("record:")
	appliedPrefix = []byte("applied:")
)

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, len(tokenPrefix)+len(symbol))
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(holder []byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(holder))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], holder)
	return ethcrypto.Keccak256(buf)
}

func pointsKey(mint [32]byte, holder [20]byte) []byte {
	buf := make([]byte, 0, len(pointsPrefix)+len(mint)+len(holder))
	buf = append(buf, pointsPrefix...)
	buf = append(buf, mint[:]...)
	buf = append(buf, holder[:]...)
	return ethcrypto.Keccak256(buf)
}

// RecordKey is the KV key of the record living at a derived address.
func RecordKey(addr [32]byte) []byte {
	buf := make([]byte, 0, len(recordPrefix)+len(addr))
	buf = append(buf, recordPrefix...)
	return append(buf, addr[:]...)
}

func appliedKey(hash [32]byte) []byte {
	buf := make([]byte, 0, len(appliedPrefix)+len(hash))
	buf = append(buf, appliedPrefix...)
	return append(buf, hash[:]...)
}
