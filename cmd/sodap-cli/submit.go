package main

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"sodap/core/amount"
	"sodap/core/ops"
)

type statusResult struct {
	ChainID  uint64 `json:"chainId"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

func (c *cli) status() (*statusResult, error) {
	raw, err := c.call("sodap_status", nil, "")
	if err != nil {
		return nil, err
	}
	var st statusResult
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

// parseAmount converts a display amount using the node's token decimals.
func (c *cli) parseAmount(flagName, value string) (uint64, error) {
	if value == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	if c.decimals == nil {
		st, err := c.status()
		if err != nil {
			return 0, err
		}
		c.decimals = &st.Decimals
	}
	v, err := amount.Parse(value, *c.decimals)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flagName, err)
	}
	return v, nil
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// submit signs p with the key file and sends it. The transaction hash doubles
// as the idempotency key so a retried submission replays the first answer.
func (c *cli) submit(keyFile string, p ops.Payload) int {
	key, err := c.loadKey(keyFile)
	if err != nil {
		return c.fail(err)
	}
	st, err := c.status()
	if err != nil {
		return c.fail(err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return c.fail(err)
	}
	tx, err := ops.NewTransaction(st.ChainID, nonce, p)
	if err != nil {
		return c.fail(err)
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return c.fail(err)
	}
	hash, err := tx.ID()
	if err != nil {
		return c.fail(err)
	}
	result, err := c.call("sodap_sendTransaction", []interface{}{tx}, hex.EncodeToString(hash[:]))
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(result)
}
