package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sodap/core/address"
	"sodap/core/coretest"
	"sodap/crypto"
	"sodap/rpc"
)

type fixture struct {
	h      *coretest.Harness
	cli    *cli
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	keys   map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := coretest.New(t, 1_000)
	srv := httptest.NewServer(rpc.NewServer(h.Ledger, rpc.ServerConfig{AuthToken: "secret-token"}).Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	keys := map[string]string{}
	for name, actor := range map[string]coretest.Actor{"owner": h.Owner, "buyer": h.Buyer} {
		path := filepath.Join(dir, name+".key")
		require.NoError(t, crypto.SaveKey(path, &crypto.PrivateKey{PrivateKey: actor.Key}, "pw", crypto.LightScrypt))
		keys[name] = path
	}
	f := &fixture{h: h, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, keys: keys}
	f.cli = &cli{
		endpoint:   srv.URL,
		token:      "secret-token",
		stdout:     f.stdout,
		stderr:     f.stderr,
		passphrase: func() (string, error) { return "pw", nil },
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) {
	t.Helper()
	f.stdout.Reset()
	f.stderr.Reset()
	require.Equal(t, 0, f.cli.dispatch(args), "stderr: %s", f.stderr.String())
}

func TestStoreProductPurchaseFlow(t *testing.T) {
	f := newFixture(t)
	f.run(t, "store", "register", "--key", f.keys["owner"], "--name", "Corner Shop")
	shop := address.Store(f.h.Owner.Cred)
	st, err := f.h.Ledger.Store(shop)
	require.NoError(t, err)
	require.Equal(t, "Corner Shop", st.Name)

	widget := address.FormatUUID(coretest.Widget)
	f.run(t, "product", "register", "--key", f.keys["owner"], "--store", shop.Hex(), "--uuid", widget, "--price", "0.0001", "--stock", "5")
	p, err := f.h.Ledger.Product(shop, coretest.Widget)
	require.NoError(t, err)
	require.Equal(t, uint64(100), p.Price)

	f.run(t, "buy", "--key", f.keys["buyer"], "--store", shop.Hex(), "--item", widget+"=2", "--total", "0.0002")
	var result struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &result))
	require.NotEmpty(t, result.Events)

	receipt, err := f.h.Ledger.Receipt(shop, f.h.Buyer.Cred)
	require.NoError(t, err)
	require.Equal(t, uint64(200), receipt.TotalPaid)

	f.run(t, "escrow", "get", "--store", shop.Hex())
	require.Contains(t, f.stdout.String(), `"balance": "200"`)
}

func TestSubmitRequiresToken(t *testing.T) {
	f := newFixture(t)
	f.cli.token = ""
	code := f.cli.dispatch([]string{"store", "register", "--key", f.keys["owner"], "--name", "Shop"})
	require.Equal(t, 1, code)
	require.Contains(t, f.stderr.String(), "rpc error")
}

func TestRejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	code := f.cli.dispatch([]string{"transfer", "--key", f.keys["buyer"], "--to", crypto.FormatCredential(f.h.Owner.Cred), "--amount", "0.0000001"})
	require.Equal(t, 1, code)
	require.Contains(t, f.stderr.String(), "decimal places")
}

func TestApplyGlobalFlags(t *testing.T) {
	c := &cli{}
	rest, err := c.applyGlobalFlags([]string{"--rpc", "http://node:8545", "--token=abc", "status"})
	require.NoError(t, err)
	require.Equal(t, []string{"status"}, rest)
	require.Equal(t, "http://node:8545", c.endpoint)
	require.Equal(t, "abc", c.token)

	_, err = c.applyGlobalFlags([]string{"--rpc"})
	require.Error(t, err)
}

func TestItemListParsesQuantities(t *testing.T) {
	var items itemList
	widget := address.FormatUUID(coretest.Widget)
	require.NoError(t, items.Set(widget+"=3"))
	require.NoError(t, items.Set(widget))
	require.Equal(t, []uint64{3, 1}, items.quantities)
	require.Error(t, items.Set(widget+"=0"))
	require.Error(t, items.Set("not-a-uuid=1"))
}

func TestUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	c := &cli{stdout: &bytes.Buffer{}, stderr: &stderr}
	require.Equal(t, 1, c.dispatch([]string{"frobnicate"}))
	require.True(t, strings.Contains(stderr.String(), "Unknown command"))
}
