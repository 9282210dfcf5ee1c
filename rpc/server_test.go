package rpc

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"sodap/core"
	"sodap/core/address"
	"sodap/core/genesis"
	"sodap/core/ops"
	"sodap/core/types"
	"sodap/crypto"
	"sodap/native/platform"
	"sodap/storage"
)

const (
	testChainID = 11
	testToken   = "secret-token"
)

type fixture struct {
	t      *testing.T
	ledger *core.Ledger
	server *Server
	owner  *ecdsa.PrivateKey
	buyer  *ecdsa.PrivateKey
	nonce  uint64
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	admin, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	owner, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	buyer, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	hash, err := platform.HashSecret("root-secret", platform.SecretParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	chainID := uint64(testChainID)
	spec := &genesis.GenesisSpec{
		GenesisTime:    "2024-01-01T00:00:00Z",
		ChainID:        &chainID,
		Token:          genesis.TokenSpec{Symbol: "SDP", Name: "Sodap Dollar", Decimals: 6},
		Alloc:          map[string]string{crypto.FormatCredential(ethcrypto.PubkeyToAddress(buyer.PublicKey)): "500"},
		PlatformAdmin:  genesis.AdminSpec{Address: crypto.FormatCredential(ethcrypto.PubkeyToAddress(admin.PublicKey)), Name: "ops"},
		RootSecretHash: hash,
	}
	ledger, err := core.Open(storage.NewMemDB(), spec, core.Options{})
	require.NoError(t, err)
	if cfg.AuthToken == "" {
		cfg.AuthToken = testToken
	}
	return &fixture{t: t, ledger: ledger, server: NewServer(ledger, cfg), owner: owner, buyer: buyer}
}

func (f *fixture) signed(key *ecdsa.PrivateKey, p ops.Payload) *types.Transaction {
	f.t.Helper()
	f.nonce++
	tx, err := ops.NewTransaction(testChainID, f.nonce, p)
	require.NoError(f.t, err)
	require.NoError(f.t, tx.Sign(key))
	return tx
}

func rpcBody(t *testing.T, method string, params ...interface{}) []byte {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: json.RawMessage("1")})
	require.NoError(t, err)
	return body
}

func (f *fixture) post(body []byte, headers map[string]string) (*httptest.ResponseRecorder, RPCResponse) {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	var resp RPCResponse
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (f *fixture) call(method string, params ...interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	f.t.Helper()
	return f.post(rpcBody(f.t, method, params...), nil)
}

func (f *fixture) send(tx *types.Transaction) (*httptest.ResponseRecorder, RPCResponse) {
	f.t.Helper()
	return f.post(rpcBody(f.t, "sodap_sendTransaction", tx), map[string]string{"Authorization": "Bearer " + testToken})
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(encoded, out))
}

func errorCode(t *testing.T, resp RPCResponse) string {
	t.Helper()
	require.NotNil(t, resp.Error)
	data, ok := resp.Error.Data.(map[string]interface{})
	require.True(t, ok, "error data missing: %#v", resp.Error)
	code, _ := data["code"].(string)
	return code
}

func TestSendTransactionAndQueryStore(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	rec, resp := f.send(f.signed(f.owner, &ops.RegisterStore{Name: "Corner Shop"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var result TransactionResult
	decodeResult(t, resp, &result)
	require.Equal(t, uint64(1), result.Height)
	require.NotEmpty(t, result.Events)
	require.Equal(t, "store.registered", result.Events[0].Type)

	storeAddr := address.Store(ethcrypto.PubkeyToAddress(f.owner.PublicKey)).Hex()
	_, resp = f.call("sodap_getStore", storeAddr)
	var st StoreResult
	decodeResult(t, resp, &st)
	require.Equal(t, "Corner Shop", st.Name)
	require.True(t, st.Active)
	require.Len(t, st.Admins, 1)
	require.Equal(t, "owner", st.Admins[0].Role)

	_, resp = f.call("sodap_getEscrow", storeAddr)
	var esc EscrowResult
	decodeResult(t, resp, &esc)
	require.Equal(t, "0", esc.Balance)
	require.True(t, esc.Reconciles)

	_, resp = f.call("sodap_getTransaction", result.Hash)
	var status TransactionStatus
	decodeResult(t, resp, &status)
	require.True(t, status.Applied)
	require.Equal(t, uint64(1), status.Height)
}

func TestSendTransactionRequiresBearer(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	body := rpcBody(t, "sodap_sendTransaction", f.signed(f.owner, &ops.RegisterStore{Name: "Shop"}))

	rec, resp := f.post(body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	rec, _ = f.post(body, map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, uint64(0), f.ledger.Height())
}

func TestLedgerRejectionsCarryErrorClass(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	tx := f.signed(f.owner, &ops.RegisterStore{Name: "Shop"})
	rec, _ := f.send(tx)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := f.send(tx)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeDuplicateTx, resp.Error.Code)
	require.Equal(t, "AlreadyExists", errorCode(t, resp))

	rec, resp = f.send(f.signed(f.owner, &ops.RegisterStore{Name: "Shop again"}))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeRejected, resp.Error.Code)
	require.Equal(t, "AlreadyExists", errorCode(t, resp))

	storeAddr := address.Store(ethcrypto.PubkeyToAddress(f.owner.PublicKey))
	rec, resp = f.send(f.signed(f.buyer, &ops.PurchaseCart{Store: storeAddr, UUIDs: [][16]byte{{1}}, Quantities: []uint64{1}, TotalPaid: 5}))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NotFound", errorCode(t, resp))
	require.Equal(t, uint64(1), f.ledger.Height())
}

func TestIdempotencyKeyReplaysFirstResponse(t *testing.T) {
	store, err := OpenIdempotencyStore(filepath.Join(t.TempDir(), "idem.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f := newFixture(t, ServerConfig{Idempotency: store})

	body := rpcBody(t, "sodap_sendTransaction", f.signed(f.owner, &ops.RegisterStore{Name: "Shop"}))
	headers := map[string]string{"Authorization": "Bearer " + testToken, "Idempotency-Key": "order-1"}

	first, _ := f.post(body, headers)
	require.Equal(t, http.StatusOK, first.Code)
	second, _ := f.post(body, headers)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, uint64(1), f.ledger.Height())

	other := rpcBody(t, "sodap_sendTransaction", f.signed(f.owner, &ops.CreateWallet{}))
	rec, resp := f.post(other, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func TestIdempotencyStorePrunesExpired(t *testing.T) {
	store, err := OpenIdempotencyStore(filepath.Join(t.TempDir(), "idem.db"), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	hash := RequestHash([]byte("body"))
	require.NoError(t, store.Remember("k", hash, http.StatusOK, []byte("resp"), now))

	rec, found, err := store.Lookup("k", hash, now.Add(time.Second))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("resp"), rec.Body)

	removed, err := store.Prune(now.Add(2 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	_, found, err = store.Lookup("k", hash, now)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSendTransactionRateLimited(t *testing.T) {
	f := newFixture(t, ServerConfig{RateLimitPerSec: 0.001, RateLimitBurst: 1})
	rec, _ := f.send(f.signed(f.owner, &ops.RegisterStore{Name: "Shop"}))
	require.Equal(t, http.StatusOK, rec.Code)
	rec, resp := f.send(f.signed(f.owner, &ops.CreateWallet{}))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestClientSourceHonoursTrustedProxiesOnly(t *testing.T) {
	server := NewServer(nil, ServerConfig{TrustedProxies: []string{"10.0.0.1"}})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "10.0.0.5", server.clientSource(req))

	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "203.0.113.9", server.clientSource(req))
}

func TestQueryErrors(t *testing.T) {
	f := newFixture(t, ServerConfig{})

	rec, resp := f.call("sodap_nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	rec, resp = f.call("sodap_getStore", "not-hex")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	rec, resp = f.call("sodap_getStore", address.Store([20]byte{9}).Hex())
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NotFound", errorCode(t, resp))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	out := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
}

func TestBalanceStatusAndDerivation(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	buyer := ethcrypto.PubkeyToAddress(f.buyer.PublicKey)

	_, resp := f.call("sodap_getBalance", crypto.FormatCredential(buyer))
	var bal BalanceResult
	decodeResult(t, resp, &bal)
	require.Equal(t, "500", bal.Balance)
	require.Equal(t, "SDP", bal.Symbol)

	_, resp = f.call("sodap_status")
	var status StatusResult
	decodeResult(t, resp, &status)
	require.Equal(t, uint64(testChainID), status.ChainID)
	require.Equal(t, f.ledger.StateRoot().Hex(), status.StateRoot)
	require.Equal(t, "SDP", status.Symbol)
	require.Equal(t, "Sodap Dollar", status.TokenName)
	require.Equal(t, uint8(6), status.Decimals)

	storeAddr := address.Store(buyer)
	_, resp = f.call("sodap_deriveAddress", DeriveRequest{Kind: "receipt", Store: storeAddr.Hex(), Buyer: crypto.FormatCredential(buyer)})
	var derived string
	decodeResult(t, resp, &derived)
	require.Equal(t, address.Receipt(storeAddr, buyer).Hex(), derived)

	_, resp = f.call("sodap_getPlatformAdmins")
	var admins []PlatformAdminResult
	decodeResult(t, resp, &admins)
	require.Len(t, admins, 1)
	require.Equal(t, "ops", admins[0].Name)
}

func TestEventsWebsocketReplaysBacklog(t *testing.T) {
	f := newFixture(t, ServerConfig{EnableWebsocket: true})
	_, err := f.ledger.Apply(context.Background(), f.signed(f.owner, &ops.RegisterStore{Name: "Shop"}))
	require.NoError(t, err)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/events?type=store.", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update EventUpdatePayload
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, "store.registered", update.Type)
	require.Equal(t, uint64(1), update.Height)

	_, err = f.ledger.Apply(context.Background(), f.signed(f.owner, &ops.UpdateStore{
		Store:   address.Store(ethcrypto.PubkeyToAddress(f.owner.PublicKey)),
		SetName: true,
		Name:    "Shop 2",
	}))
	require.NoError(t, err)
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, "store.updated", update.Type)
}

func TestEventsWebsocketFiltersByStore(t *testing.T) {
	f := newFixture(t, ServerConfig{EnableWebsocket: true})
	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	_, err = f.ledger.Apply(context.Background(), f.signed(other, &ops.RegisterStore{Name: "Other"}))
	require.NoError(t, err)
	_, err = f.ledger.Apply(context.Background(), f.signed(f.owner, &ops.RegisterStore{Name: "Mine"}))
	require.NoError(t, err)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()
	mine := address.Store(ethcrypto.PubkeyToAddress(f.owner.PublicKey))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.Dial(ctx, base+"?type=store.registered&store="+mine.Hex(), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update EventUpdatePayload
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, uint64(2), update.Height)
	require.Equal(t, mine.Hex(), update.Attrs["store"])

	_, resp, err := websocket.Dial(ctx, base+"?store=not-an-address", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
