package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sodap/core/coretest"
)

type capture struct {
	mu       sync.Mutex
	bodies   [][]byte
	events   []string
	sigs     []string
	delivers []string
}

func (c *capture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.events = append(c.events, r.Header.Get(HeaderEvent))
		c.sigs = append(c.sigs, r.Header.Get(HeaderSignature))
		c.delivers = append(c.delivers, r.Header.Get(HeaderDelivery))
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func TestDispatcherSignsPayload(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler(t))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.Enqueue(Payload{DeliveryID: "d-1", Type: "store.registered"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return c.count() == 1 }, time.Second)
	if c.count() != 1 {
		t.Fatalf("expected one delivery, got %d", c.count())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !Verify([]byte("secret"), c.bodies[0], c.sigs[0]) {
		t.Fatalf("signature %s does not verify", c.sigs[0])
	}
	if c.sigs[0][:7] != "sha256=" {
		t.Fatalf("unexpected signature prefix %s", c.sigs[0])
	}
	if c.events[0] != "store.registered" || c.delivers[0] != "d-1" {
		t.Fatalf("unexpected headers %s %s", c.events[0], c.delivers[0])
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, time.Millisecond*10, time.Millisecond*20))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.Enqueue(Payload{DeliveryID: "d-2", Type: "purchase.completed"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected retries, got %d", attempts)
	}
}

func TestDispatcherHookFiltersCommittedEvents(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler(t))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithEventFilter([]string{"purchase."}))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	h := coretest.New(t, 1_000)
	h.Ledger.OnCommit(dispatcher.Hook())
	shop := h.Shop()
	h.Buy(shop, 1)

	waitFor(func() bool { return c.count() >= 1 }, time.Second)
	time.Sleep(50 * time.Millisecond)
	if c.count() != 1 {
		t.Fatalf("expected only the purchase event, got %d deliveries", c.count())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload Payload
	if err := json.Unmarshal(c.bodies[0], &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Type != "purchase.completed" || payload.Operation != "purchase_cart" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Attributes["store"] != shop.Hex() {
		t.Fatalf("unexpected store %s", payload.Attributes["store"])
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	dispatcher, err := NewDispatcher("http://127.0.0.1:1", []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	dispatcher.Close()
	if err := dispatcher.Enqueue(Payload{Type: "store.registered"}); err == nil {
		t.Fatalf("expected closed dispatcher to reject")
	}
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher(" ", []byte("secret")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://example.com", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(time.Second, 3*time.Second); got != 2*time.Second {
		t.Fatalf("unexpected backoff %s", got)
	}
	if got := nextBackoff(2*time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
}
