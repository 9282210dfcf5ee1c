package state

import (
	"testing"

	"sodap/storage"
	"sodap/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestBalancesRequireRegisteredToken(t *testing.T) {
	mgr := newTestManager(t)
	holder := []byte{0x01}
	if err := mgr.SetBalance(holder, "SDP", 10); err == nil {
		t.Fatalf("expected error for unregistered token")
	}
	if err := mgr.RegisterToken("sdp", "Sodap Dollar", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}
	if err := mgr.RegisterToken("SDP", "dup", 6); err == nil {
		t.Fatalf("expected duplicate token error")
	}
	meta, err := mgr.Token("sdp")
	if err != nil || meta == nil || meta.Name != "Sodap Dollar" || meta.Decimals != 6 {
		t.Fatalf("token metadata: %+v (%v)", meta, err)
	}
	if err := mgr.SetBalance(holder, "SDP", 42); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	got, err := mgr.Balance(holder, " sdp ")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	other, err := mgr.Balance([]byte{0x02}, "SDP")
	if err != nil || other != 0 {
		t.Fatalf("expected zero balance, got %d (%v)", other, err)
	}
}

func TestPointsBalances(t *testing.T) {
	mgr := newTestManager(t)
	mint := [32]byte{7}
	holder := [20]byte{8}
	if err := mgr.SetPointsBalance(mint, holder, 150); err != nil {
		t.Fatalf("set points: %v", err)
	}
	got, err := mgr.PointsBalance(mint, holder)
	if err != nil || got != 150 {
		t.Fatalf("expected 150 points, got %d (%v)", got, err)
	}
	if got, _ := mgr.PointsBalance([32]byte{9}, holder); got != 0 {
		t.Fatalf("points must be scoped by mint")
	}
	before := mgr.trie.Hash()
	if err := mgr.SetPointsBalance(mint, holder, 0); err != nil {
		t.Fatalf("clear points: %v", err)
	}
	if got, _ := mgr.PointsBalance(mint, holder); got != 0 {
		t.Fatalf("expected cleared points, got %d", got)
	}
	if mgr.trie.Hash() == before {
		t.Fatalf("clearing points must change the state root")
	}
}

type sampleRecord struct {
	Name  string
	Count uint64
	Flag  bool
}

func TestRecordRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	addr := [32]byte{1}
	var out sampleRecord
	ok, err := mgr.RecordGet(addr, &out)
	if err != nil || ok {
		t.Fatalf("expected missing record, ok=%v err=%v", ok, err)
	}
	if err := mgr.RecordPut(addr, &sampleRecord{Name: "shop", Count: 3, Flag: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err = mgr.RecordGet(addr, &out)
	if err != nil || !ok {
		t.Fatalf("expected record, ok=%v err=%v", ok, err)
	}
	if out.Name != "shop" || out.Count != 3 || !out.Flag {
		t.Fatalf("unexpected record %+v", out)
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("index")
	for _, v := range [][]byte{{1}, {2}, {1}} {
		if err := mgr.KVAppend(key, v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	var empty [][]byte
	if err := mgr.KVGetList([]byte("missing"), &empty); err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v (%v)", empty, err)
	}
}

func TestMarkApplied(t *testing.T) {
	mgr := newTestManager(t)
	hash := [32]byte{0xaa}
	fresh, err := mgr.MarkApplied(hash, 5)
	if err != nil || !fresh {
		t.Fatalf("first mark should be fresh: %v %v", fresh, err)
	}
	fresh, err = mgr.MarkApplied(hash, 6)
	if err != nil || fresh {
		t.Fatalf("second mark should be rejected: %v %v", fresh, err)
	}
	seq, ok, err := mgr.AppliedAt(hash)
	if err != nil || !ok || seq != 5 {
		t.Fatalf("expected sequence 5, got %d %v %v", seq, ok, err)
	}
}
