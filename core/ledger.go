package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "sodap/core/errors"
	"sodap/core/events"
	"sodap/core/genesis"
	"sodap/core/ops"
	"sodap/core/state"
	"sodap/core/types"
	"sodap/native/bank"
	"sodap/native/catalog"
	"sodap/native/escrow"
	"sodap/native/loyalty"
	"sodap/native/platform"
	"sodap/native/profile"
	"sodap/native/purchase"
	"sodap/native/store"
	"sodap/observability"
	telemetry "sodap/observability/otel"
	"sodap/storage"
	"sodap/storage/trie"
)

var headKey = []byte("sodap:head")

var (
	ErrWrongChain  = fmt.Errorf("ledger: %w: chain id mismatch", coreerrors.ErrInvalidInput)
	ErrBadSigner   = fmt.Errorf("ledger: %w: signature", coreerrors.ErrUnauthorized)
	ErrAlreadySeen = fmt.Errorf("ledger: operation %w", coreerrors.ErrAlreadyExists)
	ErrNoGenesis   = errors.New("ledger: empty database and no genesis spec")
)

// head is the persisted pointer to the latest committed state.
type head struct {
	Height    uint64
	Root      common.Hash
	ChainID   uint64
	Symbol    string
	UnitScale uint64
	Decimals  uint8
}

// Result describes one committed operation.
type Result struct {
	Height    uint64
	Hash      [32]byte
	Root      common.Hash
	Type      types.TxType
	Sender    [20]byte
	Timestamp int64
	Events    []*types.Event
	// Output is the record the operation created or changed, when it has
	// one: a store, product, receipt, loyalty mint or profile.
	Output interface{}
}

// CommitHook observes committed operations. Hooks run synchronously after the
// state is durable and must not call back into the ledger.
type CommitHook func(*Result)

// Options tunes a ledger. Zero values are usable.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Ledger applies signed operations one at a time. Each operation either
// commits all of its writes or none of them.
type Ledger struct {
	mu     sync.Mutex
	db     storage.Database
	trie   *trie.Trie
	state  *state.Manager
	head   head
	buffer *events.Buffer
	logger *slog.Logger
	nowFn  func() time.Time
	opTime int64

	bank     *bank.Bank
	platform *platform.Registry
	stores   *store.Registry
	catalog  *catalog.Catalog
	escrow   *escrow.Engine
	loyalty  *loyalty.Program
	purchase *purchase.Engine
	profiles *profile.Registry

	hooksMu sync.RWMutex
	hooks   []CommitHook
	stream  eventStream
}

// Open loads the ledger stored in db. When db holds no state, spec is
// applied as genesis.
func Open(db storage.Database, spec *genesis.GenesisSpec, opts Options) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database must not be nil")
	}
	l := &Ledger{db: db, buffer: &events.Buffer{}, logger: opts.Logger, nowFn: opts.Now}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.nowFn == nil {
		l.nowFn = time.Now
	}

	stored, ok, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	if ok {
		tr, err := trie.NewTrie(db, stored.Root.Bytes())
		if err != nil {
			return nil, fmt.Errorf("ledger: open state at %s: %w", stored.Root, err)
		}
		l.trie = tr
		l.head = *stored
	} else {
		if spec == nil {
			return nil, ErrNoGenesis
		}
		tr, err := trie.NewTrie(db, nil)
		if err != nil {
			return nil, fmt.Errorf("ledger: init state: %w", err)
		}
		root, err := genesis.Build(spec, tr)
		if err != nil {
			return nil, fmt.Errorf("ledger: genesis: %w", err)
		}
		chainID, _ := spec.ChainIDValue()
		l.trie = tr
		l.head = head{Root: root, ChainID: chainID, Symbol: spec.Token.Symbol, UnitScale: spec.UnitScale(), Decimals: spec.Token.Decimals}
		if err := l.persistHead(); err != nil {
			return nil, err
		}
		l.logger.Info("genesis applied", slog.String("root", root.Hex()), slog.Uint64("chainId", chainID))
	}
	l.state = state.NewManager(l.trie)
	l.wire()
	observability.Ledger().SetHeight(l.head.Height)
	return l, nil
}

func loadHead(db storage.Database) (*head, bool, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: read head: %w", err)
	}
	h := new(head)
	if err := rlp.DecodeBytes(raw, h); err != nil {
		return nil, false, fmt.Errorf("ledger: decode head: %w", err)
	}
	return h, true, nil
}

func (l *Ledger) persistHead() error {
	encoded, err := rlp.EncodeToBytes(&l.head)
	if err != nil {
		return err
	}
	if err := l.db.Put(headKey, encoded); err != nil {
		return fmt.Errorf("ledger: write head: %w", err)
	}
	return nil
}

// wire builds the modules over the shared state manager. Every module emits
// into the operation buffer and reads pause switches from the platform
// registry.
func (l *Ledger) wire() {
	now := func() int64 { return l.opTime }

	l.platform = platform.NewRegistry(l.state)
	l.platform.SetEmitter(l.buffer)
	l.platform.SetNowFunc(now)

	l.bank = bank.NewBank(l.state, l.head.Symbol)
	l.bank.SetEmitter(l.buffer)
	l.bank.SetPauses(l.platform)

	l.stores = store.NewRegistry(l.state)
	l.stores.SetEmitter(l.buffer)
	l.stores.SetPauses(l.platform)
	l.stores.SetPlatform(l.platform)
	l.stores.SetNowFunc(now)

	l.catalog = catalog.New(l.state, l.stores)
	l.catalog.SetEmitter(l.buffer)
	l.catalog.SetPauses(l.platform)
	l.catalog.SetNowFunc(now)

	l.escrow = escrow.NewEngine(l.state, l.bank, l.stores)
	l.escrow.SetEmitter(l.buffer)
	l.escrow.SetPauses(l.platform)

	l.loyalty = loyalty.NewProgram(l.state, l.bank, l.escrow, l.stores)
	l.loyalty.SetEmitter(l.buffer)
	l.loyalty.SetPauses(l.platform)
	l.loyalty.SetUnitScale(l.head.UnitScale)
	l.loyalty.SetNowFunc(now)

	l.profiles = profile.NewRegistry(l.state, l.stores)
	l.profiles.SetEmitter(l.buffer)
	l.profiles.SetPauses(l.platform)
	l.profiles.SetNowFunc(now)

	l.purchase = purchase.NewEngine(l.state, l.stores, l.catalog, l.escrow, l.bank)
	l.purchase.SetEmitter(l.buffer)
	l.purchase.SetPauses(l.platform)
	l.purchase.SetLoyalty(l.loyalty)
	l.purchase.SetProfiles(l.profiles)
	l.purchase.SetNowFunc(now)
}

// OnCommit registers a hook invoked after every committed operation.
func (l *Ledger) OnCommit(hook CommitHook) {
	if hook == nil {
		return
	}
	l.hooksMu.Lock()
	l.hooks = append(l.hooks, hook)
	l.hooksMu.Unlock()
}

// ChainID returns the network identifier operations must carry.
func (l *Ledger) ChainID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head.ChainID
}

// Apply verifies, executes and commits tx. A failed operation leaves no trace
// in state and may be resubmitted; a committed one can never be applied
// again.
func (l *Ledger) Apply(ctx context.Context, tx *types.Transaction) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	opName := "unknown"
	if tx != nil {
		opName = tx.Type.String()
	}
	ctx, span := telemetry.StartOperation(ctx, opName)

	res, err := l.apply(ctx, tx)
	code := "ok"
	var height uint64
	if err != nil {
		code = string(coreerrors.CodeOf(err))
		l.logger.Debug("operation rejected", slog.String("op", opName), slog.String("code", code), slog.String("error", err.Error()))
	} else {
		height = res.Height
		l.logger.Info("operation committed",
			slog.String("op", opName),
			slog.Uint64("height", res.Height),
			slog.String("hash", common.Hash(res.Hash).Hex()),
			slog.Int("events", len(res.Events)))
	}
	telemetry.EndOperation(ctx, span, opName, height, code, err)
	observability.Ledger().ObserveApply(opName, code, time.Since(started))
	if err != nil {
		return nil, err
	}
	l.publish(res)
	return res, nil
}

func (l *Ledger) apply(ctx context.Context, tx *types.Transaction) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger: %w: nil transaction", coreerrors.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sender, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSigner, err)
	}
	// Replays are tracked per signer so a copied body signed by someone
	// else is a new operation.
	hash, err := tx.ID()
	if err != nil {
		return nil, fmt.Errorf("ledger: %w: %v", coreerrors.ErrInvalidInput, err)
	}
	payload, err := ops.Decode(tx)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ChainID != l.head.ChainID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongChain, tx.ChainID, l.head.ChainID)
	}
	next := l.head.Height + 1
	fresh, err := l.state.MarkApplied(hash, next)
	if err != nil {
		return nil, l.rollback(err)
	}
	if !fresh {
		return nil, l.rollback(ErrAlreadySeen)
	}

	l.opTime = l.nowFn().Unix()
	output, err := l.dispatch(sender, payload)
	if err != nil {
		return nil, l.rollback(err)
	}
	root, err := l.trie.Commit(next)
	if err != nil {
		return nil, l.rollback(fmt.Errorf("ledger: commit: %w", err))
	}
	prev := l.head
	l.head.Height = next
	l.head.Root = root
	if err := l.persistHead(); err != nil {
		l.head = prev
		return nil, l.rollback(err)
	}
	observability.Ledger().SetHeight(next)
	return &Result{
		Height:    next,
		Hash:      hash,
		Root:      root,
		Type:      tx.Type,
		Sender:    sender,
		Timestamp: l.opTime,
		Events:    l.buffer.Drain(),
		Output:    output,
	}, nil
}

// rollback discards the pending writes and events of the current operation
// and returns cause. Callers hold l.mu.
func (l *Ledger) rollback(cause error) error {
	l.buffer.Discard()
	if err := l.trie.Reset(l.head.Root); err != nil {
		l.logger.Error("state reset failed", slog.String("root", l.head.Root.Hex()), slog.String("error", err.Error()))
		return fmt.Errorf("%w (state reset failed: %v)", cause, err)
	}
	return cause
}

func (l *Ledger) publish(res *Result) {
	metrics := observability.Events()
	for _, evt := range res.Events {
		metrics.RecordEvent(evt.Type)
		switch {
		case strings.HasPrefix(evt.Type, "escrow."):
			metrics.RecordEscrowBalance(evt.Attributes["store"], evt.Attributes["balance"])
		case evt.Type == events.TypePurchaseCompleted:
			metrics.RecordRevenue(evt.Attributes["store"], evt.Attributes["totalPaid"])
		}
	}
	l.stream.publish(res)
	l.hooksMu.RLock()
	hooks := append([]CommitHook(nil), l.hooks...)
	l.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(res)
	}
}
