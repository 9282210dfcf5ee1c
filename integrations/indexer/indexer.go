package indexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"sodap/core"
	"sodap/core/events"
	"sodap/crypto"
	"sodap/native/purchase"
	"sodap/native/store"
	"sodap/observability"
)

const cursorName = "ledger"

// Indexer mirrors committed ledger results into a SQL database for
// reporting. It is fed through core.Ledger.OnCommit and never influences
// ledger state.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to driver ("postgres" or "sqlite") and migrates the schema.
func Open(driver, dsn string, logger *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unknown driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db, logger)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger.With(slog.String("component", "indexer")), now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Hook adapts the indexer to a ledger commit hook. Failures are logged and
// counted; the ledger has already committed.
func (ix *Indexer) Hook() core.CommitHook {
	return func(res *core.Result) {
		if err := ix.Index(context.Background(), res); err != nil {
			observability.Events().RecordDrop("indexer")
			ix.logger.Error("index commit failed", slog.Uint64("height", res.Height), slog.String("error", err.Error()))
		}
	}
}

func hashHex(h [32]byte) string { return "0x" + hex.EncodeToString(h[:]) }

// Index records one committed result. Re-indexing a height is a no-op.
func (ix *Indexer) Index(ctx context.Context, res *core.Result) error {
	if res == nil {
		return nil
	}
	now := ix.now().UTC()
	txHash := hashHex(res.Hash)
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Transaction{}).Where("hash = ?", txHash).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := tx.Create(&Transaction{
			Hash:      txHash,
			Height:    res.Height,
			Type:      res.Type.String(),
			Sender:    crypto.FormatCredential(res.Sender),
			StateRoot: res.Root.Hex(),
			Timestamp: res.Timestamp,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}

		for i, evt := range res.Events {
			if evt == nil {
				continue
			}
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return err
			}
			row := Event{
				TxHash:     txHash,
				Height:     res.Height,
				Position:   i,
				Type:       evt.Type,
				Store:      evt.Attributes["store"],
				Attributes: string(attrs),
				CreatedAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if err := ix.applyEvent(tx, res.Height, evt.Type, evt.Attributes, now); err != nil {
				return err
			}
		}

		switch out := res.Output.(type) {
		case *store.Store:
			if err := upsertStore(tx, out, res.Height, now); err != nil {
				return err
			}
		case *purchase.Receipt:
			if err := tx.Create(&Receipt{
				Address:   out.Address.Hex(),
				Store:     out.Store.Hex(),
				Buyer:     crypto.FormatCredential(out.Buyer),
				TotalPaid: out.TotalPaid,
				Items:     len(out.Items),
				Height:    res.Height,
				Timestamp: out.Timestamp,
				TxHash:    txHash,
				CreatedAt: now,
			}).Error; err != nil {
				return err
			}
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"height", "updated_at"}),
		}).Create(&Cursor{Name: cursorName, Height: res.Height, UpdatedAt: now}).Error
	})
}

func upsertStore(tx *gorm.DB, s *store.Store, height uint64, now time.Time) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "name", "active", "revenue", "updated_height", "updated_at"}),
	}).Create(&Store{
		Address:       s.Address.Hex(),
		Owner:         crypto.FormatCredential(s.Owner),
		Name:          s.Name,
		Active:        s.Active,
		Revenue:       s.Revenue,
		UpdatedHeight: height,
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error
}

// applyEvent folds store-level counters carried on events into the store row.
func (ix *Indexer) applyEvent(tx *gorm.DB, height uint64, typ string, attrs map[string]string, now time.Time) error {
	storeAddr := attrs["store"]
	if storeAddr == "" {
		return nil
	}
	updates := map[string]interface{}{"updated_height": height, "updated_at": now}
	switch {
	case strings.HasPrefix(typ, "escrow."):
		balance, err := strconv.ParseUint(attrs["balance"], 10, 64)
		if err != nil {
			return fmt.Errorf("indexer: escrow balance: %w", err)
		}
		updates["escrow_balance"] = balance
	case typ == events.TypePurchaseCompleted:
		total, err := strconv.ParseUint(attrs["totalPaid"], 10, 64)
		if err != nil {
			return fmt.Errorf("indexer: purchase total: %w", err)
		}
		updates["revenue"] = gorm.Expr("revenue + ?", total)
	case typ == events.TypeStoreStatus:
		updates["active"] = attrs["active"] == "true"
	default:
		return nil
	}
	return tx.Model(&Store{}).Where("address = ?", storeAddr).Updates(updates).Error
}

// LastHeight returns the highest indexed height, or zero when empty.
func (ix *Indexer) LastHeight(ctx context.Context) (uint64, error) {
	var cur Cursor
	err := ix.db.WithContext(ctx).First(&cur, "name = ?", cursorName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cur.Height, nil
}

// StoreByAddress returns the indexed view of a store.
func (ix *Indexer) StoreByAddress(ctx context.Context, addr string) (*Store, error) {
	var s Store
	if err := ix.db.WithContext(ctx).First(&s, "address = ?", addr).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Receipts lists receipts, optionally narrowed to one store, oldest first.
func (ix *Indexer) Receipts(ctx context.Context, storeAddr string) ([]Receipt, error) {
	q := ix.db.WithContext(ctx).Order("height asc")
	if storeAddr != "" {
		q = q.Where("store = ?", storeAddr)
	}
	var out []Receipt
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Events lists events after height, optionally filtered by type prefix.
func (ix *Indexer) Events(ctx context.Context, afterHeight uint64, typePrefix string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	q := ix.db.WithContext(ctx).Where("height > ?", afterHeight).Order("height asc, position asc").Limit(limit)
	if typePrefix != "" {
		q = q.Where("type LIKE ?", typePrefix+"%")
	}
	var out []Event
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
