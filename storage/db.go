package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is the key-value store backing the ledger. It also owns the trie
// node database so every state root is persisted alongside ledger metadata.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	TrieDB() *triedb.Database
	Close()
}

type backend struct {
	kv     ethdb.Database
	trieDB *triedb.Database
}

func newBackend(kv ethdb.Database) backend {
	return backend{kv: kv, trieDB: triedb.NewDatabase(kv, triedb.HashDefaults)}
}

func (b backend) Put(key []byte, value []byte) error {
	return b.kv.Put(key, value)
}

func (b backend) Get(key []byte) ([]byte, error) {
	ok, err := b.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b.kv.Get(key)
}

func (b backend) Has(key []byte) (bool, error) {
	return b.kv.Has(key)
}

func (b backend) TrieDB() *triedb.Database {
	return b.trieDB
}

func (b backend) close() {
	_ = b.trieDB.Close()
	_ = b.kv.Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	backend
}

func NewMemDB() *MemDB {
	return &MemDB{backend: newBackend(rawdb.NewDatabase(memorydb.New()))}
}

// Close releases the trie cache. The data itself is dropped with the value.
func (db *MemDB) Close() {
	db.close()
}

// --- Persistent DB ---

// LevelDBOptions tunes the on-disk store. Zero values fall back to defaults.
type LevelDBOptions struct {
	CacheMB      int
	OpenFiles    int
	DisableCompr bool
}

// LevelDB is the persistent store used by sodapd.
type LevelDB struct {
	backend
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	return NewLevelDBWithOptions(path, LevelDBOptions{})
}

func NewLevelDBWithOptions(path string, o LevelDBOptions) (*LevelDB, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: empty leveldb path")
	}
	kv, err := leveldb.NewCustom(path, "sodap/db/", func(options *opt.Options) {
		if o.CacheMB > 0 {
			options.BlockCacheCapacity = o.CacheMB / 2 * opt.MiB
			options.WriteBuffer = o.CacheMB / 4 * opt.MiB
		}
		if o.OpenFiles > 0 {
			options.OpenFilesCacheCapacity = o.OpenFiles
		}
		if o.DisableCompr {
			options.Compression = opt.NoCompression
		}
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{backend: newBackend(rawdb.NewDatabase(kv))}, nil
}

// Close flushes and closes the database.
func (ldb *LevelDB) Close() {
	ldb.close()
}
