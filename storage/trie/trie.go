// Package trie keeps ledger state in a Merkle Patricia trie so every
// committed operation yields a verifiable state root.
package trie

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"sodap/storage"
)

// Trie buffers writes in memory on top of the last committed root. Commit
// makes them durable; Reset throws them away. Keys must already be hashed.
// A Trie is not safe for concurrent use.
type Trie struct {
	store  storage.Database
	nodes  *triedb.Database
	inner  *gethtrie.Trie
	root   common.Hash
	writes int
}

// NewTrie opens the trie at root. A nil or empty root denotes the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	t := &Trie{store: store, nodes: store.TrieDB()}
	start := gethtypes.EmptyRootHash
	if len(root) > 0 {
		start = common.BytesToHash(root)
	}
	if err := t.Reset(start); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.inner.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	if err := t.inner.Update(key, value); err != nil {
		return err
	}
	t.writes++
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (t *Trie) Delete(key []byte) error {
	if err := t.inner.Delete(key); err != nil {
		return err
	}
	t.writes++
	return nil
}

// Dirty reports whether writes are pending since the last Commit or Reset.
func (t *Trie) Dirty() bool { return t.writes > 0 }

// Hash returns the root including pending writes.
func (t *Trie) Hash() common.Hash {
	return t.inner.Hash()
}

// Root returns the last committed root hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Reset discards pending writes and reopens the trie at root.
func (t *Trie) Reset(root common.Hash) error {
	inner, err := gethtrie.New(gethtrie.TrieID(root), t.nodes)
	if err != nil {
		return err
	}
	t.inner = inner
	t.root = root
	t.writes = 0
	return nil
}

// Commit flushes pending writes as layer sequence on top of the last
// committed root and returns the new root.
func (t *Trie) Commit(sequence uint64) (common.Hash, error) {
	parent := t.root
	next, set := t.inner.Commit(false)
	if set != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(set); err != nil {
			return common.Hash{}, err
		}
		if err := t.nodes.Update(next, parent, sequence, merged, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.nodes.Commit(next, false); err != nil {
			return common.Hash{}, err
		}
	}
	if err := t.Reset(next); err != nil {
		return common.Hash{}, err
	}
	return next, nil
}

// Store exposes the backing storage.
func (t *Trie) Store() storage.Database {
	return t.store
}
