package trie

import (
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"sodap/storage"
)

func TestCommittedRootSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	tr, err := NewTrie(first, nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("store"))
	require.NoError(t, tr.Update(key, []byte("record")))
	root, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, root, tr.Root())
	first.Close()

	second, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer second.Close()
	reopened, err := NewTrie(second, root.Bytes())
	require.NoError(t, err)
	got, err := reopened.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("record"), got)
}

func TestResetDropsPendingWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	kept := crypto.Keccak256([]byte("kept"))
	require.NoError(t, tr.Update(kept, []byte{1}))
	committed, err := tr.Commit(1)
	require.NoError(t, err)
	require.False(t, tr.Dirty())

	dropped := crypto.Keccak256([]byte("dropped"))
	require.NoError(t, tr.Update(dropped, []byte{2}))
	require.True(t, tr.Dirty())
	require.NotEqual(t, committed, tr.Hash())

	require.NoError(t, tr.Reset(committed))
	require.False(t, tr.Dirty())
	require.Equal(t, committed, tr.Hash())
	got, err := tr.Get(dropped)
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = tr.Get(kept)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got)
}

func TestDeleteRestoresEmptyRoot(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, tr.Root())

	key := crypto.Keccak256([]byte("admin"))
	require.NoError(t, tr.Update(key, []byte{7}))
	_, err = tr.Commit(1)
	require.NoError(t, err)

	require.NoError(t, tr.Delete(key))
	root, err := tr.Commit(2)
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, root)
}
