package txindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/dbstore/leveldbkv"
)

func openTestDB(t *testing.T) *leveldbkv.DB {
	t.Helper()
	db, err := leveldbkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	hash := chainhash.HashH([]byte("tx"))

	entry := NewEntry(blockstore.TxDiskPos{File: 1, BlockPos: 2, TxOffset: 3}, 100, 2)
	require.NoError(t, entry.MarkSpent(0, blockstore.TxDiskPos{File: 4, BlockPos: 5, TxOffset: 6}))

	require.NoError(t, Put(db, hash, entry))

	got, ok, err := Get(db, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Pos, got.Pos)
	require.True(t, got.IsSpent(0))
	require.False(t, got.IsSpent(1))
	require.Equal(t, entry.SpentSlots[0], got.SpentSlots[0])
}

func TestClearSpentRestoresUnspent(t *testing.T) {
	db := openTestDB(t)
	hash := chainhash.HashH([]byte("tx2"))

	entry := NewEntry(blockstore.TxDiskPos{}, 1, 1)
	require.NoError(t, entry.MarkSpent(0, blockstore.TxDiskPos{File: 9}))
	entry.ClearSpent(0)
	require.NoError(t, Put(db, hash, entry))

	got, ok, err := Get(db, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.IsSpent(0))
}

func TestDeleteRemovesEntry(t *testing.T) {
	db := openTestDB(t)
	hash := chainhash.HashH([]byte("tx3"))
	require.NoError(t, Put(db, hash, NewEntry(blockstore.TxDiskPos{}, 1, 1)))
	require.NoError(t, Delete(db, hash))

	_, ok, err := Get(db, hash)
	require.NoError(t, err)
	require.False(t, ok)
}
