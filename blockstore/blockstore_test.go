package blockstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/wire"
)

func mustBlock(t *testing.T, nonce uint64) *wire.MsgBlock {
	t.Helper()
	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.ZeroHash,
		Timestamp:  1700000000,
		Bits:       0x207fffff,
		Nonce:      nonce,
	})
	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 50 * 1e8, PkScript: []byte{0x01}})
	block.AddTransaction(tx)
	root := wire.BuildMerkleTreeRoot(block.Transactions)
	block.Header.MerkleRoot = root
	return block
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	block := mustBlock(t, 1)
	pos, err := store.WriteToDisk(block, true)
	require.NoError(t, err)
	require.False(t, pos.IsNull())

	got, err := store.ReadFromDisk(pos)
	require.NoError(t, err)
	require.Equal(t, block.BlockHash(), got.BlockHash())
	require.Len(t, got.Transactions, 1)
}

func TestWriteAppendsSequentially(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	posA, err := store.WriteToDisk(mustBlock(t, 1), false)
	require.NoError(t, err)
	posB, err := store.WriteToDisk(mustBlock(t, 2), false)
	require.NoError(t, err)

	require.Equal(t, posA.File, posB.File)
	require.True(t, posB.Offset > posA.Offset)
}

func TestReadTxFromDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	block := mustBlock(t, 1)
	pos, err := store.WriteToDisk(block, true)
	require.NoError(t, err)

	locations, err := block.TxLocations()
	require.NoError(t, err)
	require.Len(t, locations, 1)

	txPos := TxDiskPos{
		File:     pos.File,
		BlockPos: pos.Offset,
		TxOffset: pos.Offset + 8 + uint32(locations[0].TxStart),
	}
	tx, err := store.ReadTxFromDisk(txPos)
	require.NoError(t, err)
	require.Equal(t, block.Transactions[0].TxHash(), tx.TxHash())
}

func TestDiscoverCurrentFileResumesAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	_, err = store.WriteToDisk(mustBlock(t, 1), true)
	require.NoError(t, err)

	reopened, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, store.currentFile, reopened.currentFile)
	require.Equal(t, store.currentSize, reopened.currentSize)
}
