package blockindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/wire"
)



func header(prev chainhash.Hash, nonce uint64) *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    1,
		PrevBlock:  prev,
		MerkleRoot: chainhash.ZeroHash,
		Timestamp:  1700000000 + int64(nonce),
		Bits:       0x207fffff,
		Nonce:      nonce,
	}
}

func TestGenesisNodeHasNoParent(t *testing.T) {
	idx := New()
	genesis := header(chainhash.ZeroHash, 0)
	h := idx.AddGenesis(genesis, blockstore.DiskPos{File: 0, Offset: 0})

	node := idx.Node(h)
	require.Equal(t, NoHandle, node.Parent)
	require.Equal(t, int32(0), node.Height)
	require.True(t, idx.Has(genesis.BlockHash()))
}

func TestAddComputesHeightAndWork(t *testing.T) {
	idx := New()
	g := header(chainhash.ZeroHash, 0)
	gh := idx.AddGenesis(g, blockstore.DiskPos{})

	h1 := header(g.BlockHash(), 1)
	n1 := idx.Add(h1, gh, blockstore.DiskPos{})

	node := idx.Node(n1)
	require.Equal(t, int32(1), node.Height)
	require.True(t, idx.Node(gh).CumulativeWork.Sign() > 0)
	require.True(t, node.CumulativeWork.Cmp(idx.Node(gh).CumulativeWork) > 0)
}

func TestCommonAncestorAtFork(t *testing.T) {
	idx := New()
	g := header(chainhash.ZeroHash, 0)
	gh := idx.AddGenesis(g, blockstore.DiskPos{})

	a1h := header(g.BlockHash(), 1)
	a1 := idx.Add(a1h, gh, blockstore.DiskPos{})
	a2h := header(a1h.BlockHash(), 2)
	a2 := idx.Add(a2h, a1, blockstore.DiskPos{})

	b1h := header(g.BlockHash(), 11)
	b1 := idx.Add(b1h, gh, blockstore.DiskPos{})
	b2h := header(b1h.BlockHash(), 12)
	b2 := idx.Add(b2h, b1, blockstore.DiskPos{})
	b3h := header(b2h.BlockHash(), 13)
	b3 := idx.Add(b3h, b2, blockstore.DiskPos{})

	fork := idx.CommonAncestor(a2, b3)
	require.Equal(t, gh, fork)

	path := idx.PathToAncestor(b3, fork)
	require.Equal(t, []Handle{b3, b2, b1}, path)
}

func TestMedianTimePast(t *testing.T) {
	idx := New()
	g := header(chainhash.ZeroHash, 0)
	gh := idx.AddGenesis(g, blockstore.DiskPos{})
	cur := gh
	curHeader := g
	for i := uint64(1); i <= 5; i++ {
		h := header(curHeader.BlockHash(), i)
		cur = idx.Add(h, cur, blockstore.DiskPos{})
		curHeader = h
	}
	median := idx.MedianTimePast(cur, 11)
	require.True(t, median >= g.Timestamp && median <= curHeader.Timestamp)
}
