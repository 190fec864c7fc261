// Package blockindex implements the in-memory block header DAG: an arena of
// header records addressed by a 32-bit handle, with a hash-to-handle lookup
// on the side. Modeling parent/next as handles rather than pointers avoids
// the ownership cycle a pointer-based parent/next pair would create, per
// the project's design note on the block index.
//
// Index itself applies no locking; the chain engine serializes all access
// to it under its own chain lock.
package blockindex

import (
	"math/big"

	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/pow"
	"github.com/artea/corecoin/wire"
)

// Handle addresses a Node within an Index's arena. Handles are issued in
// insertion order starting from zero, so the genesis node gets Handle 0;
// NoHandle is the explicit "no such node" sentinel.
type Handle uint32

// NoHandle reports the absence of a link (a nil parent, or a next pointer
// not on the best chain).
const NoHandle Handle = ^Handle(0)

// Node is a single block header index entry.
type Node struct {
	Hash chainhash.Hash

	Parent Handle
	Next   Handle

	Height         int32
	CumulativeWork *big.Int

	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  int64
	Bits       uint32
	Nonce      uint64

	DiskPos blockstore.DiskPos
}

// Header reconstructs the wire block header this node indexes.
func (n *Node) Header() *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    n.Version,
		PrevBlock:  n.PrevBlock,
		MerkleRoot: n.MerkleRoot,
		Timestamp:  n.Timestamp,
		Bits:       n.Bits,
		Nonce:      n.Nonce,
	}
}

// Index is the arena of Nodes plus its hash lookup.
type Index struct {
	arena     []Node
	hashIndex map[chainhash.Hash]Handle
}

// New returns an empty Index.
func New() *Index {
	return &Index{hashIndex: make(map[chainhash.Hash]Handle)}
}

// Len returns the number of nodes in the index.
func (idx *Index) Len() int {
	return len(idx.arena)
}

// Lookup returns the handle for the given hash, if present.
func (idx *Index) Lookup(hash chainhash.Hash) (Handle, bool) {
	h, ok := idx.hashIndex[hash]
	return h, ok
}

// Node returns the node at handle. It panics on an out-of-range or
// NoHandle handle; callers are expected to have validated the handle via
// Lookup or another Node's Parent/Next field first.
func (idx *Index) Node(h Handle) *Node {
	return &idx.arena[h]
}

// Has reports whether hash is already present in the index.
func (idx *Index) Has(hash chainhash.Hash) bool {
	_, ok := idx.hashIndex[hash]
	return ok
}

// AddGenesis inserts the chain's genesis node: the one node with no parent.
func (idx *Index) AddGenesis(header *wire.BlockHeader, diskPos blockstore.DiskPos) Handle {
	hash := header.BlockHash()
	node := Node{
		Hash:           hash,
		Parent:         NoHandle,
		Next:           NoHandle,
		Height:         0,
		CumulativeWork: pow.CalcWork(header.Bits),
		Version:        header.Version,
		PrevBlock:      header.PrevBlock,
		MerkleRoot:     header.MerkleRoot,
		Timestamp:      header.Timestamp,
		Bits:           header.Bits,
		Nonce:          header.Nonce,
		DiskPos:        diskPos,
	}
	return idx.insert(node)
}

// Add inserts a new node whose parent is parentHandle, computing height and
// cumulative work from it.
func (idx *Index) Add(header *wire.BlockHeader, parentHandle Handle, diskPos blockstore.DiskPos) Handle {
	parent := idx.Node(parentHandle)
	hash := header.BlockHash()
	node := Node{
		Hash:           hash,
		Parent:         parentHandle,
		Next:           NoHandle,
		Height:         parent.Height + 1,
		CumulativeWork: new(big.Int).Add(parent.CumulativeWork, pow.CalcWork(header.Bits)),
		Version:        header.Version,
		PrevBlock:      header.PrevBlock,
		MerkleRoot:     header.MerkleRoot,
		Timestamp:      header.Timestamp,
		Bits:           header.Bits,
		Nonce:          header.Nonce,
		DiskPos:        diskPos,
	}
	return idx.insert(node)
}

func (idx *Index) insert(node Node) Handle {
	h := Handle(len(idx.arena))
	idx.arena = append(idx.arena, node)
	idx.hashIndex[node.Hash] = h
	return h
}

// SetNext sets the best-chain forward link on the node at h.
func (idx *Index) SetNext(h, next Handle) {
	idx.arena[h].Next = next
}

// MedianTimePast returns the median timestamp of the node at h and its
// preceding span-1 ancestors (or fewer, at the start of the chain), used by
// the timestamp consensus check.
func (idx *Index) MedianTimePast(h Handle, span int) int64 {
	times := make([]int64, 0, span)
	cur := h
	for i := 0; i < span && cur != NoHandle; i++ {
		times = append(times, idx.arena[cur].Timestamp)
		cur = idx.arena[cur].Parent
	}
	sortInt64s(times)
	return times[len(times)/2]
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// CommonAncestor walks a and b back to equal height, then together, until
// they meet, returning the handle of the fork point.
func (idx *Index) CommonAncestor(a, b Handle) Handle {
	an, bn := idx.Node(a), idx.Node(b)
	for an.Height > bn.Height {
		a = an.Parent
		an = idx.Node(a)
	}
	for bn.Height > an.Height {
		b = bn.Parent
		bn = idx.Node(b)
	}
	for a != b {
		a = an.Parent
		an = idx.Node(a)
		b = bn.Parent
		bn = idx.Node(b)
	}
	return a
}

// AncestorAtHeight walks back from h to the ancestor at the given height.
// It returns false if height is above h's own height or below the genesis
// height.
func (idx *Index) AncestorAtHeight(h Handle, height int32) (Handle, bool) {
	node := idx.Node(h)
	if height < 0 || height > node.Height {
		return NoHandle, false
	}
	for node.Height > height {
		h = node.Parent
		if h == NoHandle {
			return NoHandle, false
		}
		node = idx.Node(h)
	}
	return h, true
}

// PathToAncestor returns the handles from h back up to (but excluding)
// ancestor, ordered from h towards ancestor (descending height).
func (idx *Index) PathToAncestor(h, ancestor Handle) []Handle {
	var path []Handle
	for h != ancestor {
		path = append(path, h)
		h = idx.Node(h).Parent
	}
	return path
}
