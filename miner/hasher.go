package miner

import (
	"github.com/artea/corecoin/pow"
	"github.com/artea/corecoin/wire"
)

// Hasher searches block's nonce space starting at its current header nonce,
// for up to tries attempts. It returns the winning nonce and true if the
// proof-of-work target was met within that budget; block's header nonce is
// left at the winning value on success, and at the last value tried
// otherwise.
type Hasher interface {
	Name() string
	Search(block *wire.MsgBlock, tries uint64) (nonce uint64, found bool)
}

// CPUHasher is a sequential nonce search: the only hasher this module
// registers by default, mirroring the original miner's single registered
// CPUHasher.
type CPUHasher struct{}

// Name implements Hasher.
func (CPUHasher) Name() string { return "cpu" }

// Search implements Hasher.
func (CPUHasher) Search(block *wire.MsgBlock, tries uint64) (uint64, bool) {
	target := pow.CompactToBig(block.Header.Bits)
	start := block.Header.Nonce
	for i := uint64(0); i < tries; i++ {
		block.Header.Nonce = start + i
		hash := block.BlockHash()
		if pow.HashToBig(hash).Cmp(target) <= 0 {
			return block.Header.Nonce, true
		}
	}
	return block.Header.Nonce, false
}
