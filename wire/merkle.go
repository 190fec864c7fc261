// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "github.com/artea/corecoin/chainhash"

// nextPowerOfTwo returns the next highest power of two from a given number,
// or n itself if it is already a power of two. Used while sizing the linear
// array that backs a merkle tree.
func nextPowerOfTwo(n int) int {
	if n&(n-1) == 0 {
		return n
	}
	exponent := 0
	for 1<<uint(exponent) < n {
		exponent++
	}
	return 1 << uint(exponent)
}

// hashMerkleBranches returns the hash of the concatenation of left and right.
func hashMerkleBranches(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.HashH(buf[:])
}

// BuildMerkleTreeRoot builds a merkle tree from the given transactions and
// returns its root. An empty transaction list returns the zero hash.
func BuildMerkleTreeRoot(transactions []*MsgTx) chainhash.Hash {
	if len(transactions) == 0 {
		return chainhash.ZeroHash
	}

	nextPoT := nextPowerOfTwo(len(transactions))
	arraySize := nextPoT*2 - 1
	merkles := make([]*chainhash.Hash, arraySize)

	for i, tx := range transactions {
		txHash := tx.TxHash()
		merkles[i] = &txHash
	}

	offset := nextPoT
	for i := 0; i < arraySize-1; i += 2 {
		switch {
		case merkles[i] == nil:
			merkles[offset] = nil
		case merkles[i+1] == nil:
			h := hashMerkleBranches(*merkles[i], *merkles[i])
			merkles[offset] = &h
		default:
			h := hashMerkleBranches(*merkles[i], *merkles[i+1])
			merkles[offset] = &h
		}
		offset++
	}

	return *merkles[len(merkles)-1]
}
