package chainengine

import "github.com/artea/corecoin/chainhash"

const blockIndexKeyPrefix = "blockindex"

func blockIndexKey(hash chainhash.Hash) []byte {
	return append([]byte(blockIndexKeyPrefix), hash[:]...)
}

var bestChainKey = []byte("hashBestChain")
var bestInvalidWorkKey = []byte("bnBestInvalidWork")
