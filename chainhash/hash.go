// Package chainhash provides the 256-bit block/transaction hash type shared
// by every module that names a block or a transaction.
package chainhash

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the size, in bytes, of a hash used by the chain.
const HashSize = 32

// Hash is a 256-bit digest of a block header or a transaction, computed
// with HashH (double SHA-256).
type Hash [HashSize]byte

// ZeroHash is the Hash value of all zero bytes, used for the null outpoint
// referenced by a coinbase input.
var ZeroHash Hash

// String returns the Hash as the hexadecimal string of the byte-reversed
// hash, matching the convention block explorers and the wire protocol use.
func (hash Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		hash[i], hash[HashSize-1-i] = hash[HashSize-1-i], hash[i]
	}
	return hex.EncodeToString(hash[:])
}

// IsEqual returns whether hash equals other. Two nil hashes are equal.
func (hash *Hash) IsEqual(other *Hash) bool {
	if hash == nil || other == nil {
		return hash == other
	}
	return *hash == *other
}

// IsZero reports whether the hash is the all-zero null hash.
func (hash *Hash) IsZero() bool {
	return *hash == ZeroHash
}

// CloneBytes returns a copy of the bytes of the hash, in little-endian
// (internal) order.
func (hash *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])
	return newHash
}

// SetBytes sets the bytes comprising the hash to the passed slice, which
// must be the correct size.
func (hash *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return errors.Errorf("invalid hash length of %d, want %d", len(newHash), HashSize)
	}
	copy(hash[:], newHash)
	return nil
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var hash Hash
	if err := hash.SetBytes(newHash); err != nil {
		return nil, err
	}
	return &hash, nil
}
