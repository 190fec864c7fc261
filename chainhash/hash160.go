package chainhash

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160"
)

// HashSize160 is the size, in bytes, of a Hash160 digest.
const HashSize160 = 20

// Hash160 is a RIPEMD160(SHA256(x)) digest, used to key the address
// credit/debit index by a recipient script's digest rather than by the
// script itself.
type Hash160 [HashSize160]byte

// String returns the Hash160 as the hexadecimal string of the byte-reversed
// hash, matching Hash's convention.
func (hash Hash160) String() string {
	for i := 0; i < HashSize160/2; i++ {
		hash[i], hash[HashSize160-1-i] = hash[HashSize160-1-i], hash[i]
	}
	return hex.EncodeToString(hash[:])
}

// Hash160B computes the RIPEMD160(SHA256(b)) digest of b.
func Hash160B(b []byte) Hash160 {
	sha := sha256.Sum256(b)
	ripemd := ripemd160.New()
	ripemd.Write(sha[:])

	var h Hash160
	copy(h[:], ripemd.Sum(nil))
	return h
}
