package chainhash

import "crypto/sha256"

// HashB calculates the hash of the given byte slice using the chain's
// default hash primitive (double SHA-256). Production deployments swap this
// for the project's dedicated hash primitive; it is kept concrete here so
// the core module is self-contained and its tests are deterministic.
func HashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// HashH calculates the hash of the given byte slice and returns it as a Hash.
func HashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}
