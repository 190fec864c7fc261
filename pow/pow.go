// Package pow implements the compact-difficulty-bits encoding and the
// cumulative-work arithmetic the block index and chain parameters share.
// There is no third-party library for this in the reference stack; every
// btcd-lineage project hand-rolls the same ~20-line bit-twiddling routine,
// so this is implemented directly against math/big.
package pow

import (
	"math/big"

	"github.com/artea/corecoin/chainhash"
)

var bigOne = big.NewInt(1)

// oneLsh256 is 2^256, used to turn a target into a work value.
var oneLsh256 = new(big.Int).Lsh(bigOne, 256)

// CompactToBig converts a compact representation of a target (the block
// header's Bits field) to its big.Int form, using the same mantissa/exponent
// layout as Bitcoin's nBits: the low 23 bits are the mantissa, the high byte
// is the exponent in bytes, and bit 23 is the sign.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a big.Int target to its compact nBits encoding.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CalcWork returns the proof-of-work value for a block with the given
// compact target bits: 2^256 / (target+1). A higher value is more work,
// unlike the target itself where a lower value is harder.
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, bigOne)
	return new(big.Int).Div(oneLsh256, denominator)
}

// HashToBig converts a hash into a big.Int treating the hash as a
// little-endian (i.e. already display-reversed) 256-bit number, so it can be
// compared directly against a CompactToBig target.
func HashToBig(hash chainhash.Hash) *big.Int {
	reversed := hash
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return new(big.Int).SetBytes(reversed[:])
}
