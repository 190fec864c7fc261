// Package chaincfg defines the Chain collaborator contract the chain engine
// consults for network-specific consensus parameters, and ships one concrete
// implementation (regtest) suitable for tests and the composition root's
// default configuration.
package chaincfg

import (
	"math/big"

	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/wire"
)

// Chain is the set of network-specific consensus parameters and policy
// decisions the chain engine treats as an external collaborator: everything
// about how blocks are produced and scored that isn't part of the engine's
// own bookkeeping.
type Chain interface {
	// DataDirSuffix names the subdirectory this network's state is kept
	// under, so multiple networks never share a data directory.
	DataDirSuffix() string

	// GenesisBlock returns the network's hardcoded genesis block.
	GenesisBlock() *wire.MsgBlock

	// NetworkID identifies the network for address encoding.
	NetworkID() byte

	// ProofOfWorkLimit is the easiest allowed proof-of-work target.
	ProofOfWorkLimit() *big.Int

	// NextWorkRequired returns the required Bits for the block that
	// extends the chain whose tip has the given height, bits, and
	// timestamp, given the timestamp of the block at the start of the
	// current retarget window.
	NextWorkRequired(tipHeight int32, tipBits uint32, tipTimestamp int64, firstBlockTimestampInWindow int64) uint32

	// Subsidy returns the block reward for a block at the given height,
	// before fees.
	Subsidy(height int32) uint64

	// IsStandard reports whether tx meets this network's relay/mining
	// policy (script forms, output sizes, version), independent of
	// consensus validity.
	IsStandard(tx *wire.MsgTx) bool

	// CheckPoint reports the hardcoded checkpoint hash at height, if the
	// network has pinned one there.
	CheckPoint(height int32) (hash chainhash.Hash, ok bool)

	// TotalBlocksEstimate is an estimate of the chain height at the
	// network's genesis time plus elapsed time, used to gauge initial
	// block download progress; it carries no consensus meaning.
	TotalBlocksEstimate() int32

	// RetargetWindow is the number of blocks between difficulty
	// retargets.
	RetargetWindow() int32

	// MedianTimeSpan is the number of ancestor timestamps whose median is
	// a block's median time past.
	MedianTimeSpan() int

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must have before it can be spent.
	CoinbaseMaturity() int32
}
