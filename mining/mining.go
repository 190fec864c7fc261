// Package mining implements the block template builder: it turns the
// current chain tip and a mempool snapshot into a candidate block whose
// only missing piece is a proof-of-work nonce. Transaction selection is
// priority-ordered and dependency-aware, mirroring the original miner's
// single-pass greedy fill.
package mining

import (
	"bytes"
	"math"

	"github.com/artea/corecoin/chainengine"
	"github.com/artea/corecoin/logger"
	"github.com/artea/corecoin/logs"
	"github.com/artea/corecoin/mempool"
	"github.com/artea/corecoin/wire"
)

var log logs.Logger

func init() {
	log, _ = logger.Get(logger.SubsystemTags.MINR)
}

// Standard block-size and signature-operation ceilings a generated block is
// held to, carried over from the original project's hardcoded limits.
const (
	MaxBlockSizeGen = 500000
	MaxBlockSigOps  = 20000

	// freeTxSizeThreshold is the cumulative block size below which a
	// transaction may be included fee-free regardless of its priority.
	freeTxSizeThreshold = 4000

	// allowFreePriority is the coin-age-per-byte threshold ("old enough,
	// big enough") above which a transaction is free-allowed even past
	// freeTxSizeThreshold: COIN * 144 / 250 in the original's units.
	allowFreePriority = 57600000
)

// Policy bounds what BuildTemplate packs into a candidate block.
type Policy struct {
	BlockMaxSize   uint32
	MaxBlockSigOps int64
	MinFeePerKB    uint64
}

// DefaultPolicy mirrors the original miner's hardcoded limits.
var DefaultPolicy = Policy{
	BlockMaxSize:   MaxBlockSizeGen,
	MaxBlockSigOps: MaxBlockSigOps,
}

// Builder produces block templates against chain's current tip, selecting
// from source's snapshot of unconfirmed transactions.
type Builder struct {
	chain  *chainengine.Engine
	source *mempool.Pool
	time   chainengine.TimeSource
	policy Policy
}

// NewBuilder constructs a Builder. time supplies the network-adjusted clock
// used for the candidate block's timestamp.
func NewBuilder(chain *chainengine.Engine, source *mempool.Pool, time chainengine.TimeSource, policy Policy) *Builder {
	return &Builder{chain: chain, source: source, time: time, policy: policy}
}

// BuildTemplate assembles a candidate block paying payScript, returning the
// block (everything but its nonce is final) and the total fees it collects.
func (b *Builder) BuildTemplate(payScript []byte, extraNonce uint64) (*wire.MsgBlock, uint64, error) {
	prev := b.chain.BestIndex()
	bits, minTimestamp := b.chain.NextBlockParams()

	timestamp := minTimestamp + 1
	if adjusted := b.time.AdjustedTime(); adjusted > timestamp {
		timestamp = adjusted
	}

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  coinbaseScriptSig(bits, extraNonce),
		Sequence:         wire.SequenceFinal,
	})
	coinbase.AddTxOut(&wire.TxOut{
		Value:    b.chain.Chain().Subsidy(prev.Height + 1),
		PkScript: payScript,
	})

	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		PrevBlock: prev.Hash,
		Timestamp: timestamp,
		Bits:      bits,
	})
	block.AddTransaction(coinbase)

	fees, err := b.fillTransactions(block, prev.Height)
	if err != nil {
		return nil, 0, err
	}

	block.Transactions[0].TxOut[0].Value += fees
	block.BuildMerkleRoot()

	log.Debugf("built block template: %d transactions, %d in fees", len(block.Transactions), fees)
	return block, fees, nil
}

// coinbaseScriptSig encodes the coinbase input's scriptSig as bits followed
// by an arbitrary extra-nonce value, the original's "bits || extraNonce"
// convention for keeping otherwise-identical coinbases distinct.
func coinbaseScriptSig(bits uint32, extraNonce uint64) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, uint64(bits))
	_ = wire.WriteVarInt(&buf, extraNonce)
	return buf.Bytes()
}
