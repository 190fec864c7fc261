package chaincfg

import (
	"math/big"

	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/wire"
)

// bigOne is 1 represented as a big.Int, reused to avoid rebuilding it.
var bigOne = big.NewInt(1)

// regtestPowLimit is 2^255 - 1: the easiest possible regtest target.
var regtestPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

// CoinUnit is the number of base units ("satoshis") in one coin.
const CoinUnit = 100000000

// initialSubsidy is the block reward before any halving.
const initialSubsidy = 50 * CoinUnit

// subsidyHalvingInterval is the number of blocks between reward halvings.
const subsidyHalvingInterval = 210000

// RegTest is a low-difficulty network with no retargeting, intended for
// tests and local development, mirroring Bitcoin's own regtest network.
type RegTest struct {
	genesis *wire.MsgBlock
}

// NewRegTest builds the regtest parameters, constructing its genesis block
// from a fixed coinbase and timestamp so the hash is deterministic across
// runs.
func NewRegTest() *RegTest {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte("the regtest genesis coinbase"),
		Sequence:         wire.SequenceFinal,
	})
	coinbase.AddTxOut(&wire.TxOut{Value: initialSubsidy, PkScript: []byte{}})

	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		PrevBlock: chainhash.ZeroHash,
		Timestamp: 1296688602,
		Bits:      0x207fffff,
		Nonce:     2,
	})
	block.AddTransaction(coinbase)
	block.BuildMerkleRoot()

	return &RegTest{genesis: block}
}

// DataDirSuffix implements Chain.
func (r *RegTest) DataDirSuffix() string { return "regtest" }

// GenesisBlock implements Chain.
func (r *RegTest) GenesisBlock() *wire.MsgBlock { return r.genesis }

// NetworkID implements Chain.
func (r *RegTest) NetworkID() byte { return 0x6f }

// ProofOfWorkLimit implements Chain.
func (r *RegTest) ProofOfWorkLimit() *big.Int { return regtestPowLimit }

// NextWorkRequired implements Chain. Regtest never retargets: every block
// is mined at the network's fixed floor difficulty.
func (r *RegTest) NextWorkRequired(tipHeight int32, tipBits uint32, tipTimestamp, firstBlockTimestampInWindow int64) uint32 {
	return r.genesis.Header.Bits
}

// Subsidy implements Chain: a halving schedule identical in shape to
// Bitcoin's, just with regtest's faster block target in practice.
func (r *RegTest) Subsidy(height int32) uint64 {
	halvings := uint(height / subsidyHalvingInterval)
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> halvings
}

// IsStandard implements Chain: regtest accepts any well-formed transaction.
func (r *RegTest) IsStandard(tx *wire.MsgTx) bool {
	return true
}

// CheckPoint implements Chain: regtest pins no checkpoints.
func (r *RegTest) CheckPoint(height int32) (chainhash.Hash, bool) {
	return chainhash.ZeroHash, false
}

// TotalBlocksEstimate implements Chain.
func (r *RegTest) TotalBlocksEstimate() int32 { return 0 }

// RetargetWindow implements Chain.
func (r *RegTest) RetargetWindow() int32 { return 2016 }

// MedianTimeSpan implements Chain.
func (r *RegTest) MedianTimeSpan() int { return 11 }

// CoinbaseMaturity implements Chain.
func (r *RegTest) CoinbaseMaturity() int32 { return 100 }
