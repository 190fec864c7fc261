package chainengine

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artea/corecoin/addrindex"
	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chaincfg"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/dbstore/leveldbkv"
	"github.com/artea/corecoin/pow"
	"github.com/artea/corecoin/wire"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := leveldbkv.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	store, err := blockstore.New(filepath.Join(t.TempDir(), "blocks"))
	require.NoError(t, err)

	e, err := New(Config{
		Chain: chaincfg.NewRegTest(),
		Store: store,
		DB:    db,
		Time:  SystemTimeSource{NowFunc: func() int64 { return 2000000000 }},
	})
	require.NoError(t, err)
	return e
}

// solveBlock mutates block's nonce until it satisfies its own proof-of-work
// target. Regtest's floor difficulty accepts roughly half of all hashes, so
// this always finds one within a handful of tries.
func solveBlock(t *testing.T, block *wire.MsgBlock) {
	t.Helper()
	target := pow.CompactToBig(block.Header.Bits)
	for nonce := uint64(0); nonce < 1000000; nonce++ {
		block.Header.Nonce = nonce
		if pow.HashToBig(block.BlockHash()).Cmp(target) <= 0 {
			return
		}
	}
	t.Fatal("failed to solve block within the nonce budget")
}

// buildBlock constructs a block extending parent with a coinbase paying
// subsidy plus any extra transactions, and solves its proof of work.
func buildBlock(t *testing.T, e *Engine, parent *wire.MsgBlock, height int32, timestamp int64, coinbaseScript []byte, extra ...*wire.MsgTx) *wire.MsgBlock {
	t.Helper()
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  coinbaseScript,
		Sequence:         wire.SequenceFinal,
	})
	coinbase.AddTxOut(&wire.TxOut{Value: e.Chain().Subsidy(height), PkScript: []byte{}})

	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		PrevBlock: parent.BlockHash(),
		Timestamp: timestamp,
		Bits:      parent.Header.Bits,
	})
	block.AddTransaction(coinbase)
	for _, tx := range extra {
		block.AddTransaction(tx)
	}
	block.BuildMerkleRoot()
	solveBlock(t, block)
	return block
}

func TestColdStartCreatesGenesis(t *testing.T) {
	e := newTestEngine(t)
	tip := e.BestIndex()
	require.Equal(t, int32(0), tip.Height)
	require.Equal(t, e.chain.GenesisBlock().BlockHash(), tip.Hash)
}

func TestAcceptBlockExtendsBestChain(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()

	parent := genesis
	ts := genesis.Header.Timestamp
	for height := int32(1); height <= 3; height++ {
		ts += 10
		block := buildBlock(t, e, parent, height, ts, []byte{byte(height)})
		require.NoError(t, e.AcceptBlock(block))
		parent = block
	}

	tip := e.BestIndex()
	require.Equal(t, int32(3), tip.Height)
	require.Equal(t, parent.BlockHash(), tip.Hash)
}

func TestAcceptBlockRejectsUnknownParent(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()
	orphanParent := buildBlock(t, e, genesis, 1, genesis.Header.Timestamp+10, []byte{0x99})
	orphan := buildBlock(t, e, orphanParent, 2, genesis.Header.Timestamp+20, []byte{0x98})

	err := e.AcceptBlock(orphan)
	require.Error(t, err)
}

func TestReorganizeSwitchesToHeavierBranch(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()
	ts := genesis.Header.Timestamp

	ts += 10
	branchA1 := buildBlock(t, e, genesis, 1, ts, []byte("A1"))
	require.NoError(t, e.AcceptBlock(branchA1))
	require.Equal(t, branchA1.BlockHash(), e.BestIndex().Hash)

	ts += 10
	branchB1 := buildBlock(t, e, genesis, 1, ts, []byte("B1"))
	require.NoError(t, e.AcceptBlock(branchB1))
	// Equal work to the current tip: branch A remains best.
	require.Equal(t, branchA1.BlockHash(), e.BestIndex().Hash)

	ts += 10
	branchB2 := buildBlock(t, e, branchB1, 2, ts, []byte("B2"))
	require.NoError(t, e.AcceptBlock(branchB2))

	tip := e.BestIndex()
	require.Equal(t, branchB2.BlockHash(), tip.Hash)
	require.Equal(t, int32(2), tip.Height)
}

func TestConnectBlockRejectsDoubleSpendWithinBlock(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()
	ts := genesis.Header.Timestamp

	// Mine past coinbase maturity so genesis's coinbase output is spendable.
	parent := genesis
	maturity := e.chain.CoinbaseMaturity()
	for height := int32(1); height <= maturity; height++ {
		ts += 10
		block := buildBlock(t, e, parent, height, ts, []byte{byte(height), byte(height >> 8)})
		require.NoError(t, e.AcceptBlock(block))
		parent = block
	}

	genesisCoinbaseHash := genesis.Transactions[0].TxHash()
	spendValue := genesis.Transactions[0].TxOut[0].Value

	spend1 := wire.NewMsgTx(1)
	spend1.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbaseHash, Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	spend1.AddTxOut(&wire.TxOut{Value: spendValue, PkScript: []byte{0x01}})

	spend2 := wire.NewMsgTx(1)
	spend2.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbaseHash, Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	spend2.AddTxOut(&wire.TxOut{Value: spendValue, PkScript: []byte{0x02}})

	ts += 10
	badBlock := buildBlock(t, e, parent, maturity+1, ts, []byte("double-spend"), spend1, spend2)

	err := e.AcceptBlock(badBlock)
	require.Error(t, err)

	tip := e.BestIndex()
	require.Equal(t, maturity, tip.Height)
}

func TestAddressIndexTracksCreditsAndDebitsAcrossDisconnect(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()
	ts := genesis.Header.Timestamp

	parent := genesis
	maturity := e.chain.CoinbaseMaturity()
	for height := int32(1); height <= maturity; height++ {
		ts += 10
		block := buildBlock(t, e, parent, height, ts, []byte{byte(height), byte(height >> 8)})
		require.NoError(t, e.AcceptBlock(block))
		parent = block
	}

	genesisCoinbase := genesis.Transactions[0]
	senderScript := genesisCoinbase.TxOut[0].PkScript
	recipientScript := []byte{0x01, 0x02, 0x03}

	spend := wire.NewMsgTx(1)
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbase.TxHash(), Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	spend.AddTxOut(&wire.TxOut{Value: genesisCoinbase.TxOut[0].Value, PkScript: recipientScript})

	ts += 10
	block := buildBlock(t, e, parent, maturity+1, ts, []byte("spend"), spend)
	require.NoError(t, e.AcceptBlock(block))

	senderAddr := chainhash.Hash160B(senderScript)
	debits, err := e.AddressDebits(senderAddr)
	require.NoError(t, err)
	require.Equal(t, []addrindex.Coin{{TxHash: genesisCoinbase.TxHash(), Index: 0}}, debits)

	recipientAddr := chainhash.Hash160B(recipientScript)
	credits, err := e.AddressCredits(recipientAddr)
	require.NoError(t, err)
	require.Equal(t, []addrindex.Coin{{TxHash: spend.TxHash(), Index: 0}}, credits)

	// A heavier competing branch reorganizes the spend out of the best
	// chain; its address-index entries must unwind with it.
	ts += 10
	competitorA := buildBlock(t, e, parent, maturity+1, ts, []byte("comp-a"))
	require.NoError(t, e.AcceptBlock(competitorA))
	ts += 10
	competitorB := buildBlock(t, e, competitorA, maturity+2, ts, []byte("comp-b"))
	require.NoError(t, e.AcceptBlock(competitorB))

	require.Equal(t, competitorB.BlockHash(), e.BestIndex().Hash)

	debits, err = e.AddressDebits(senderAddr)
	require.NoError(t, err)
	require.Empty(t, debits)

	credits, err = e.AddressCredits(recipientAddr)
	require.NoError(t, err)
	require.Empty(t, credits)
}

// TestReorganizeRollsBackEntirelyOnMidReorgFailure constructs a reorg whose
// second connected block can only be rejected because the first connected
// block's spend is already visible — which is only true if both blocks'
// writes landed in the same uncommitted transaction. It then checks that the
// whole attempt left no trace: best chain, tx index, and address index are
// exactly as they were before the reorg was attempted.
func TestReorganizeRollsBackEntirelyOnMidReorgFailure(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()
	ts := genesis.Header.Timestamp

	parent := genesis
	maturity := e.chain.CoinbaseMaturity()
	for height := int32(1); height <= maturity; height++ {
		ts += 10
		block := buildBlock(t, e, parent, height, ts, []byte{byte(height), byte(height >> 8)})
		require.NoError(t, e.AcceptBlock(block))
		parent = block
	}

	genesisCoinbase := genesis.Transactions[0]
	recipientScript := []byte{0x01, 0x02, 0x03}

	// Branch A is a plain block with no spends; it stays the best chain
	// until branch B's second block gives B more cumulative work.
	tsA := ts + 10
	branchA := buildBlock(t, e, parent, maturity+1, tsA, []byte("branch-a"))
	require.NoError(t, e.AcceptBlock(branchA))
	require.Equal(t, branchA.BlockHash(), e.BestIndex().Hash)

	// branchB1 spends genesis's coinbase output. Ties branch A on work, so
	// it is only added to the index, never connected.
	tsB1 := ts + 20
	b1Spend := wire.NewMsgTx(1)
	b1Spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbase.TxHash(), Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	b1Spend.AddTxOut(&wire.TxOut{Value: genesisCoinbase.TxOut[0].Value, PkScript: recipientScript})
	branchB1 := buildBlock(t, e, parent, maturity+1, tsB1, []byte("branch-b1"), b1Spend)
	require.NoError(t, e.AcceptBlock(branchB1))
	require.Equal(t, branchA.BlockHash(), e.BestIndex().Hash)

	// branchB2 spends the same genesis coinbase output a second time.
	// Outside of a reorg it would never reach the point of detecting this:
	// it only conflicts with branchB1's spend, which wasn't its own best
	// chain. Connecting it surfaces the conflict only because reorganize
	// connects branchB1 first, within the same transaction branchB2's
	// connect reads from.
	tsB2 := tsB1 + 10
	b2Spend := wire.NewMsgTx(1)
	b2Spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbase.TxHash(), Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	b2Spend.AddTxOut(&wire.TxOut{Value: genesisCoinbase.TxOut[0].Value, PkScript: []byte{0x09}})
	branchB2 := buildBlock(t, e, branchB1, maturity+2, tsB2, []byte("branch-b2"), b2Spend)

	err := e.AcceptBlock(branchB2)
	require.Error(t, err)
	require.True(t, chainerr.Is(err, chainerr.KindDoubleSpend))

	// The failed reorg must not have moved the best chain...
	tip := e.BestIndex()
	require.Equal(t, branchA.BlockHash(), tip.Hash)
	require.Equal(t, maturity+1, tip.Height)

	// ...nor left any of branchB1's writes committed: its credit to
	// recipientScript must not exist,
	recipientAddr := chainhash.Hash160B(recipientScript)
	credits, err := e.AddressCredits(recipientAddr)
	require.NoError(t, err)
	require.Empty(t, credits)

	// and genesis's coinbase output must still be spendable exactly once,
	// from branch A's tip, proving it was never left marked spent by the
	// rolled-back attempt.
	spend := wire.NewMsgTx(1)
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbase.TxHash(), Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	spend.AddTxOut(&wire.TxOut{Value: genesisCoinbase.TxOut[0].Value, PkScript: []byte{0x0a}})
	confirmBlock := buildBlock(t, e, branchA, maturity+2, tsB2+10, []byte("confirm"), spend)
	require.NoError(t, e.AcceptBlock(confirmBlock))
	require.Equal(t, confirmBlock.BlockHash(), e.BestIndex().Hash)
}

func TestConnectBlockAcceptsMaturedSpend(t *testing.T) {
	e := newTestEngine(t)
	genesis := e.chain.GenesisBlock()
	ts := genesis.Header.Timestamp

	parent := genesis
	maturity := e.chain.CoinbaseMaturity()
	for height := int32(1); height <= maturity; height++ {
		ts += 10
		block := buildBlock(t, e, parent, height, ts, []byte{byte(height), byte(height >> 8)})
		require.NoError(t, e.AcceptBlock(block))
		parent = block
	}

	genesisCoinbaseHash := genesis.Transactions[0].TxHash()
	spendValue := genesis.Transactions[0].TxOut[0].Value

	spend := wire.NewMsgTx(1)
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: genesisCoinbaseHash, Index: 0},
		Sequence:         wire.SequenceFinal,
	})
	spend.AddTxOut(&wire.TxOut{Value: spendValue, PkScript: []byte{0x01}})

	ts += 10
	block := buildBlock(t, e, parent, maturity+1, ts, []byte("spend"), spend)
	require.NoError(t, e.AcceptBlock(block))

	tip := e.BestIndex()
	require.Equal(t, maturity+1, tip.Height)
	require.Equal(t, block.BlockHash(), tip.Hash)
}
