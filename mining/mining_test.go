package mining

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chaincfg"
	"github.com/artea/corecoin/chainengine"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/dbstore/leveldbkv"
	"github.com/artea/corecoin/mempool"
	"github.com/artea/corecoin/pow"
	"github.com/artea/corecoin/wire"
)

func newTestChain(t *testing.T) *chainengine.Engine {
	t.Helper()
	db, err := leveldbkv.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	store, err := blockstore.New(filepath.Join(t.TempDir(), "blocks"))
	require.NoError(t, err)

	e, err := chainengine.New(chainengine.Config{
		Chain: chaincfg.NewRegTest(),
		Store: store,
		DB:    db,
		Time:  chainengine.SystemTimeSource{NowFunc: func() int64 { return 2000000000 }},
	})
	require.NoError(t, err)
	return e
}

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

func buildBlock(t *testing.T, chain *chainengine.Engine, parent *wire.MsgBlock, height int32, timestamp int64, coinbaseScript []byte) *wire.MsgBlock {
	t.Helper()
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  coinbaseScript,
		Sequence:         wire.SequenceFinal,
	})
	coinbase.AddTxOut(&wire.TxOut{Value: chain.Chain().Subsidy(height), PkScript: []byte{}})

	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		PrevBlock: parent.BlockHash(),
		Timestamp: timestamp,
		Bits:      parent.Header.Bits,
	})
	block.AddTransaction(coinbase)
	block.BuildMerkleRoot()
	solveBlock(t, block)
	return block
}

// matureChain mines past coinbase maturity, returning every block mined
// (genesis first) so the test can spend any of their coinbases.
func matureChain(t *testing.T, chain *chainengine.Engine) []*wire.MsgBlock {
	t.Helper()
	genesis := chain.Chain().GenesisBlock()
	chainBlocks := []*wire.MsgBlock{genesis}
	parent := genesis
	ts := genesis.Header.Timestamp
	maturity := chain.Chain().CoinbaseMaturity()
	for height := int32(1); height <= maturity; height++ {
		ts += 10
		block := buildBlock(t, chain, parent, height, ts, []byte{byte(height), byte(height >> 8)})
		require.NoError(t, chain.AcceptBlock(block))
		chainBlocks = append(chainBlocks, block)
		parent = block
	}
	return chainBlocks
}

// spendTx pads its signature script so the transaction clears the
// mempool's minimum standard size.
func spendTx(prevHash chainhash.Hash, prevIndex uint32, value uint64, pkScript []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{TxID: prevHash, Index: prevIndex},
		SignatureScript:  make([]byte, 40),
		Sequence:         wire.SequenceFinal,
	})
	tx.AddTxOut(&wire.TxOut{Value: value, PkScript: pkScript})
	return tx
}

func newTestBuilder(chain *chainengine.Engine, pool *mempool.Pool) *Builder {
	time := chainengine.SystemTimeSource{NowFunc: func() int64 { return 2000000000 }}
	return NewBuilder(chain, pool, time, DefaultPolicy)
}

func TestBuildTemplateWithEmptyMempoolIsCoinbaseOnly(t *testing.T) {
	chain := newTestChain(t)
	pool := mempool.New(chain, mempool.DefaultPolicy)
	chain.SetMemPool(pool)
	builder := newTestBuilder(chain, pool)

	block, fees, err := builder.BuildTemplate([]byte{0xAB}, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), fees)
	require.Len(t, block.Transactions, 1)
	require.Equal(t, chain.Chain().Subsidy(1), block.Transactions[0].TxOut[0].Value)
	require.Equal(t, chain.Chain().GenesisBlock().BlockHash(), block.Header.PrevBlock)
}

func TestBuildTemplateCollectsFeesIntoCoinbase(t *testing.T) {
	chain := newTestChain(t)
	blocks := matureChain(t, chain)
	pool := mempool.New(chain, mempool.DefaultPolicy)
	chain.SetMemPool(pool)
	builder := newTestBuilder(chain, pool)

	coinbase := blocks[0].Transactions[0]
	const fee = 5000
	tx := spendTx(coinbase.TxHash(), 0, coinbase.TxOut[0].Value-fee, []byte{0x01})

	_, err := pool.ProcessTransaction(tx)
	require.NoError(t, err)

	height := chain.BestIndex().Height + 1
	block, fees, err := builder.BuildTemplate([]byte{0xAB}, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(fee), fees)
	require.Len(t, block.Transactions, 2)
	require.Equal(t, tx.TxHash(), block.Transactions[1].TxHash())
	require.Equal(t, chain.Chain().Subsidy(height)+fee, block.Transactions[0].TxOut[0].Value)
}

func TestBuildTemplateOrdersByPriority(t *testing.T) {
	chain := newTestChain(t)
	blocks := matureChain(t, chain)
	pool := mempool.New(chain, mempool.DefaultPolicy)
	chain.SetMemPool(pool)
	builder := newTestBuilder(chain, pool)

	// The genesis coinbase has one more confirmation than the height-1
	// coinbase, so spending it yields strictly higher priority at equal
	// value and size: it must be selected first.
	genesisCoinbase := blocks[0].Transactions[0]
	block1Coinbase := blocks[1].Transactions[0]

	olderSpend := spendTx(genesisCoinbase.TxHash(), 0, genesisCoinbase.TxOut[0].Value, []byte{0x01})
	newerSpend := spendTx(block1Coinbase.TxHash(), 0, block1Coinbase.TxOut[0].Value, []byte{0x02})

	// Submitted in reverse priority order, so template order can only come
	// from the priority queue, not insertion order.
	_, err := pool.ProcessTransaction(newerSpend)
	require.NoError(t, err)
	_, err = pool.ProcessTransaction(olderSpend)
	require.NoError(t, err)

	block, _, err := builder.BuildTemplate([]byte{0xAB}, 1)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 3)
	require.Equal(t, olderSpend.TxHash(), block.Transactions[1].TxHash())
	require.Equal(t, newerSpend.TxHash(), block.Transactions[2].TxHash())
}
