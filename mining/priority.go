package mining

import (
	"container/heap"

	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/txindex"
	"github.com/artea/corecoin/wire"
)

// txPrioItem pairs a mempool transaction with its computed priority and the
// set of same-round dependencies (other mempool transactions it spends that
// have not yet been included in this template) it is still waiting on.
// Mirrors the original miner's COrphan bookkeeping.
type txPrioItem struct {
	tx        *wire.MsgTx
	priority  float64
	dependsOn map[chainhash.Hash]struct{}
}

// txPriorityQueue orders ready transactions highest-priority first.
type txPriorityQueue []*txPrioItem

func (pq txPriorityQueue) Len() int           { return len(pq) }
func (pq txPriorityQueue) Less(i, j int) bool { return pq[i].priority > pq[j].priority }
func (pq txPriorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }

func (pq *txPriorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*txPrioItem))
}

func (pq *txPriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// minFeeForSize mirrors the mempool's own per-kB relay floor: one unit of
// perKB for every whole kilobyte of size, plus one.
func minFeeForSize(size int, perKB uint64) uint64 {
	return (uint64(size)/1000 + 1) * perKB
}

// fillTransactions selects mempool transactions by priority into block,
// skipping any that would blow the size, sigop, or fee floor, and promoting
// same-round dependents once their parent is included. It returns the total
// fees collected.
func (b *Builder) fillTransactions(block *wire.MsgBlock, prevHeight int32) (uint64, error) {
	descs := b.source.MiningDescs()

	dependers := make(map[chainhash.Hash][]*txPrioItem)
	pq := &txPriorityQueue{}
	heap.Init(pq)

	for _, desc := range descs {
		tx := desc.Tx
		if tx.IsCoinBase() {
			continue
		}
		if !tx.IsFinal(prevHeight+1, block.Header.Timestamp) {
			continue
		}

		item := &txPrioItem{tx: tx, dependsOn: make(map[chainhash.Hash]struct{})}
		var priorityNumerator float64
		for _, in := range tx.TxIn {
			value, confirmations, found, err := b.chain.PriorityInput(in.PreviousOutPoint)
			if err != nil {
				return 0, err
			}
			if !found {
				// Waits on a same-round parent still in the mempool
				// snapshot that hasn't been selected yet.
				item.dependsOn[in.PreviousOutPoint.TxID] = struct{}{}
				dependers[in.PreviousOutPoint.TxID] = append(dependers[in.PreviousOutPoint.TxID], item)
				continue
			}
			priorityNumerator += float64(value) * float64(confirmations)
		}
		item.priority = priorityNumerator / float64(tx.SerializeSize())

		if len(item.dependsOn) == 0 {
			heap.Push(pq, item)
		}
	}

	scratch := make(txindex.ScratchPool)
	txByHash := make(map[chainhash.Hash]*wire.MsgTx)
	var fees uint64
	blockSize := uint32(1000)
	blockSigOps := int64(100)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*txPrioItem)
		tx := item.tx
		hash := tx.TxHash()

		txSize := uint32(tx.SerializeSize())
		if blockSize+txSize >= b.policy.BlockMaxSize {
			continue
		}
		txSigOps := tx.SigOpCount()
		if blockSigOps+txSigOps >= b.policy.MaxBlockSigOps {
			continue
		}

		allowFree := blockSize+txSize < freeTxSizeThreshold || item.priority > allowFreePriority
		var minFee uint64
		if !allowFree {
			minFee = minFeeForSize(int(txSize), b.policy.MinFeePerKB)
		}

		fee, err := b.chain.ConnectInputsReadOnly(tx, scratch, txByHash, minFee)
		if err != nil {
			log.Tracef("skipping tx %s: %v", hash, err)
			continue
		}

		txByHash[hash] = tx
		block.AddTransaction(tx)
		blockSize += txSize
		blockSigOps += txSigOps
		fees += fee

		for _, depender := range dependers[hash] {
			delete(depender.dependsOn, hash)
			if len(depender.dependsOn) == 0 {
				heap.Push(pq, depender)
			}
		}
	}

	return fees, nil
}
