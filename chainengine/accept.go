package chainengine

import (
	"github.com/artea/corecoin/blockindex"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/pow"
	"github.com/artea/corecoin/wire"
)

// commitEveryNBlocks is the initial-block-download commit cadence: every
// nth block's write is flushed even though the engine would otherwise defer
// the fsync until it is no longer in initial download.
const commitEveryNBlocks = 500

// AcceptBlock is the entry point for a block from any source (a peer, or
// the local miner). It validates block against consensus rules, persists
// it, and extends or reorganizes the best chain as its cumulative work
// warrants.
func (e *Engine) AcceptBlock(block *wire.MsgBlock) error {
	e.mu.Lock()
	err := e.acceptBlockLocked(block)
	connects, disconnects := e.pendingConnect, e.pendingDisconnect
	e.pendingConnect, e.pendingDisconnect = nil, nil
	e.mu.Unlock()

	// The mempool's own admission check re-enters the engine for a read
	// lock, so its notifications must run after the write lock above is
	// released.
	for _, b := range disconnects {
		if notifyErr := e.mempool.OnDisconnected(b); notifyErr != nil {
			log.Warnf("failed to resurrect disconnected block's transactions into mempool: %v", notifyErr)
		}
	}
	for _, b := range connects {
		if notifyErr := e.mempool.OnConnected(b); notifyErr != nil {
			log.Warnf("failed to evict confirmed transactions from mempool: %v", notifyErr)
		}
	}

	if err != nil {
		return err
	}

	if e.callbacks.OnBlockAccepted != nil {
		e.callbacks.OnBlockAccepted(block)
	}
	return nil
}

func (e *Engine) acceptBlockLocked(block *wire.MsgBlock) error {
	hash := block.BlockHash()

	if e.index.Has(hash) {
		return chainerr.New(chainerr.KindDuplicate, "block %s already known", hash)
	}

	parentHandle, ok := e.index.Lookup(block.Header.PrevBlock)
	if !ok {
		return chainerr.New(chainerr.KindUnknownParent, "block %s has unknown parent %s", hash, block.Header.PrevBlock)
	}
	parent := e.index.Node(parentHandle)

	firstTimestamp := e.retargetWindowStart(parentHandle)
	requiredBits := e.chain.NextWorkRequired(parent.Height, parent.Bits, parent.Timestamp, firstTimestamp)
	if block.Header.Bits != requiredBits {
		return chainerr.New(chainerr.KindBadProofOfWork, "block %s has bits %08x, want %08x", hash, block.Header.Bits, requiredBits)
	}

	target := pow.CompactToBig(block.Header.Bits)
	if target.Sign() <= 0 || target.Cmp(e.chain.ProofOfWorkLimit()) > 0 {
		return chainerr.New(chainerr.KindBadProofOfWork, "block %s target %064x is outside the allowed range", hash, target)
	}
	if pow.HashToBig(hash).Cmp(target) > 0 {
		return chainerr.New(chainerr.KindBadProofOfWork, "block %s hash is higher than its claimed target", hash)
	}

	medianTimePast := e.index.MedianTimePast(parentHandle, e.chain.MedianTimeSpan())
	if block.Header.Timestamp <= medianTimePast {
		return chainerr.New(chainerr.KindBadTimestamp, "block %s timestamp %d is not after median time past %d", hash, block.Header.Timestamp, medianTimePast)
	}

	childHeight := parent.Height + 1
	for _, tx := range block.Transactions {
		if !tx.IsFinal(childHeight, block.Header.Timestamp) {
			return chainerr.New(chainerr.KindNonFinal, "block %s contains a non-final transaction %s", hash, tx.TxHash())
		}
	}

	if checkpointHash, has := e.chain.CheckPoint(childHeight); has && checkpointHash != hash {
		return chainerr.New(chainerr.KindBadCheckpoint, "block %s at height %d conflicts with checkpoint %s", hash, childHeight, checkpointHash)
	}

	if ok, err := e.store.CheckDiskSpace(uint32(block.SerializeSize())); err != nil {
		return err
	} else if !ok {
		return chainerr.New(chainerr.KindDiskSpace, "insufficient disk space to accept block %s", hash)
	}

	commit := !e.initialDownload || childHeight%commitEveryNBlocks == 0
	pos, err := e.store.WriteToDisk(block, commit)
	if err != nil {
		return err
	}

	return e.addToBlockIndex(block, parentHandle, pos)
}

// retargetWindowStart returns the timestamp of the block at the start of
// the retarget window containing parentHandle itself, which is the window
// parentHandle's child closes when the child lands on a retarget boundary.
func (e *Engine) retargetWindowStart(parentHandle blockindex.Handle) int64 {
	parent := e.index.Node(parentHandle)
	window := e.chain.RetargetWindow()
	windowStartHeight := (parent.Height / window) * window
	if h, ok := e.index.AncestorAtHeight(parentHandle, windowStartHeight); ok {
		return e.index.Node(h).Timestamp
	}
	return parent.Timestamp
}
