package chainengine

import (
	"github.com/artea/corecoin/blockindex"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/database"
	"github.com/artea/corecoin/wire"
)

// reorganizePlan holds the in-memory bookkeeping reorganize computed while
// writing through the caller's transaction. It is only applied once that
// transaction durably commits, so a failed or rolled-back reorganize leaves
// the in-memory index exactly as it found it.
type reorganizePlan struct {
	disconnect         []blockindex.Handle
	connect            []blockindex.Handle
	disconnectedBlocks []*wire.MsgBlock
	connectedBlocks    []*wire.MsgBlock
}

// reorganize switches the best chain from the current tip onto the branch
// through newHandle: it disconnects every block back to their common
// ancestor, then connects every block of the new branch in order, then
// writes the new best-chain pointer — all through accessor, the caller's
// single best-chain transaction, so a failure partway through (a disk error
// connecting the third of five blocks, say) leaves every write of this
// reorganize uncommitted rather than wedging the persisted tx/address index
// between the old and new chains.
func (e *Engine) reorganize(accessor database.DataAccessor, block *wire.MsgBlock, newHandle blockindex.Handle) (*reorganizePlan, error) {
	fork := e.index.CommonAncestor(e.bestHandle, newHandle)

	disconnect := e.index.PathToAncestor(e.bestHandle, fork)
	connect := e.index.PathToAncestor(newHandle, fork)
	reverse(connect)

	disconnectedBlocks := make([]*wire.MsgBlock, len(disconnect))
	for i, h := range disconnect {
		oldBlock, err := e.store.ReadFromDisk(e.index.Node(h).DiskPos)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.KindIOError, err, "reorganize: failed to read disconnected block")
		}
		if err := e.disconnectBlock(accessor, oldBlock, h); err != nil {
			return nil, err
		}
		disconnectedBlocks[i] = oldBlock
	}

	connectedBlocks := make([]*wire.MsgBlock, len(connect))
	for i, h := range connect {
		var (
			newBlock *wire.MsgBlock
			err      error
		)
		if h == newHandle {
			newBlock = block
		} else {
			newBlock, err = e.store.ReadFromDisk(e.index.Node(h).DiskPos)
			if err != nil {
				return nil, chainerr.Wrap(chainerr.KindIOError, err, "reorganize: failed to read connected block")
			}
		}
		if err := e.connectBlock(accessor, newBlock, h); err != nil {
			return nil, err
		}
		connectedBlocks[i] = newBlock
	}

	if err := persistBestChain(accessor, e.index.Node(newHandle).Hash); err != nil {
		return nil, err
	}

	return &reorganizePlan{
		disconnect:         disconnect,
		connect:            connect,
		disconnectedBlocks: disconnectedBlocks,
		connectedBlocks:    connectedBlocks,
	}, nil
}

// applyReorganizePlan carries out the in-memory bookkeeping a successful
// reorganize computed, once its transaction has durably committed.
func (e *Engine) applyReorganizePlan(plan *reorganizePlan) {
	for _, h := range plan.disconnect {
		if parent := e.index.Node(h).Parent; parent != blockindex.NoHandle {
			e.index.SetNext(parent, blockindex.NoHandle)
		}
	}
	for _, h := range plan.connect {
		if parent := e.index.Node(h).Parent; parent != blockindex.NoHandle {
			e.index.SetNext(parent, h)
		}
	}

	e.pendingDisconnect = append(e.pendingDisconnect, plan.disconnectedBlocks...)
	e.pendingConnect = append(e.pendingConnect, plan.connectedBlocks...)
}

func reverse(handles []blockindex.Handle) {
	for i, j := 0, len(handles)-1; i < j; i, j = i+1, j-1 {
		handles[i], handles[j] = handles[j], handles[i]
	}
}
