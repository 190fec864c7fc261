package chainengine

import (
	"fmt"
	"math/big"

	"github.com/artea/corecoin/addrindex"
	"github.com/artea/corecoin/blockindex"
	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/database"
	"github.com/artea/corecoin/txindex"
	"github.com/artea/corecoin/wire"
)

// addToBlockIndex inserts block into the in-memory index as a child of
// parentHandle, persists its own index record, and extends or reorganizes
// the best chain if the new node's cumulative work now exceeds it.
func (e *Engine) addToBlockIndex(block *wire.MsgBlock, parentHandle blockindex.Handle, pos blockstore.DiskPos) error {
	h := e.index.Add(&block.Header, parentHandle, pos)
	node := e.index.Node(h)

	if err := e.persistIndexRecord(node); err != nil {
		return err
	}

	if node.CumulativeWork.Cmp(e.bestChainWork) > 0 {
		if err := e.setBestChain(block, h); err != nil {
			if node.CumulativeWork.Cmp(e.bestInvalidWork) > 0 {
				e.bestInvalidWork.Set(node.CumulativeWork)
			}
			log.Warnf("invalid chain found: block %s height %d work %s: %v", node.Hash, node.Height, node.CumulativeWork, err)
			return err
		}
	}

	return nil
}

func (e *Engine) persistIndexRecord(node *blockindex.Node) error {
	tx, err := e.db.Begin()
	if err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to begin block index transaction")
	}
	rec := recordFromNode(node, e.index)
	raw, err := serializeRecord(rec)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Put(blockIndexKey(node.Hash), raw); err != nil {
		tx.Rollback()
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to persist block index record")
	}
	if err := tx.Commit(); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to commit block index transaction")
	}
	return nil
}

// persistHashNext rewrites parentHandle's on-disk record with a new forward
// link, through accessor so the write joins the caller's single best-chain
// transaction rather than committing on its own.
func (e *Engine) persistHashNext(accessor database.DataAccessor, parentHandle blockindex.Handle, childHash chainhash.Hash) error {
	parent := e.index.Node(parentHandle)
	rec := recordFromNode(parent, e.index)
	rec.HashNext = childHash
	raw, err := serializeRecord(rec)
	if err != nil {
		return err
	}
	if err := accessor.Put(blockIndexKey(parent.Hash), raw); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to persist block index record")
	}
	return nil
}

// persistBestChain writes the best-chain pointer through accessor, joining
// whatever transaction the caller is already accumulating writes in.
func persistBestChain(accessor database.DataAccessor, hash chainhash.Hash) error {
	if err := accessor.Put(bestChainKey, hash.CloneBytes()); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to persist best chain pointer")
	}
	return nil
}

// setBestChain either extends the current best chain by one block, or, when
// block's parent is not the current tip, reorganizes onto the branch
// through newHandle. Every key-value write this entails — connectBlock's (or
// the reorganize's disconnect-then-connect sequence's) tx index and address
// index updates, plus the final best-chain pointer — happens within one
// database transaction, committed once at the end. Any failure rolls the
// transaction back in full, leaving the persisted best chain and indices
// exactly as they were; the in-memory index is only mutated after a
// successful commit.
func (e *Engine) setBestChain(block *wire.MsgBlock, newHandle blockindex.Handle) error {
	newNode := e.index.Node(newHandle)

	dbTx, err := e.db.Begin()
	if err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to begin best chain transaction")
	}

	extending := newNode.Parent != blockindex.NoHandle && e.index.Node(newNode.Parent).Hash == e.index.Node(e.bestHandle).Hash

	var plan *reorganizePlan
	if extending {
		if err := e.connectBlock(dbTx, block, newHandle); err != nil {
			dbTx.Rollback()
			return err
		}
		if err := persistBestChain(dbTx, newNode.Hash); err != nil {
			dbTx.Rollback()
			return err
		}
	} else {
		plan, err = e.reorganize(dbTx, block, newHandle)
		if err != nil {
			dbTx.Rollback()
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to commit best chain transaction")
	}

	if extending {
		e.index.SetNext(newNode.Parent, newHandle)
		e.pendingConnect = append(e.pendingConnect, block)
	} else {
		e.applyReorganizePlan(plan)
	}

	e.bestHandle = newHandle
	e.bestChainWork = new(big.Int).Set(newNode.CumulativeWork)
	e.bestReceivedTime = block.Header.Timestamp
	e.transactionsUpdated++
	if e.callbacks.OnBestChainChanged != nil {
		e.callbacks.OnBestChainChanged(newNode)
	}
	return nil
}

// connectBlock runs connectInputs over every transaction in block, persists
// the resulting tx index and address index changes through accessor, and
// checks the coinbase doesn't pay out more than the subsidy plus collected
// fees. accessor is the caller's single best-chain transaction: nothing
// here commits on its own.
func (e *Engine) connectBlock(accessor database.DataAccessor, block *wire.MsgBlock, handle blockindex.Handle) error {
	node := e.index.Node(handle)

	locations, err := block.TxLocations()
	if err != nil {
		return chainerr.Wrap(chainerr.KindIOError, err, "connect block: failed to compute transaction locations")
	}

	parentHeight := int32(-1)
	if node.Parent != blockindex.NoHandle {
		parentHeight = e.index.Node(node.Parent).Height
	}

	pool := make(txindex.ScratchPool)
	var fees uint64
	var credits, debits []addrEntry
	for i, tx := range block.Transactions {
		posThisTx := blockstore.TxDiskPos{
			File:     node.DiskPos.File,
			BlockPos: node.DiskPos.Offset,
			TxOffset: node.DiskPos.Offset + 8 + uint32(locations[i].TxStart),
		}
		ctx := &ConnectContext{
			Pool:      pool,
			Accessor:  accessor,
			TipHeight: parentHeight,
			AsBlock:   true,
		}
		if err := e.connectInputs(ctx, tx, posThisTx, &fees); err != nil {
			return err
		}
		credits = append(credits, ctx.Credits...)
		debits = append(debits, ctx.Debits...)
	}

	for hash, entry := range pool {
		if err := txindex.Put(accessor, hash, entry); err != nil {
			return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "connect block: failed to persist tx index entry")
		}
	}

	for _, c := range credits {
		if err := addrindex.AddCredit(accessor, c.Addr, c.Coin); err != nil {
			return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "connect block: failed to persist address credit")
		}
	}
	for _, d := range debits {
		if err := addrindex.AddDebit(accessor, d.Addr, d.Coin); err != nil {
			return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "connect block: failed to persist address debit")
		}
	}

	coinbaseOut := sumOutputs(block.Transactions[0])
	subsidy := e.chain.Subsidy(node.Height)
	if coinbaseOut > subsidy+fees {
		return chainerr.New(chainerr.KindBadTransaction, "connect block: coinbase pays %d, subsidy+fees is %d", coinbaseOut, subsidy+fees)
	}

	if node.Parent != blockindex.NoHandle {
		if err := e.persistHashNext(accessor, node.Parent, node.Hash); err != nil {
			return err
		}
	}

	return nil
}

// disconnectBlock relinquishes every input spent by block, in reverse
// transaction order, and clears the forward link on its parent's record, all
// through accessor — the caller's single best-chain transaction.
func (e *Engine) disconnectBlock(accessor database.DataAccessor, block *wire.MsgBlock, handle blockindex.Handle) error {
	node := e.index.Node(handle)

	for i := len(block.Transactions) - 1; i >= 0; i-- {
		if err := e.disconnectInputs(accessor, block.Transactions[i]); err != nil {
			return err
		}
	}

	if node.Parent != blockindex.NoHandle {
		if err := e.persistHashNext(accessor, node.Parent, chainhash.Hash{}); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) disconnectInputs(accessor database.DataAccessor, tx *wire.MsgTx) error {
	if !tx.IsCoinBase() {
		for _, in := range tx.TxIn {
			entry, ok, err := txindex.Get(accessor, in.PreviousOutPoint.TxID)
			if err != nil {
				return chainerr.Wrap(chainerr.KindIOError, err, "disconnect inputs: failed to read tx index entry")
			}
			if !ok {
				return chainerr.New(chainerr.KindIOError, "disconnect inputs: tx index entry for %s not found", in.PreviousOutPoint.TxID)
			}
			entry.ClearSpent(in.PreviousOutPoint.Index)
			if err := txindex.Put(accessor, in.PreviousOutPoint.TxID, entry); err != nil {
				return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "disconnect inputs: failed to persist tx index entry")
			}

			prevTx, err := e.store.ReadTxFromDisk(entry.Pos)
			if err != nil {
				return chainerr.Wrap(chainerr.KindIOError, err, "disconnect inputs: failed to read prev tx from disk")
			}
			addr := chainhash.Hash160B(prevTx.TxOut[in.PreviousOutPoint.Index].PkScript)
			coin := addrindex.Coin{TxHash: in.PreviousOutPoint.TxID, Index: in.PreviousOutPoint.Index}
			if err := addrindex.RemoveDebit(accessor, addr, coin); err != nil {
				return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "disconnect inputs: failed to revert address debit")
			}
		}
	}

	txHash := tx.TxHash()
	for i, out := range tx.TxOut {
		addr := chainhash.Hash160B(out.PkScript)
		coin := addrindex.Coin{TxHash: txHash, Index: uint32(i)}
		if err := addrindex.RemoveCredit(accessor, addr, coin); err != nil {
			return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "disconnect inputs: failed to revert address credit")
		}
	}

	return txindex.Delete(accessor, txHash)
}

func sumOutputs(tx *wire.MsgTx) uint64 {
	var total uint64
	for _, out := range tx.TxOut {
		total += out.Value
	}
	return total
}

// ConnectContext carries connectInputs' dependencies beyond the transaction
// itself: the scratch pool overlaying uncommitted tx index changes, an
// optional lookup for transactions not yet durably persisted (the rest of
// the block being connected, or a mempool/template's pending set), the tip
// height the coinbase maturity check is measured against, and whether this
// is a block validation (fatal on any problem) or a miner/mempool trial run
// (some failures, like an unavailable input, are simply reported back to
// the caller to act on rather than being an invariant violation).
type ConnectContext struct {
	Pool      txindex.ScratchPool
	TxByHash  map[chainhash.Hash]*wire.MsgTx
	TipHeight int32
	AsBlock   bool
	AsMiner   bool
	MinFee    uint64

	// Accessor is where Pool misses fall through to read a tx index entry
	// from. A real block connect passes its single best-chain transaction
	// here; a mempool/template trial run passes the database directly,
	// since it never writes through this accessor at all.
	Accessor database.DataAccessor

	// Credits and Debits accumulate address-index updates as connectInputs
	// walks a block's transactions; connectBlock persists them once the
	// whole block has validated. Left nil outside of a real block connect,
	// since the mempool/template dry run never touches the address index.
	Credits []addrEntry
	Debits  []addrEntry
}

// addrEntry pairs an output-script digest with the coin that credited or
// debited it.
type addrEntry struct {
	Addr chainhash.Hash160
	Coin addrindex.Coin
}

// connectInputs implements the shared validate-and-spend step used by block
// connection, mempool admission, and template assembly: it resolves each
// input's previous output, checks coinbase maturity, verifies the spending
// signature, rejects a double spend, and tallies the transaction's fee.
func (e *Engine) connectInputs(ctx *ConnectContext, tx *wire.MsgTx, posThisTx blockstore.TxDiskPos, fees *uint64) error {
	var valueOut uint64
	for _, out := range tx.TxOut {
		if !wire.MoneyRange(out.Value) {
			return chainerr.New(chainerr.KindBadTransaction, "connect inputs: %s output value %d out of range", tx.TxHash(), out.Value)
		}
		valueOut += out.Value
		if !wire.MoneyRange(valueOut) {
			return chainerr.New(chainerr.KindBadTransaction, "connect inputs: %s total output value out of range", tx.TxHash())
		}
	}

	if !tx.IsCoinBase() {
		var valueIn uint64
		for i, in := range tx.TxIn {
			prevHash := in.PreviousOutPoint.TxID

			entry, found, err := txindex.Resolve(ctx.Pool, ctx.Accessor, prevHash)
			if err != nil {
				return chainerr.Wrap(chainerr.KindIOError, err, "connect inputs: failed to read tx index entry")
			}
			if !found {
				return chainerr.New(chainerr.KindInputsUnavailable, "connect inputs: %s prev tx %s index entry not found", tx.TxHash(), prevHash)
			}

			prevTx, ok := ctx.TxByHash[prevHash]
			if !ok {
				prevTx, err = e.store.ReadTxFromDisk(entry.Pos)
				if err != nil {
					return chainerr.Wrap(chainerr.KindIOError, err, fmt.Sprintf("connect inputs: failed to read prev tx %s from disk", prevHash))
				}
			}

			if in.PreviousOutPoint.Index >= uint32(len(prevTx.TxOut)) || int(in.PreviousOutPoint.Index) >= len(entry.Spent) {
				return chainerr.New(chainerr.KindBadTransaction, "connect inputs: %s references out-of-range output %d of %s", tx.TxHash(), in.PreviousOutPoint.Index, prevHash)
			}

			if prevTx.IsCoinBase() {
				if ctx.TipHeight+1-entry.Height < e.chain.CoinbaseMaturity() {
					return chainerr.New(chainerr.KindBadTransaction, "connect inputs: %s tried to spend immature coinbase %s", tx.TxHash(), prevHash)
				}
			}

			if !e.verifier.Verify(prevTx, tx, i) {
				return chainerr.New(chainerr.KindScriptVerifyFailed, "connect inputs: %s signature verification failed for input %d", tx.TxHash(), i)
			}

			if entry.IsSpent(in.PreviousOutPoint.Index) {
				return chainerr.New(chainerr.KindDoubleSpend, "connect inputs: %s prev output %s already spent", tx.TxHash(), in.PreviousOutPoint)
			}

			outValue := prevTx.TxOut[in.PreviousOutPoint.Index].Value
			valueIn += outValue
			if !wire.MoneyRange(outValue) || !wire.MoneyRange(valueIn) {
				return chainerr.New(chainerr.KindBadTransaction, "connect inputs: %s input value out of range", tx.TxHash())
			}

			if err := entry.MarkSpent(in.PreviousOutPoint.Index, posThisTx); err != nil {
				return err
			}
			ctx.Pool[prevHash] = entry

			if ctx.AsBlock {
				addr := chainhash.Hash160B(prevTx.TxOut[in.PreviousOutPoint.Index].PkScript)
				ctx.Debits = append(ctx.Debits, addrEntry{Addr: addr, Coin: addrindex.Coin{TxHash: prevHash, Index: in.PreviousOutPoint.Index}})
			}
		}

		if valueIn < valueOut {
			return chainerr.New(chainerr.KindBadTransaction, "connect inputs: %s value in %d < value out %d", tx.TxHash(), valueIn, valueOut)
		}
		txFee := valueIn - valueOut
		if ctx.AsMiner && txFee < ctx.MinFee {
			return chainerr.New(chainerr.KindFeeTooLow, "connect inputs: %s fee %d below minimum %d", tx.TxHash(), txFee, ctx.MinFee)
		}
		*fees += txFee
		if !wire.MoneyRange(*fees) {
			return chainerr.New(chainerr.KindBadTransaction, "connect inputs: accumulated fees out of range")
		}
	}

	if ctx.AsBlock || ctx.AsMiner {
		ctx.Pool[tx.TxHash()] = txindex.NewEntry(posThisTx, ctx.TipHeight+1, len(tx.TxOut))
	}

	if ctx.AsBlock {
		txHash := tx.TxHash()
		for i, out := range tx.TxOut {
			addr := chainhash.Hash160B(out.PkScript)
			ctx.Credits = append(ctx.Credits, addrEntry{Addr: addr, Coin: addrindex.Coin{TxHash: txHash, Index: uint32(i)}})
		}
	}

	return nil
}

// ConnectInputsReadOnly runs connectInputs against the current best chain
// tip without persisting anything, for the mempool's admission check and
// the template builder's candidate selection. pool and txByHash are the
// caller's own scratch state, carried across repeated calls within one
// batch so later transactions observe earlier ones' spends.
func (e *Engine) ConnectInputsReadOnly(tx *wire.MsgTx, pool txindex.ScratchPool, txByHash map[chainhash.Hash]*wire.MsgTx, minFee uint64) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tip := e.index.Node(e.bestHandle)
	ctx := &ConnectContext{
		Pool:      pool,
		Accessor:  e.db,
		TxByHash:  txByHash,
		TipHeight: tip.Height,
		AsMiner:   true,
		MinFee:    minFee,
	}
	var fees uint64
	if err := e.connectInputs(ctx, tx, blockstore.TxDiskPos{}, &fees); err != nil {
		return 0, err
	}
	return fees, nil
}
