package chainengine

import (
	"github.com/artea/corecoin/txindex"
	"github.com/artea/corecoin/wire"
)

// PriorityInput resolves outpoint against the persistent tx index for the
// template builder's priority calculation: it reports the referenced
// output's value and how many confirmations its containing transaction has,
// or found=false if the outpoint isn't confirmed yet (the template builder
// treats those as orphans waiting on a same-round dependency).
func (e *Engine) PriorityInput(outpoint wire.OutPoint) (value uint64, confirmations int32, found bool, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok, err := txindex.Get(e.db, outpoint.TxID)
	if err != nil {
		return 0, 0, false, err
	}
	if !ok {
		return 0, 0, false, nil
	}

	prevTx, err := e.store.ReadTxFromDisk(entry.Pos)
	if err != nil {
		return 0, 0, false, err
	}
	if int(outpoint.Index) >= len(prevTx.TxOut) {
		return 0, 0, false, nil
	}

	tipHeight := e.index.Node(e.bestHandle).Height
	confirmations = tipHeight - entry.Height + 1
	return prevTx.TxOut[outpoint.Index].Value, confirmations, true, nil
}
