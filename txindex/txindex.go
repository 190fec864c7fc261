// Package txindex implements the persistent per-transaction index: where a
// confirmed transaction lives on disk, and for each of its outputs, whether
// it has been spent and if so by which transaction. This is the bookkeeping
// invariant #1 and #4 (spec's terms) hinge on.
package txindex

import (
	"bytes"

	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chainerr"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/database"
	"github.com/artea/corecoin/wire"
)

const keyPrefix = "tx"

// Entry is a transaction's disk position plus one spent-or-not slot per
// output. SpentSlots[i] records where the transaction that spent output i
// lives on disk; Spent[i] is false until that output is spent.
type Entry struct {
	Pos        blockstore.TxDiskPos
	Height     int32
	Spent      []bool
	SpentSlots []blockstore.TxDiskPos
}

// NewEntry builds an all-unspent entry for a transaction with numOutputs
// outputs, confirmed at height and located at pos. height is used by the
// coinbase maturity check.
func NewEntry(pos blockstore.TxDiskPos, height int32, numOutputs int) *Entry {
	return &Entry{
		Pos:        pos,
		Height:     height,
		Spent:      make([]bool, numOutputs),
		SpentSlots: make([]blockstore.TxDiskPos, numOutputs),
	}
}

// IsSpent reports whether output index is marked spent.
func (e *Entry) IsSpent(index uint32) bool {
	return int(index) < len(e.Spent) && e.Spent[index]
}

// MarkSpent records that output index was spent by the transaction at pos.
func (e *Entry) MarkSpent(index uint32, pos blockstore.TxDiskPos) error {
	if int(index) >= len(e.Spent) {
		return chainerr.New(chainerr.KindBadTransaction, "output index %d out of range (have %d outputs)", index, len(e.Spent))
	}
	e.Spent[index] = true
	e.SpentSlots[index] = pos
	return nil
}

// ClearSpent reverts output index back to unspent, used while disconnecting
// a block.
func (e *Entry) ClearSpent(index uint32) {
	if int(index) < len(e.Spent) {
		e.Spent[index] = false
		e.SpentSlots[index] = blockstore.TxDiskPos{}
	}
}

// ScratchPool overlays uncommitted entries (from the block or template
// currently being assembled) on top of the persistent index, mirroring the
// "pool" parameter threaded through connectInputs.
type ScratchPool map[chainhash.Hash]*Entry

// Resolve looks up hash first in pool, then falls back to the persistent
// accessor, caching the result back into pool so later lookups within the
// same batch observe any spent-slot mutations made to it.
func Resolve(pool ScratchPool, accessor database.DataAccessor, hash chainhash.Hash) (*Entry, bool, error) {
	if entry, ok := pool[hash]; ok {
		return entry, true, nil
	}
	entry, ok, err := Get(accessor, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	pool[hash] = entry
	return entry, true, nil
}

func key(hash chainhash.Hash) []byte {
	return append([]byte(keyPrefix), hash[:]...)
}

// Get reads the index entry for hash from accessor, if present.
func Get(accessor database.DataAccessor, hash chainhash.Hash) (*Entry, bool, error) {
	raw, ok, err := accessor.Get(key(hash))
	if err != nil {
		return nil, false, chainerr.Wrap(chainerr.KindIOError, err, "failed to read tx index entry")
	}
	if !ok {
		return nil, false, nil
	}
	entry, err := deserializeEntry(raw)
	if err != nil {
		return nil, false, chainerr.Wrap(chainerr.KindIOError, err, "failed to decode tx index entry")
	}
	return entry, true, nil
}

// Put writes the index entry for hash to accessor.
func Put(accessor database.DataAccessor, hash chainhash.Hash, entry *Entry) error {
	raw, err := serializeEntry(entry)
	if err != nil {
		return chainerr.Wrap(chainerr.KindIOError, err, "failed to encode tx index entry")
	}
	if err := accessor.Put(key(hash), raw); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to write tx index entry")
	}
	return nil
}

// Delete removes the index entry for hash from accessor.
func Delete(accessor database.DataAccessor, hash chainhash.Hash) error {
	if err := accessor.Delete(key(hash)); err != nil {
		return chainerr.Wrap(chainerr.KindStoreTransactionAborted, err, "failed to delete tx index entry")
	}
	return nil
}

func serializeEntry(e *Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := wire.WriteVarInt(buf, uint64(e.Pos.File)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(e.Pos.BlockPos)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(e.Pos.TxOffset)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(e.Height)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(len(e.Spent))); err != nil {
		return nil, err
	}
	for i := range e.Spent {
		if e.Spent[i] {
			if err := buf.WriteByte(1); err != nil {
				return nil, err
			}
			if err := wire.WriteVarInt(buf, uint64(e.SpentSlots[i].File)); err != nil {
				return nil, err
			}
			if err := wire.WriteVarInt(buf, uint64(e.SpentSlots[i].BlockPos)); err != nil {
				return nil, err
			}
			if err := wire.WriteVarInt(buf, uint64(e.SpentSlots[i].TxOffset)); err != nil {
				return nil, err
			}
		} else {
			if err := buf.WriteByte(0); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func deserializeEntry(raw []byte) (*Entry, error) {
	r := bytes.NewReader(raw)
	file, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	blockPos, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	txOffset, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	height, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		Pos:        blockstore.TxDiskPos{File: uint32(file), BlockPos: uint32(blockPos), TxOffset: uint32(txOffset)},
		Height:     int32(height),
		Spent:      make([]bool, count),
		SpentSlots: make([]blockstore.TxDiskPos, count),
	}
	for i := uint64(0); i < count; i++ {
		flag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if flag == 0 {
			continue
		}
		sf, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		sb, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		so, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		entry.Spent[i] = true
		entry.SpentSlots[i] = blockstore.TxDiskPos{File: uint32(sf), BlockPos: uint32(sb), TxOffset: uint32(so)}
	}
	return entry, nil
}
