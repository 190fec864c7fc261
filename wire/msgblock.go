// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/artea/corecoin/chainhash"
)

// MaxBlockTransactions bounds the number of transactions read from a single
// serialized block against a malformed length prefix.
const MaxBlockTransactions = 1000000

// MsgBlock defines a block: a header plus the ordered list of transactions
// it contains (transaction 0 is always the coinbase).
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// NewMsgBlock returns a new block with the given header and no transactions.
func NewMsgBlock(header *BlockHeader) *MsgBlock {
	return &MsgBlock{Header: *header}
}

// AddTransaction appends tx to the block's transaction list.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// BlockHash computes the block identifier hash for the block's header.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	return msg.Header.BlockHash()
}

// BuildMerkleRoot recomputes and sets the header's merkle root from the
// block's current transaction list.
func (msg *MsgBlock) BuildMerkleRoot() {
	msg.Header.MerkleRoot = BuildMerkleTreeRoot(msg.Transactions)
}

// SerializeSize returns the number of bytes it would take to serialize the
// block.
func (msg *MsgBlock) SerializeSize() int {
	n := BlockHeaderPayload + VarIntSerializeSize(uint64(len(msg.Transactions)))
	for _, tx := range msg.Transactions {
		n += tx.SerializeSize()
	}
	return n
}

// Serialize encodes the block to w using the on-disk/wire encoding.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a block from r into the receiver.
func (msg *MsgBlock) Deserialize(r io.Reader) error {
	if err := msg.Header.Deserialize(r); err != nil {
		return err
	}
	txCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if txCount > MaxBlockTransactions {
		return errBlockTooManyTx(txCount)
	}
	msg.Transactions = make([]*MsgTx, txCount)
	for i := range msg.Transactions {
		tx := &MsgTx{}
		if err := tx.Deserialize(r); err != nil {
			return err
		}
		msg.Transactions[i] = tx
	}
	return nil
}

// TxLocation describes where a single transaction lives within a
// serialized block, relative to the start of the block's bytes. It backs
// the TxIndex's disk position (file, offset, tx offset within block).
type TxLocation struct {
	TxStart int
	TxLen   int
}

// TxLocations returns the location of each of the block's transactions
// within its own serialized form, by re-serializing and walking the
// transaction encoding. This mirrors how the original project re-derives
// nTxPos while connecting a block (see chainengine's Engine.connectBlock).
func (msg *MsgBlock) TxLocations() ([]TxLocation, error) {
	var buf bytes.Buffer
	if err := msg.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	if err := WriteVarInt(&buf, uint64(len(msg.Transactions))); err != nil {
		return nil, err
	}
	locations := make([]TxLocation, len(msg.Transactions))
	offset := buf.Len()
	for i, tx := range msg.Transactions {
		size := tx.SerializeSize()
		locations[i] = TxLocation{TxStart: offset, TxLen: size}
		offset += size
	}
	return locations, nil
}
