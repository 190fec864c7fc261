// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/artea/corecoin/chainhash"
)

// BlockHeaderPayload is the number of bytes a block header takes on disk and
// on the wire: version(4) + prevBlock(32) + merkleRoot(32) + time(8) +
// bits(4) + nonce(8).
const BlockHeaderPayload = 4 + chainhash.HashSize + chainhash.HashSize + 8 + 4 + 8

// BlockHeader defines information about a block: its version, the hash of
// its single parent, the merkle root of its transactions, the time it was
// created, its proof-of-work target, and the nonce that satisfies it.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  int64
	Bits       uint32
	Nonce      uint64
}

// BlockHash computes the block identifier hash for the header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderPayload))
	_ = h.Serialize(buf)
	return chainhash.HashH(buf.Bytes())
}

// Serialize encodes the header to w using the on-disk/wire encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if err := writeElement(w, h.Version); err != nil {
		return err
	}
	if err := writeElement(w, h.PrevBlock); err != nil {
		return err
	}
	if err := writeElement(w, h.MerkleRoot); err != nil {
		return err
	}
	if err := writeElement(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeElement(w, h.Bits); err != nil {
		return err
	}
	return writeElement(w, h.Nonce)
}

// Deserialize decodes a header from r into the receiver.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	if err := readElement(r, &h.Version); err != nil {
		return err
	}
	if err := readElement(r, &h.PrevBlock); err != nil {
		return err
	}
	if err := readElement(r, &h.MerkleRoot); err != nil {
		return err
	}
	if err := readElement(r, &h.Timestamp); err != nil {
		return err
	}
	if err := readElement(r, &h.Bits); err != nil {
		return err
	}
	return readElement(r, &h.Nonce)
}
