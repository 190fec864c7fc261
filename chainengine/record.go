package chainengine

import (
	"bytes"

	"github.com/artea/corecoin/blockindex"
	"github.com/artea/corecoin/blockstore"
	"github.com/artea/corecoin/chainhash"
	"github.com/artea/corecoin/wire"
)

// blockIndexRecord is the on-disk shape of a blockindex.Node: hash is the
// map key it's stored under, so it is not repeated in the value.
type blockIndexRecord struct {
	HashPrev chainhash.Hash
	HashNext chainhash.Hash
	File     uint32
	Offset   uint32
	Height   int32

	Version    int32
	MerkleRoot chainhash.Hash
	Timestamp  int64
	Bits       uint32
	Nonce      uint64
}

func recordFromNode(node *blockindex.Node, idx *blockindex.Index) blockIndexRecord {
	rec := blockIndexRecord{
		HashPrev:   node.PrevBlock,
		File:       node.DiskPos.File,
		Offset:     node.DiskPos.Offset,
		Height:     node.Height,
		Version:    node.Version,
		MerkleRoot: node.MerkleRoot,
		Timestamp:  node.Timestamp,
		Bits:       node.Bits,
		Nonce:      node.Nonce,
	}
	if node.Next != blockindex.NoHandle {
		rec.HashNext = idx.Node(node.Next).Hash
	}
	return rec
}

func serializeRecord(rec blockIndexRecord) ([]byte, error) {
	buf := new(bytes.Buffer)

	write := func(v interface{}) error { return wire.WriteElement(buf, v) }
	if err := write(rec.HashPrev); err != nil {
		return nil, err
	}
	if err := write(rec.HashNext); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(rec.File)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(rec.Offset)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(buf, uint64(rec.Height)); err != nil {
		return nil, err
	}
	if err := write(rec.Version); err != nil {
		return nil, err
	}
	if err := write(rec.MerkleRoot); err != nil {
		return nil, err
	}
	if err := write(rec.Timestamp); err != nil {
		return nil, err
	}
	if err := write(rec.Bits); err != nil {
		return nil, err
	}
	if err := write(rec.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeRecord(raw []byte) (blockIndexRecord, error) {
	r := bytes.NewReader(raw)
	var rec blockIndexRecord
	if err := wire.ReadElement(r, &rec.HashPrev); err != nil {
		return rec, err
	}
	if err := wire.ReadElement(r, &rec.HashNext); err != nil {
		return rec, err
	}
	file, err := wire.ReadVarInt(r)
	if err != nil {
		return rec, err
	}
	offset, err := wire.ReadVarInt(r)
	if err != nil {
		return rec, err
	}
	height, err := wire.ReadVarInt(r)
	if err != nil {
		return rec, err
	}
	rec.File = uint32(file)
	rec.Offset = uint32(offset)
	rec.Height = int32(height)
	if err := wire.ReadElement(r, &rec.Version); err != nil {
		return rec, err
	}
	if err := wire.ReadElement(r, &rec.MerkleRoot); err != nil {
		return rec, err
	}
	if err := wire.ReadElement(r, &rec.Timestamp); err != nil {
		return rec, err
	}
	if err := wire.ReadElement(r, &rec.Bits); err != nil {
		return rec, err
	}
	if err := wire.ReadElement(r, &rec.Nonce); err != nil {
		return rec, err
	}
	return rec, nil
}

func (rec blockIndexRecord) header() *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    rec.Version,
		PrevBlock:  rec.HashPrev,
		MerkleRoot: rec.MerkleRoot,
		Timestamp:  rec.Timestamp,
		Bits:       rec.Bits,
		Nonce:      rec.Nonce,
	}
}

func (rec blockIndexRecord) diskPos() blockstore.DiskPos {
	return blockstore.DiskPos{File: rec.File, Offset: rec.Offset}
}
