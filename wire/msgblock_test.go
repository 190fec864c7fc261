// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func sampleBlock() *MsgBlock {
	coinbase := NewMsgTx(1)
	coinbase.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{0x01},
		Sequence:         SequenceFinal,
	})
	coinbase.AddTxOut(&TxOut{Value: 5000000000, PkScript: []byte{0xaa}})

	spend := NewMsgTx(1)
	spend.AddTxIn(&TxIn{PreviousOutPoint: OutPoint{Index: 0}, SignatureScript: []byte{}, Sequence: SequenceFinal})
	spend.AddTxOut(&TxOut{Value: 1000, PkScript: []byte{0xbb}})

	block := NewMsgBlock(&BlockHeader{
		Version:   1,
		Timestamp: 1296688602,
		Bits:      0x207fffff,
		Nonce:     7,
	})
	block.AddTransaction(coinbase)
	block.AddTransaction(spend)
	block.BuildMerkleRoot()
	return block
}

func TestBlockWire(t *testing.T) {
	block := sampleBlock()

	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if got, want := block.SerializeSize(), buf.Len(); got != want {
		t.Errorf("SerializeSize: got %d, want %d", got, want)
	}

	var got MsgBlock
	if err := got.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(&got, block) {
		t.Errorf("round-trip mismatch\n got: %s want: %s", spew.Sdump(&got), spew.Sdump(block))
	}
}

func TestBlockDeserializeRejectsOversizedTxCount(t *testing.T) {
	var buf bytes.Buffer
	header := BlockHeader{Version: 1, Bits: 0x207fffff}
	if err := header.Serialize(&buf); err != nil {
		t.Fatalf("Serialize header: %v", err)
	}
	if err := WriteVarInt(&buf, MaxBlockTransactions+1); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}

	var block MsgBlock
	if err := block.Deserialize(bytes.NewReader(buf.Bytes())); err == nil {
		t.Error("Deserialize did not reject a transaction count over MaxBlockTransactions")
	}
}

func TestBlockHashChangesWithNonce(t *testing.T) {
	block := sampleBlock()
	h1 := block.BlockHash()
	block.Header.Nonce++
	h2 := block.BlockHash()
	if h1 == h2 {
		t.Error("BlockHash did not change after the nonce changed")
	}
}

func TestTxLocationsMatchSerializedOffsets(t *testing.T) {
	block := sampleBlock()

	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	locations, err := block.TxLocations()
	if err != nil {
		t.Fatalf("TxLocations: %v", err)
	}
	if len(locations) != len(block.Transactions) {
		t.Fatalf("got %d locations, want %d", len(locations), len(block.Transactions))
	}

	raw := buf.Bytes()
	for i, tx := range block.Transactions {
		loc := locations[i]
		var reread MsgTx
		if err := reread.Deserialize(bytes.NewReader(raw[loc.TxStart : loc.TxStart+loc.TxLen])); err != nil {
			t.Fatalf("tx %d: Deserialize at reported location: %v", i, err)
		}
		if reread.TxHash() != tx.TxHash() {
			t.Errorf("tx %d: hash at reported location does not match", i)
		}
	}
}
