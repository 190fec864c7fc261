// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"math"

	"github.com/artea/corecoin/chainhash"
)

// MaxScriptSize bounds a single script so a malformed transaction can't
// force an unbounded allocation while deserializing.
const MaxScriptSize = 10000

// LockTimeThreshold is the value above which a transaction's LockTime is
// interpreted as a Unix timestamp rather than a block height, per spec.
const LockTimeThreshold = 500000000

// SatoshiPerBitcoin is the number of indivisible units in one coin.
const SatoshiPerBitcoin = 100000000

// MaxMoney is the maximum number of satoshis any single amount or running
// sum may hold, derived from the fixed 21 million coin supply cap.
const MaxMoney = 21000000 * SatoshiPerBitcoin

// MoneyRange reports whether amount is a valid monetary value: not more
// than MaxMoney. Value is unsigned, so the negative half of the original
// check can never apply here.
func MoneyRange(amount uint64) bool {
	return amount <= MaxMoney
}

// SequenceFinal marks an input as final (not subject to relative locktime),
// mirroring the original project's per-input finality flag.
const SequenceFinal = math.MaxUint64

// TxIn defines a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint64
}

// IsFinal reports whether this single input is marked final.
func (txIn *TxIn) IsFinal() bool {
	return txIn.Sequence == SequenceFinal
}

// SerializeSize returns the number of bytes it would take to serialize the
// input.
func (txIn *TxIn) SerializeSize() int {
	return chainhash.HashSize + 4 + 8 + VarIntSerializeSize(uint64(len(txIn.SignatureScript))) + len(txIn.SignatureScript)
}

// TxOut defines a transaction output.
type TxOut struct {
	Value    uint64
	PkScript []byte
}

// SerializeSize returns the number of bytes it would take to serialize the
// output.
func (txOut *TxOut) SerializeSize() int {
	return 8 + VarIntSerializeSize(uint64(len(txOut.PkScript))) + len(txOut.PkScript)
}

// MsgTx defines a transaction: a list of inputs spending prior outputs, a
// list of outputs, and a lock time.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint64
}

// NewMsgTx returns a new transaction with the given protocol version and
// empty input/output lists.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version, TxIn: []*TxIn{}, TxOut: []*TxOut{}}
}

// AddTxIn appends ti to the transaction's input list.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut appends to to the transaction's output list.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// IsCoinBase determines whether tx is a coinbase: exactly one input,
// referencing the null outpoint.
func (msg *MsgTx) IsCoinBase() bool {
	return len(msg.TxIn) == 1 && msg.TxIn[0].PreviousOutPoint.IsNull()
}

// TotalOut returns the sum of all of the transaction's output values. It
// does not validate MoneyRange; callers check that separately.
func (msg *MsgTx) TotalOut() uint64 {
	var total uint64
	for _, out := range msg.TxOut {
		total += out.Value
	}
	return total
}

// SigOpCount approximates the transaction's signature operation count as one
// check per input. This module has no script interpreter to scan opcodes
// with — chainengine.SignatureVerifier is a consumed collaborator, not
// implemented here — so this stands in as the anti-DoS sigop estimate both
// mempool admission and template building check against.
func (msg *MsgTx) SigOpCount() int64 {
	return int64(len(msg.TxIn))
}

// IsFinal reports whether the transaction is final as of the given block
// height and block time: a lock time of zero is always final; otherwise the
// lock time is interpreted as a height or a timestamp depending on whether
// it is below LockTimeThreshold, and is final once that height/time has
// passed, but only if every input also carries a final sequence.
func (msg *MsgTx) IsFinal(blockHeight int32, blockTime int64) bool {
	if msg.LockTime == 0 {
		return true
	}

	var lockTimeLimit int64
	if msg.LockTime < LockTimeThreshold {
		lockTimeLimit = int64(blockHeight)
	} else {
		lockTimeLimit = blockTime
	}
	if int64(msg.LockTime) < lockTimeLimit {
		return true
	}

	for _, txIn := range msg.TxIn {
		if !txIn.IsFinal() {
			return false
		}
	}
	return true
}

// TxHash computes the hash of the transaction, used to uniquely identify it.
func (msg *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	// Serialize can only fail from an io.Writer error; bytes.Buffer never
	// returns one.
	_ = msg.Serialize(&buf)
	return chainhash.HashH(buf.Bytes())
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction.
func (msg *MsgTx) SerializeSize() int {
	n := 4 + VarIntSerializeSize(uint64(len(msg.TxIn))) + VarIntSerializeSize(uint64(len(msg.TxOut))) + 8
	for _, txIn := range msg.TxIn {
		n += txIn.SerializeSize()
	}
	for _, txOut := range msg.TxOut {
		n += txOut.SerializeSize()
	}
	return n
}

// Serialize encodes the transaction to w using the on-disk/wire encoding.
func (msg *MsgTx) Serialize(w io.Writer) error {
	if err := writeElement(w, msg.Version); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, txIn := range msg.TxIn {
		if err := writeOutPoint(w, &txIn.PreviousOutPoint); err != nil {
			return err
		}
		if err := WriteVarBytes(w, txIn.SignatureScript); err != nil {
			return err
		}
		if err := writeElement(w, txIn.Sequence); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, txOut := range msg.TxOut {
		if err := writeElement(w, txOut.Value); err != nil {
			return err
		}
		if err := WriteVarBytes(w, txOut.PkScript); err != nil {
			return err
		}
	}
	return writeElement(w, msg.LockTime)
}

// Deserialize decodes a transaction from r into the receiver.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	if err := readElement(r, &msg.Version); err != nil {
		return err
	}
	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	msg.TxIn = make([]*TxIn, inCount)
	for i := range msg.TxIn {
		txIn := &TxIn{}
		if err := readOutPoint(r, &txIn.PreviousOutPoint); err != nil {
			return err
		}
		if txIn.SignatureScript, err = ReadVarBytes(r, MaxScriptSize, "signature script"); err != nil {
			return err
		}
		if err := readElement(r, &txIn.Sequence); err != nil {
			return err
		}
		msg.TxIn[i] = txIn
	}
	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	msg.TxOut = make([]*TxOut, outCount)
	for i := range msg.TxOut {
		txOut := &TxOut{}
		if err := readElement(r, &txOut.Value); err != nil {
			return err
		}
		if txOut.PkScript, err = ReadVarBytes(r, MaxScriptSize, "public key script"); err != nil {
			return err
		}
		msg.TxOut[i] = txOut
	}
	return readElement(r, &msg.LockTime)
}
