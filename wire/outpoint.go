package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/artea/corecoin/chainhash"
)

// OutPoint defines a reference (coin) to a specific transaction output.
type OutPoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new OutPoint referencing the given tx hash and index.
func NewOutPoint(txID *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{TxID: *txID, Index: index}
}

// IsNull returns whether the outpoint is the null outpoint used by a
// coinbase input's single input.
func (o OutPoint) IsNull() bool {
	return o.Index == math.MaxUint32 && o.TxID.IsZero()
}

// String returns the canonical string representation of an outpoint.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	if err := readElement(r, &op.TxID); err != nil {
		return err
	}
	return readElement(r, &op.Index)
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	if err := writeElement(w, op.TxID); err != nil {
		return err
	}
	return writeElement(w, op.Index)
}
